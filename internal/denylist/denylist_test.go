package denylist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndRemoveDeny(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deny.conf")
	f := NewFile(path)

	require.True(t, f.AddDeny("203.0.113.5"))
	require.True(t, f.AddDeny("203.0.113.6"))

	entries, err := f.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.5", "203.0.113.6"}, entries)

	require.True(t, f.RemoveDeny("203.0.113.5"))
	entries, err = f.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.6"}, entries)
}

func TestAddDenyIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deny.conf")
	f := NewFile(path)

	require.True(t, f.AddDeny("203.0.113.7"))
	require.True(t, f.AddDeny("203.0.113.7"))

	entries, err := f.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRemoveDenyMissingAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deny.conf")
	f := NewFile(path)

	// Removing an address that was never denied is not a failure.
	assert.True(t, f.RemoveDeny("203.0.113.8"))
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deny.conf")
	f := NewFile(path)
	require.True(t, f.AddDeny("203.0.113.9"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "deny 203.0.113.9;\n")
}
