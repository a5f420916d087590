package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopSources(t *testing.T) {
	counts := map[string]int{
		"10.0.0.1": 5,
		"10.0.0.2": 50,
		"10.0.0.3": 50,
		"10.0.0.4": 1,
	}

	top := topSources(counts, 2)
	assert.Len(t, top, 2)
	// Ties break on address for a stable dashboard ordering.
	assert.Equal(t, "10.0.0.2", top[0].IP)
	assert.Equal(t, "10.0.0.3", top[1].IP)
}

func TestTopSourcesFewerThanLimit(t *testing.T) {
	top := topSources(map[string]int{"10.0.0.1": 3}, 10)
	assert.Len(t, top, 1)
	assert.Equal(t, 3, top[0].Count)
}

func TestTopSourcesEmpty(t *testing.T) {
	assert.Empty(t, topSources(map[string]int{}, 10))
}
