// Package denylist manages the reverse-proxy deny-list file. The proxy
// polls or hot-reloads the file on its own; no reload is triggered here.
package denylist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// File maintains an nginx-style deny-list ("deny <addr>;" per line).
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// AddDeny adds address to the deny-list. Returns false if the list could
// not be updated.
func (f *File) AddDeny(address string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		log.Errorf("reading deny-list %s: %v", f.path, err)
		return false
	}
	if _, ok := entries[address]; ok {
		return true
	}
	entries[address] = struct{}{}

	if err := f.write(entries); err != nil {
		log.Errorf("writing deny-list %s: %v", f.path, err)
		return false
	}
	return true
}

// RemoveDeny removes address from the deny-list. Returns false if the list
// could not be updated.
func (f *File) RemoveDeny(address string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		log.Errorf("reading deny-list %s: %v", f.path, err)
		return false
	}
	if _, ok := entries[address]; !ok {
		return true
	}
	delete(entries, address)

	if err := f.write(entries); err != nil {
		log.Errorf("writing deny-list %s: %v", f.path, err)
		return false
	}
	return true
}

// Entries returns the currently denied addresses.
func (f *File) Entries() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for addr := range entries {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}

func (f *File) read() (map[string]struct{}, error) {
	entries := make(map[string]struct{})

	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "deny ") {
			continue
		}
		addr := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(line, "deny ")), ";")
		if addr != "" {
			entries[addr] = struct{}{}
		}
	}
	return entries, scanner.Err()
}

// write replaces the deny-list atomically so the proxy never reads a
// half-written file.
func (f *File) write(entries map[string]struct{}) error {
	addrs := make([]string, 0, len(entries))
	for addr := range entries {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var b strings.Builder
	b.WriteString("# managed by netsentry, do not edit\n")
	for _, addr := range addrs {
		fmt.Fprintf(&b, "deny %s;\n", addr)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".denylist-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
