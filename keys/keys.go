// Package keys loads API credentials and tracks which of them are exhausted.
package keys

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrKeysExhausted is returned once every key has been rate-limited or rejected.
var ErrKeysExhausted = errors.New("keys: all keys exhausted")

// Store hands out keys in file order. A key, once passed over, is never returned again.
type Store struct {
	keys        []string
	corruptPath string

	mu    sync.Mutex
	index int
}

// Load reads newline-delimited keys from path, ignoring blank lines.
// Keys rejected with 403 are appended to corruptPath; an empty corruptPath disables that.
func Load(path, corruptPath string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keys file: %w", err)
	}
	defer f.Close()

	var list []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if key := strings.TrimSpace(scanner.Text()); key != "" {
			list = append(list, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("keys file %q contains no keys", path)
	}
	return New(list, corruptPath), nil
}

// New builds a store over an in-memory key list.
func New(list []string, corruptPath string) *Store {
	out := make([]string, len(list))
	copy(out, list)
	return &Store{keys: out, corruptPath: corruptPath}
}

// Current returns the key in use and its index.
func (s *Store) Current() (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.keys) {
		return "", s.index, ErrKeysExhausted
	}
	return s.keys[s.index], s.index, nil
}

// Advance marks the current key exhausted and moves to the next one.
func (s *Store) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index < len(s.keys) {
		s.index++
	}
	if s.index >= len(s.keys) {
		return ErrKeysExhausted
	}
	return nil
}

// Len returns the number of loaded keys.
func (s *Store) Len() int {
	return len(s.keys)
}

// Remaining returns how many keys have not been passed over yet, including the current one.
func (s *Store) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys) - s.index
}

// RecordCorrupt appends key to the corrupt keys file.
func (s *Store) RecordCorrupt(key string) error {
	if s.corruptPath == "" {
		return nil
	}
	f, err := os.OpenFile(s.corruptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open corrupt keys file: %w", err)
	}
	if _, err := f.WriteString(key + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append corrupt key: %w", err)
	}
	return f.Close()
}
