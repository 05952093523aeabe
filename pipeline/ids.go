package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// IDWriter appends identifiers to a file, one per line, flushing after every batch
// so a crash loses at most the page in flight.
type IDWriter struct {
	file   *os.File
	writer *bufio.Writer
	recent *lru.Cache[string, struct{}]
	mu     sync.Mutex

	written int
	skipped int
}

// NewIDWriter opens filename in append mode. When recentSize is positive, an identifier
// seen among the last recentSize distinct identifiers is not written again.
func NewIDWriter(filename string, recentSize int) (*IDWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open id file: %w", err)
	}

	w := &IDWriter{
		file:   f,
		writer: bufio.NewWriter(f),
	}
	if recentSize > 0 {
		cache, err := lru.New[string, struct{}](recentSize)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create recent id cache: %w", err)
		}
		w.recent = cache
	}
	return w, nil
}

// WriteIDs appends ids and returns how many lines were written.
func (w *IDWriter) WriteIDs(ids []string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, id := range ids {
		if w.recent != nil {
			if w.recent.Contains(id) {
				w.skipped++
				continue
			}
			w.recent.Add(id, struct{}{})
		}
		if _, err := w.writer.WriteString(id + "\n"); err != nil {
			return n, fmt.Errorf("write id: %w", err)
		}
		n++
	}
	if err := w.writer.Flush(); err != nil {
		return n, fmt.Errorf("flush ids: %w", err)
	}
	w.written += n
	return n, nil
}

// Counts returns the number of identifiers written and skipped so far.
func (w *IDWriter) Counts() (written, skipped int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.skipped
}

// Close flushes and closes the file handle.
func (w *IDWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush ids: %w", err)
	}
	return w.file.Close()
}
