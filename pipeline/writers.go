package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-harvest-apps/models"
)

// fileSink owns the buffered output file behind a record writer.
type fileSink struct {
	path string
	file *os.File
	buf  *bufio.Writer
	rows int
	mu   sync.Mutex
}

func openFileSink(path string) (*fileSink, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &fileSink{path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

func (s *fileSink) close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.buf.Flush()
	closeErr := s.file.Close()
	s.file = nil
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", s.path, flushErr)
	}
	return closeErr
}

// stat works before and after close.
func (s *fileSink) size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CSVWriter writes a header row and one "email" column per record.
type CSVWriter struct {
	sink *fileSink
	csv  *csv.Writer
}

// NewCSVWriter creates filename, and any missing parent directories, and writes the header.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	sink, err := openFileSink(filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{sink: sink, csv: csv.NewWriter(sink.buf)}
	if err := cw.writeRow("email"); err != nil {
		sink.close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

func (cw *CSVWriter) writeRow(fields ...string) error {
	if err := cw.csv.Write(fields); err != nil {
		return err
	}
	cw.csv.Flush()
	if err := cw.csv.Error(); err != nil {
		return err
	}
	return cw.sink.buf.Flush()
}

// Write appends one row per record and flushes the batch.
func (cw *CSVWriter) Write(records []*models.EmailRecord) error {
	cw.sink.mu.Lock()
	defer cw.sink.mu.Unlock()

	for _, record := range records {
		if err := cw.csv.Write([]string{record.Email}); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.csv.Flush()
	if err := cw.csv.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	if err := cw.sink.buf.Flush(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	cw.sink.rows += len(records)
	return nil
}

func (cw *CSVWriter) Close() error {
	cw.sink.mu.Lock()
	defer cw.sink.mu.Unlock()
	return cw.sink.close()
}

// Validate checks that at least the header reached disk.
func (cw *CSVWriter) Validate() error {
	size, err := cw.sink.size()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if size == 0 {
		return fmt.Errorf("csv file %s is empty", cw.sink.path)
	}
	return nil
}

// Rows is the number of records written, excluding the header.
func (cw *CSVWriter) Rows() int {
	cw.sink.mu.Lock()
	defer cw.sink.mu.Unlock()
	return cw.sink.rows
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	sink    *fileSink
	encoder *json.Encoder
}

func NewJSONWriter(filename string) (*JSONWriter, error) {
	sink, err := openFileSink(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{sink: sink, encoder: json.NewEncoder(sink.buf)}, nil
}

func (jw *JSONWriter) Write(records []*models.EmailRecord) error {
	jw.sink.mu.Lock()
	defer jw.sink.mu.Unlock()

	for _, record := range records {
		if err := jw.encoder.Encode(record); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.sink.buf.Flush(); err != nil {
		return fmt.Errorf("flush json records: %w", err)
	}
	jw.sink.rows += len(records)
	return nil
}

func (jw *JSONWriter) Close() error {
	jw.sink.mu.Lock()
	defer jw.sink.mu.Unlock()
	return jw.sink.close()
}

// Validate fails when records were written but the file is still empty.
// An export that found no emails legitimately leaves an empty file.
func (jw *JSONWriter) Validate() error {
	jw.sink.mu.Lock()
	rows := jw.sink.rows
	jw.sink.mu.Unlock()

	size, err := jw.sink.size()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if rows > 0 && size == 0 {
		return fmt.Errorf("json file %s is empty after %d records", jw.sink.path, rows)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
