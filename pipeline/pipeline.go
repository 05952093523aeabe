// Package pipeline fans metadata files out to workers that extract developer emails,
// de-duplicates them and hands batches to an OutputWriter. It also provides the
// append-only identifier writer used by the harvester.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/aluiziolira/go-harvest-apps/models"
	"github.com/aluiziolira/go-harvest-apps/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.EmailRecord) error
	Close() error
	Validate() error
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Files          int64
	DecodeFailures int64
	ReadFailures   int64
	Missing        int64
	Unique         int64
	Duplicates     int64
}

// Pipeline coordinates extraction, de-duplication, and output writing.
type Pipeline struct {
	ctx         context.Context
	writer      OutputWriter
	field       string
	placeholder string
	pathCh      chan string
	batchSize   int

	wg sync.WaitGroup

	seen   map[string]struct{}
	seenMu sync.Mutex

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.ExportConfig) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Pipeline{
		ctx:         ctx,
		writer:      writer,
		field:       cfg.Field,
		placeholder: cfg.Placeholder,
		pathCh:      make(chan string, cfg.BufferSize),
		batchSize:   batchSize,
		seen:        make(map[string]struct{}),
		shutdown:    make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues metadata file paths.
func (p *Pipeline) Process(paths ...string) error {
	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, path := range paths {
		if err := p.enqueue(path); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.pathCh)
	})

	p.wg.Wait()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := p.Stats()
				slog.Info("pipeline progress",
					slog.Int64("files", stats.Files),
					slog.Int64("unique", stats.Unique),
					slog.Int64("decode_failures", stats.DecodeFailures),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.EmailRecord, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for path := range p.pathCh {
		if p.ctx.Err() != nil {
			continue
		}
		record := p.extract(path)
		if record == nil {
			continue
		}
		slog.Debug("new email", slog.String("source", record.Source))
		batch = append(batch, record)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// extract reads one metadata file and returns a record for a not-yet-seen email.
func (p *Pipeline) extract(path string) *models.EmailRecord {
	slog.Debug("processing file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		p.metrics.add(&p.metrics.readFailures)
		slog.Error("failed to read file", slog.String("path", path), slog.Any("error", err))
		return nil
	}

	value, _, err := parser.ExtractField(data, p.field)
	if err != nil {
		p.metrics.add(&p.metrics.decodeFailures)
		slog.Error("failed to decode JSON", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	p.metrics.add(&p.metrics.files)

	email, ok := parser.NormalizeEmail(value, p.placeholder)
	if !ok {
		p.metrics.add(&p.metrics.missing)
		return nil
	}

	p.seenMu.Lock()
	if _, dup := p.seen[email]; dup {
		p.seenMu.Unlock()
		p.metrics.add(&p.metrics.duplicates)
		return nil
	}
	p.seen[email] = struct{}{}
	p.seenMu.Unlock()

	p.metrics.add(&p.metrics.unique)
	return &models.EmailRecord{Email: email, Source: path}
}

func (p *Pipeline) enqueue(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	if err := p.ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.pathCh <- path:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu             sync.Mutex
	files          int64
	decodeFailures int64
	readFailures   int64
	missing        int64
	unique         int64
	duplicates     int64
}

func (m *metrics) add(counter *int64) {
	m.mu.Lock()
	*counter++
	m.mu.Unlock()
}

func (m *metrics) snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Files:          m.files,
		DecodeFailures: m.decodeFailures,
		ReadFailures:   m.readFailures,
		Missing:        m.missing,
		Unique:         m.unique,
		Duplicates:     m.duplicates,
	}
}
