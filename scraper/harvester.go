package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/aluiziolira/go-harvest-apps/keys"
	"github.com/aluiziolira/go-harvest-apps/models"
	"github.com/aluiziolira/go-harvest-apps/parser"
	"github.com/aluiziolira/go-harvest-apps/query"
	"golang.org/x/time/rate"
)

// Reasons a harvest run stopped.
const (
	StopEndDate       = "end_date_reached"
	StopMaxDays       = "max_days_reached"
	StopKeysExhausted = "keys_exhausted"
	StopCanceled      = "canceled"
)

// IDSink receives the identifiers extracted from each page.
type IDSink interface {
	WriteIDs(ids []string) (int, error)
}

// Harvester walks days backwards from the start date, running every query per day
// and rotating keys when one is rate-limited.
type Harvester struct {
	cfg     *config.Config
	fetcher PageFetcher
	keys    *keys.Store
	sink    IDSink
	queries *query.Generator
	limiter *rate.Limiter
	Metrics *Metrics
}

// NewHarvester wires a harvester. metrics may be nil.
func NewHarvester(cfg *config.Config, fetcher PageFetcher, store *keys.Store, sink IDSink, metrics *Metrics) *Harvester {
	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	return &Harvester{
		cfg:     cfg,
		fetcher: fetcher,
		keys:    store,
		sink:    sink,
		queries: query.NewGenerator(cfg),
		limiter: rate.NewLimiter(limit, 1),
		Metrics: metrics,
	}
}

// Run harvests until the end date, the day limit, key exhaustion or cancellation.
// Key exhaustion is a normal stop; cancellation returns ctx.Err() alongside the partial result.
func (h *Harvester) Run(ctx context.Context) (*models.HarvestResult, error) {
	result := &models.HarvestResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	defer func() {
		result.EndTime = time.Now()
	}()

	day := models.SearchDay{Date: dateOnly(h.cfg.StartDate)}
	for {
		if reason, stop := h.shouldStop(ctx, day, len(result.Days)); stop {
			result.StopReason = reason
			break
		}

		h.Metrics.SetDay(day.Date)
		slog.Info("processing day", slog.String("date", day.Date.Format(time.DateOnly)))

		err := h.runDay(ctx, &day, result)
		result.Days = append(result.Days, day)
		result.TotalResults += day.Total
		result.LastSearchedOn = day.Date

		if errors.Is(err, keys.ErrKeysExhausted) {
			slog.Error("all API keys have exceeded their rate limits or are forbidden, stopping",
				slog.Int("keys", h.keys.Len()),
			)
			result.StopReason = StopKeysExhausted
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				result.StopReason = StopCanceled
			}
			return result, err
		}

		slog.Info("day complete",
			slog.String("date", day.Date.Format(time.DateOnly)),
			slog.Int("results", day.Total),
			slog.Int("total_results", result.TotalResults),
		)
		day = day.Previous()
	}

	slog.Info("harvest finished",
		slog.String("reason", result.StopReason),
		slog.Int("days", len(result.Days)),
		slog.Int("total_results", result.TotalResults),
		slog.Int("ids_written", result.IDsWritten),
	)
	return result, nil
}

func (h *Harvester) shouldStop(ctx context.Context, day models.SearchDay, daysDone int) (string, bool) {
	if ctx.Err() != nil {
		return StopCanceled, true
	}
	if !h.cfg.EndDate.IsZero() && day.Date.Before(dateOnly(h.cfg.EndDate)) {
		return StopEndDate, true
	}
	if h.cfg.MaxDays > 0 && daysDone >= h.cfg.MaxDays {
		return StopMaxDays, true
	}
	return "", false
}

func (h *Harvester) runDay(ctx context.Context, day *models.SearchDay, result *models.HarvestResult) error {
	for _, q := range h.queries.ForDay(day.Date) {
		n, err := h.RunQuery(ctx, q, result)
		day.Total += n
		if err != nil {
			return err
		}
	}
	return nil
}

// RunQuery runs q to completion, moving to the next key each time the current one is
// rate-limited and restarting q from the first page. It returns keys.ErrKeysExhausted
// when no key is left.
func (h *Harvester) RunQuery(ctx context.Context, q models.Query, result *models.HarvestResult) (int, error) {
	text := q.Text()
	for {
		key, idx, err := h.keys.Current()
		if err != nil {
			return 0, err
		}

		qr, err := h.processQuery(ctx, text, key, result)
		if err != nil {
			return qr.fetched, err
		}
		if !qr.limited {
			result.QueryCount++
			h.Metrics.IncQueries()
			if qr.fetched == 0 {
				slog.Warn("query returned no results", slog.String("query", text))
			}
			slog.Info("query complete",
				slog.String("query", text),
				slog.Int("results", qr.fetched),
			)
			return qr.fetched, nil
		}

		var forbidden ErrForbidden
		if errors.As(qr.limitErr, &forbidden) {
			if err := h.keys.RecordCorrupt(key); err != nil {
				slog.Warn("failed to record corrupt key", slog.Int("key_index", idx), slog.Any("error", err))
			} else {
				result.CorruptKeys++
				slog.Info("saved corrupt key", slog.Int("key_index", idx))
			}
		}

		if err := h.keys.Advance(); err != nil {
			return 0, err
		}
		result.KeyRotations++
		h.Metrics.IncRotations()
		slog.Info("switching API key",
			slog.Int("key_index", idx+1),
			slog.Int("remaining", h.keys.Remaining()),
		)
	}
}

type queryResult struct {
	fetched  int
	limited  bool
	limitErr error
}

// processQuery pages through one query with one key. A non-nil error is fatal for the run.
func (h *Harvester) processQuery(ctx context.Context, text, key string, result *models.HarvestResult) (queryResult, error) {
	var qr queryResult
	pageSize := h.cfg.PageSize

	slog.Info("starting search", slog.String("query", text))
	for start := 1; start <= h.cfg.MaxResults; start += pageSize {
		if err := h.limiter.Wait(ctx); err != nil {
			return qr, err
		}

		slog.Debug("fetching results", slog.Int("from", start), slog.Int("to", start+pageSize-1))
		res := h.fetcher.Fetch(ctx, FetchRequest{Query: text, Start: start, Key: key})
		result.RequestCount++

		switch res.Outcome {
		case OutcomeRateLimited:
			result.ErrorsByType[errorTypeLabel(res.Err)]++
			qr.limited = true
			qr.limitErr = res.Err
			return qr, nil
		case OutcomeFailed:
			if err := ctx.Err(); err != nil {
				return qr, err
			}
			result.ErrorsByType[errorTypeLabel(res.Err)]++
			result.FailedQueries++
			slog.Warn("no results returned or an error occurred, abandoning query",
				slog.String("query", text),
				slog.Int("start", start),
			)
			return qr, nil
		}

		items := 0
		if res.Page != nil {
			items = len(res.Page.Items)
		}
		if items == 0 {
			slog.Debug("page has no items", slog.Int("start", start))
			break
		}
		qr.fetched += items

		written, err := h.sink.WriteIDs(parser.ExtractBundleIDs(res.Page))
		result.IDsWritten += written
		h.Metrics.AddIDs(written)
		if err != nil {
			return qr, fmt.Errorf("persist ids: %w", err)
		}

		if items < pageSize {
			slog.Debug("fetched fewer results than page size, stopping",
				slog.Int("items", items),
				slog.Int("start", start),
			)
			break
		}
	}
	return qr, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
