package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/aluiziolira/go-harvest-apps/models"
	"github.com/aluiziolira/go-harvest-apps/parser"
	"github.com/gocolly/colly/v2"
)

// Outcome tags the result of a single page fetch.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRateLimited
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchRequest identifies one page of one query, made with one key.
type FetchRequest struct {
	Query string
	Start int
	Key   string
}

// FetchResult is Ok(page), RateLimited or Failed. Err is set for the latter two.
type FetchResult struct {
	Outcome    Outcome
	Page       *models.SearchPage
	StatusCode int
	Err        error
}

// PageFetcher fetches a single page of search results.
type PageFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) FetchResult
}

const (
	ctxKeyStatus = "status"
	ctxKeyBody   = "body"
)

// Fetcher is a PageFetcher backed by a synchronous colly collector.
type Fetcher struct {
	cfg       *config.Config
	endpoint  *url.URL
	collector *colly.Collector
	metrics   *Metrics
}

// NewFetcher builds a fetcher for the configured search endpoint.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	endpoint, err := url.Parse(cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("search url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(endpoint.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		r.Ctx.Put(ctxKeyBody, r.Body)
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r == nil {
			return
		}
		ctx := r.Ctx
		if ctx == nil && r.Request != nil {
			ctx = r.Request.Ctx
		}
		if ctx != nil {
			ctx.Put(ctxKeyStatus, r.StatusCode)
		}
	})

	return &Fetcher{
		cfg:       cfg,
		endpoint:  endpoint,
		collector: collector,
		metrics:   metrics,
	}, nil
}

// Fetch issues one GET for req and classifies the response.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	if err := ctx.Err(); err != nil {
		return FetchResult{Outcome: OutcomeFailed, Err: err}
	}

	reqCtx := colly.NewContext()
	started := time.Now()
	err := f.collector.Request(http.MethodGet, f.requestURL(req), nil, reqCtx, nil)
	f.metrics.ObserveDuration(time.Since(started))

	status, _ := reqCtx.GetAny(ctxKeyStatus).(int)
	result := FetchResult{StatusCode: status}

	if err != nil {
		result.Err = classifyError(err, status)
		result.Outcome = OutcomeFailed
		if exhaustsKey(result.Err) {
			result.Outcome = OutcomeRateLimited
		}
		f.record(req, result)
		return result
	}

	body, _ := reqCtx.GetAny(ctxKeyBody).([]byte)
	page, err := parser.ParseSearchPage(body)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = ErrDecode{Err: err}
		f.record(req, result)
		return result
	}

	result.Outcome = OutcomeOK
	result.Page = page
	f.record(req, result)
	return result
}

func (f *Fetcher) requestURL(req FetchRequest) string {
	params := url.Values{}
	params.Set("key", req.Key)
	params.Set("cx", f.cfg.EngineID)
	params.Set("q", req.Query)
	params.Set("start", strconv.Itoa(req.Start))
	params.Set("num", strconv.Itoa(f.cfg.PageSize))
	params.Set("gl", f.cfg.Country)

	u := *f.endpoint
	u.RawQuery = params.Encode()
	return u.String()
}

func (f *Fetcher) record(req FetchRequest, result FetchResult) {
	f.metrics.IncRequest(result.Outcome.String())
	if result.Outcome == OutcomeOK {
		return
	}

	category := errorTypeLabel(result.Err)
	f.metrics.IncError(category)
	slog.Error("search request failed",
		slog.String("outcome", result.Outcome.String()),
		slog.String("category", category),
		slog.Int("status", result.StatusCode),
		slog.Int("start", req.Start),
		slog.Any("error", result.Err),
	)
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
	}

	return err
}
