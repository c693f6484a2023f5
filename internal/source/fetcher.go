package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/logging"
	"github.com/JakeFAU/hotterms/internal/metrics"
	"github.com/JakeFAU/hotterms/internal/terms"
)

// Default request timeouts per source kind.
const (
	DefaultAPITimeout    = 10 * time.Second
	DefaultScrapeTimeout = 15 * time.Second
)

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

const apiAccept = "application/json, text/plain, */*"

// Fetch outcomes recorded in metrics.
const (
	outcomeSuccess    = "success"
	outcomeNetwork    = "network_error"
	outcomeBadPayload = "bad_payload"
	outcomeInvalid    = "invalid_source"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	APITimeout    time.Duration
	ScrapeTimeout time.Duration
}

// Fetcher retrieves sources through Colly collectors. It never returns an
// error: failures become empty batches plus a log entry.
type Fetcher struct {
	api    *colly.Collector
	scrape *colly.Collector
	logger *zap.Logger
}

// ErrHTTPStatus marks a response outside the 2xx range.
var ErrHTTPStatus = errors.New("non-2xx response")

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Each kind gets its own base collector so the two
// timeouts never share an http.Client.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = DefaultScrapeTimeout
	}
	return &Fetcher{
		api:    newCollector(cfg.UserAgent, cfg.APITimeout),
		scrape: newCollector(cfg.UserAgent, cfg.ScrapeTimeout),
		logger: logging.Component(logger, "source"),
	}
}

func newCollector(userAgent string, timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	// Every status reaches OnResponse; the 2xx check lives there.
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(timeout)
	return c
}

// Fetch retrieves one source and extracts its terms.
func (f *Fetcher) Fetch(ctx context.Context, src Source) terms.Batch {
	log := f.logger.With(
		zap.String("source", src.Label()),
		zap.String("kind", string(src.Kind)),
		zap.String("url", src.URL),
	)
	if err := src.Validate(); err != nil {
		log.Error("Skipping invalid source", zap.Error(err))
		metrics.ObserveFetch(src.URL, string(src.Kind), outcomeInvalid, 0, 0)
		return terms.Batch{}
	}

	log.Info("Fetching source")
	start := time.Now()
	body, err := f.get(ctx, src)
	if err != nil {
		log.Warn("Source fetch failed", zap.Duration("dur", time.Since(start)), zap.Error(err))
		metrics.ObserveFetch(src.URL, string(src.Kind), outcomeNetwork, 0, time.Since(start))
		return terms.Batch{}
	}

	var batch terms.Batch
	switch src.Kind {
	case KindStructuredAPI:
		batch, err = extractJSON(body, src.Rule)
	case KindHTMLScrape:
		batch, err = extractHTML(body, src.Rule.Selector)
	}
	if err != nil {
		log.Warn("Source payload rejected", zap.Int("bytes", len(body)), zap.Error(err))
		metrics.ObserveFetch(src.URL, string(src.Kind), outcomeBadPayload, 0, time.Since(start))
		return terms.Batch{}
	}

	log.Info("Source fetched", zap.Int("terms", len(batch)), zap.Duration("dur", time.Since(start)))
	metrics.ObserveFetch(src.URL, string(src.Kind), outcomeSuccess, len(batch), time.Since(start))
	return batch
}

type fetchResult struct {
	body []byte
	err  error
}

// get performs a single GET; non-2xx responses surface as errors from Colly.
func (f *Fetcher) get(ctx context.Context, src Source) ([]byte, error) {
	base := f.scrape
	if src.Kind == KindStructuredAPI {
		base = f.api
	}
	collector := base.Clone()

	done := make(chan fetchResult, 1)
	go func() {
		var (
			body     []byte
			fetchErr error
		)
		configureHooks(collector, src.Kind, &body, &fetchErr)
		if err := collector.Visit(src.URL); err != nil {
			done <- fetchResult{err: fmt.Errorf("colly visit failed: %w", err)}
			return
		}
		if fetchErr != nil {
			done <- fetchResult{err: fmt.Errorf("colly response failed: %w", fetchErr)}
			return
		}
		done <- fetchResult{body: body}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case res := <-done:
		return res.body, res.err
	}
}

func configureHooks(hooks collectorHooks, kind Kind, body *[]byte, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		if kind == KindStructuredAPI {
			r.Headers.Set("Accept", apiAccept)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, ErrHTTPStatus)
			return
		}
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		*fetchErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}
