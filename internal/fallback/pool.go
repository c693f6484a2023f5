// Package fallback builds the shared pool of trending terms from the
// always-available public sources.
package fallback

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/logging"
	"github.com/JakeFAU/hotterms/internal/metrics"
	"github.com/JakeFAU/hotterms/internal/source"
	"github.com/JakeFAU/hotterms/internal/terms"
)

// DefaultSources are queried when no fallback sources are configured.
func DefaultSources() []source.Source {
	return []source.Source{
		{
			Name: "baidu-realtime",
			Kind: source.KindHTMLScrape,
			URL:  "https://top.baidu.com/board?tab=realtime",
			Rule: source.Rule{Selector: "div.c-single-text-ellipsis"},
		},
		{
			Name: "vvhan-weibo",
			Kind: source.KindStructuredAPI,
			URL:  "https://api.vvhan.com/api/hotlist/wbHot",
			Rule: source.Rule{ItemsPath: "data", TitleField: "title"},
		},
		{
			Name: "vvhan-toutiao",
			Kind: source.KindStructuredAPI,
			URL:  "https://api.vvhan.com/api/hotlist/toutiao",
			Rule: source.Rule{ItemsPath: "data", TitleField: "title"},
		},
	}
}

// Fetcher retrieves one source.
type Fetcher interface {
	Fetch(ctx context.Context, src source.Source) terms.Batch
}

// Pool unions the configured fallback sources.
type Pool struct {
	sources []source.Source
	fetcher Fetcher
	logger  *zap.Logger
}

// NewPool builds a Pool. A nil sources slice selects DefaultSources; an empty
// non-nil slice disables the pool.
func NewPool(sources []source.Source, fetcher Fetcher, logger *zap.Logger) *Pool {
	if sources == nil {
		sources = DefaultSources()
	}
	return &Pool{
		sources: append([]source.Source(nil), sources...),
		fetcher: fetcher,
		logger:  logging.Component(logger, "fallback"),
	}
}

// Sources returns the sources the pool queries, in order.
func (p *Pool) Sources() []source.Source {
	return append([]source.Source(nil), p.sources...)
}

// Build queries every source in order and returns the deduplicated union.
// Source failures contribute nothing; Build itself never fails.
func (p *Pool) Build(ctx context.Context) terms.Set {
	start := time.Now()
	var pool terms.Set
	for _, src := range p.sources {
		if ctx.Err() != nil {
			p.logger.Warn("Fallback pool build interrupted", zap.Error(ctx.Err()))
			break
		}
		added := pool.AddBatch(p.fetcher.Fetch(ctx, src))
		p.logger.Debug("Fallback source merged",
			zap.String("source", src.Label()),
			zap.Int("new_terms", added),
		)
	}
	metrics.SetFallbackPoolSize(pool.Len())
	p.logger.Info("Fallback pool built",
		zap.Int("sources", len(p.sources)),
		zap.Int("terms", pool.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return pool
}
