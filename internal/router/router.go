// Package router decides, per account, whether to query the account's custom
// endpoints, fall back to the shared pool, or remove a stale term file.
package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/hotterms/internal/account"
	"github.com/JakeFAU/hotterms/internal/logging"
	"github.com/JakeFAU/hotterms/internal/metrics"
	"github.com/JakeFAU/hotterms/internal/policy/ratelimit"
	"github.com/JakeFAU/hotterms/internal/source"
	"github.com/JakeFAU/hotterms/internal/termfile"
	"github.com/JakeFAU/hotterms/internal/terms"
)

// DefaultEndpointDelay is the pause between consecutive endpoint fetches.
const DefaultEndpointDelay = time.Second

// DefaultRule matches the custom hot-search API: {"code":200,"data":[{"title":..}]}.
var DefaultRule = source.Rule{
	ItemsPath:  "data",
	TitleField: "title",
	StatusPath: "code",
	StatusOK:   "200",
}

// Fetcher retrieves one source; it never fails, it returns an empty batch.
type Fetcher interface {
	Fetch(ctx context.Context, src source.Source) terms.Batch
}

// Destination persists or removes term files.
type Destination interface {
	Write(ctx context.Context, name string, set terms.Set) (termfile.Result, error)
	Remove(ctx context.Context, name string) (bool, error)
}

// Pauser blocks between endpoint fetches.
type Pauser interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Config is fixed for the lifetime of a Router.
type Config struct {
	APIEnabled    bool
	BaseURL       string
	Rule          source.Rule
	EndpointDelay time.Duration
	// Concurrency above 1 fetches an account's endpoints in parallel, with
	// request starts still spaced by EndpointDelay.
	Concurrency int
}

// Decision is the routing result for one account.
type Decision string

// Routing decisions.
const (
	DecisionRemoved  Decision = "removed"
	DecisionSkipped  Decision = "skipped"
	DecisionCustom   Decision = "custom"
	DecisionFallback Decision = "fallback"
	DecisionEmpty    Decision = "empty"
)

// Reasons an account is not queried.
const (
	ReasonAPIDisabled        = "api disabled"
	ReasonNoEndpoints        = "no endpoints"
	ReasonMalformedEndpoints = "malformed endpoints"
	ReasonMissingEmail       = "missing email"
)

// Outcome reports what happened to one account's destination.
type Outcome struct {
	Account   string   `json:"account"`
	Decision  Decision `json:"decision"`
	Reason    string   `json:"reason,omitempty"`
	Endpoints int      `json:"endpoints"`
	Terms     int      `json:"terms"`
	Location  string   `json:"location,omitempty"`
	Digest    string   `json:"digest,omitempty"`
	Error     string   `json:"error,omitempty"`
	Err       error    `json:"-"`
}

// Router applies the per-account decision procedure.
type Router struct {
	cfg     Config
	fetcher Fetcher
	dest    Destination
	pauser  Pauser
	logger  *zap.Logger
}

// New builds a Router.
func New(cfg Config, fetcher Fetcher, dest Destination, pauser Pauser, logger *zap.Logger) *Router {
	if cfg.Rule == (source.Rule{}) {
		cfg.Rule = DefaultRule
	}
	if cfg.EndpointDelay < 0 {
		cfg.EndpointDelay = 0
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Router{
		cfg:     cfg,
		fetcher: fetcher,
		dest:    dest,
		pauser:  pauser,
		logger:  logging.Component(logger, "router"),
	}
}

// Route processes one account. fallback is read-only. Route never fails; a
// destination fault is recorded in the Outcome.
func (r *Router) Route(ctx context.Context, acct account.Account, fallback terms.Set) Outcome {
	out := Outcome{Account: acct.Email}
	log := r.logger.With(zap.String("account", acct.Email))

	if strings.TrimSpace(acct.Email) == "" {
		out.Decision, out.Reason = DecisionSkipped, ReasonMissingEmail
		log.Error("Skipping account without email")
		return r.finish(out)
	}
	name := termfile.AccountName(acct.Email)

	endpoints, reason := r.endpoints(acct)
	if reason != "" {
		out.Reason = reason
		log.Info("Account not queried; removing stale term file if present",
			zap.String("reason", reason),
			zap.String("endpoints_kind", acct.Endpoints.Kind().String()),
		)
		removed, err := r.dest.Remove(ctx, name)
		out.Decision = DecisionSkipped
		if removed {
			out.Decision = DecisionRemoved
		}
		return r.finish(r.withErr(out, err))
	}

	out.Endpoints = len(endpoints)
	log.Info("Querying custom endpoints", zap.Int("endpoints", len(endpoints)))
	collected := r.collect(ctx, log, endpoints)

	var chosen terms.Set
	switch {
	case !collected.Empty():
		out.Decision, chosen = DecisionCustom, collected
		log.Info("Custom endpoints returned terms", zap.Int("terms", collected.Len()))
	case !fallback.Empty():
		out.Decision, chosen = DecisionFallback, fallback
		log.Warn("Custom endpoints returned nothing; using fallback pool", zap.Int("terms", fallback.Len()))
	default:
		out.Decision = DecisionEmpty
		log.Warn("No terms available from custom endpoints or fallback pool; not writing")
		return r.finish(out)
	}

	res, err := r.dest.Write(ctx, name, chosen)
	out.Terms, out.Location, out.Digest = res.Terms, res.Location, res.Digest
	return r.finish(r.withErr(out, err))
}

// endpoints returns the endpoints to query, or the reason the account is not
// queried.
func (r *Router) endpoints(acct account.Account) ([]string, string) {
	if !r.cfg.APIEnabled {
		return nil, ReasonAPIDisabled
	}
	switch acct.Endpoints.Kind() {
	case account.EndpointsList:
		list := acct.Endpoints.List()
		if len(list) == 0 {
			return nil, ReasonNoEndpoints
		}
		return list, ""
	case account.EndpointsMalformed:
		return nil, ReasonMalformedEndpoints
	default:
		return nil, ReasonNoEndpoints
	}
}

func (r *Router) endpointSource(endpoint string) source.Source {
	return source.Source{
		Name: "endpoint:" + endpoint,
		Kind: source.KindStructuredAPI,
		URL:  source.JoinURL(r.cfg.BaseURL, endpoint),
		Rule: r.cfg.Rule,
	}
}

func (r *Router) collect(ctx context.Context, log *zap.Logger, endpoints []string) terms.Set {
	if r.cfg.Concurrency > 1 && len(endpoints) > 1 {
		return r.collectConcurrent(ctx, log, endpoints)
	}
	var set terms.Set
	for i, endpoint := range endpoints {
		if i > 0 && r.cfg.EndpointDelay > 0 {
			if err := r.pauser.Sleep(ctx, r.cfg.EndpointDelay); err != nil {
				log.Warn("Endpoint pause interrupted; skipping remaining endpoints",
					zap.Int("remaining", len(endpoints)-i), zap.Error(err))
				break
			}
			metrics.ObserveEndpointPause(r.cfg.EndpointDelay)
		}
		set.AddBatch(r.fetcher.Fetch(ctx, r.endpointSource(endpoint)))
	}
	return set
}

// collectConcurrent fetches every endpoint with bounded parallelism and merges
// the batches in declaration order.
func (r *Router) collectConcurrent(ctx context.Context, log *zap.Logger, endpoints []string) terms.Set {
	limiter := ratelimit.New(ratelimit.Config{Interval: r.cfg.EndpointDelay})
	batches := make([]terms.Batch, len(endpoints))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, endpoint := range endpoints {
		src := r.endpointSource(endpoint)
		g.Go(func() error {
			if err := limiter.Wait(ctx, src.URL); err != nil {
				log.Warn("Endpoint skipped", zap.String("source", src.Name), zap.Error(err))
				return nil
			}
			batches[i] = r.fetcher.Fetch(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return terms.NewSet(batches...)
}

func (r *Router) withErr(out Outcome, err error) Outcome {
	if err != nil {
		out.Err = err
		out.Error = err.Error()
	}
	return out
}

func (r *Router) finish(out Outcome) Outcome {
	metrics.ObserveRoute(string(out.Decision))
	return out
}
