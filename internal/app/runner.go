package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/account"
	"github.com/JakeFAU/hotterms/internal/logging"
	"github.com/JakeFAU/hotterms/internal/metrics"
	"github.com/JakeFAU/hotterms/internal/router"
	"github.com/JakeFAU/hotterms/internal/termfile"
	"github.com/JakeFAU/hotterms/internal/terms"
)

// EventRunSummary is the event kind attached to published run summaries.
const EventRunSummary = "run.summary"

// ErrRunnerNotConfigured is returned when a Runner is missing a collaborator.
var ErrRunnerNotConfigured = errors.New("runner is missing a required collaborator")

// Pool builds the shared fallback term set.
type Pool interface {
	Build(ctx context.Context) terms.Set
}

// AccountRouter produces or removes one account's term file.
type AccountRouter interface {
	Route(ctx context.Context, acct account.Account, fallback terms.Set) router.Outcome
}

// Destination writes term files.
type Destination interface {
	Write(ctx context.Context, name string, set terms.Set) (termfile.Result, error)
}

// Publisher announces a finished run.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

// Summary reports one run.
type Summary struct {
	RunID         string           `json:"run_id"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	FallbackTerms int              `json:"fallback_terms"`
	Default       *termfile.Result `json:"default,omitempty"`
	DefaultError  string           `json:"default_error,omitempty"`
	Outcomes      []router.Outcome `json:"outcomes"`
}

// Count returns how many accounts ended with decision d.
func (s Summary) Count(d router.Decision) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Decision == d {
			n++
		}
	}
	return n
}

// Failures returns how many destinations could not be written or removed,
// including default.txt.
func (s Summary) Failures() int {
	n := 0
	if s.DefaultError != "" {
		n++
	}
	for _, o := range s.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// RunnerDeps are the collaborators of a Runner. Publisher is optional.
type RunnerDeps struct {
	Pool        Pool
	Router      AccountRouter
	Destination Destination
	Clock       Clock
	Publisher   Publisher
}

// RunnerConfig holds the optional end-of-run side effects.
type RunnerConfig struct {
	PushgatewayURL string
	MetricsJob     string
}

// Runner executes one run: fallback pool, default.txt, every account, then the
// summary side effects.
type Runner struct {
	deps   RunnerDeps
	cfg    RunnerConfig
	logger *zap.Logger
}

// NewRunner builds a Runner.
func NewRunner(deps RunnerDeps, cfg RunnerConfig, logger *zap.Logger) *Runner {
	return &Runner{deps: deps, cfg: cfg, logger: logging.Component(logger, "app")}
}

// Run processes accounts in order under runID. Per-destination failures are
// recorded in the Summary; Run only fails when it cannot start.
func (r *Runner) Run(ctx context.Context, runID string, accounts []account.Account) (Summary, error) {
	if r.deps.Pool == nil || r.deps.Router == nil || r.deps.Destination == nil || r.deps.Clock == nil {
		return Summary{}, ErrRunnerNotConfigured
	}

	summary := Summary{
		RunID:     runID,
		StartedAt: r.deps.Clock.Now(),
		Outcomes:  make([]router.Outcome, 0, len(accounts)),
	}
	r.logger.Info("Run started", zap.Int("accounts", len(accounts)))

	pool := r.deps.Pool.Build(ctx)
	summary.FallbackTerms = pool.Len()
	if pool.Empty() {
		r.logger.Warn("Fallback pool is empty; no default term list available")
	} else {
		res, err := r.deps.Destination.Write(ctx, termfile.DefaultName, pool)
		if err != nil {
			summary.DefaultError = err.Error()
			r.logger.Error("Failed to write default term list", zap.Error(err))
		} else {
			summary.Default = &res
		}
	}

	for _, acct := range accounts {
		out := r.deps.Router.Route(ctx, acct, pool)
		if out.Err != nil {
			r.logger.Error("Account destination failed",
				zap.String("account", out.Account),
				zap.String("decision", string(out.Decision)),
				zap.Error(out.Err),
			)
		}
		summary.Outcomes = append(summary.Outcomes, out)
	}

	summary.FinishedAt = r.deps.Clock.Now()
	metrics.MarkRunFinished(summary.FinishedAt)
	r.logger.Info("Run finished",
		zap.Int("fallback_terms", summary.FallbackTerms),
		zap.Int("custom", summary.Count(router.DecisionCustom)),
		zap.Int("fallback", summary.Count(router.DecisionFallback)),
		zap.Int("removed", summary.Count(router.DecisionRemoved)),
		zap.Int("skipped", summary.Count(router.DecisionSkipped)),
		zap.Int("empty", summary.Count(router.DecisionEmpty)),
		zap.Int("failures", summary.Failures()),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	r.publish(ctx, summary)
	r.pushMetrics(ctx)
	return summary, nil
}

func (r *Runner) publish(ctx context.Context, summary Summary) {
	if r.deps.Publisher == nil {
		return
	}
	id, err := r.deps.Publisher.Publish(ctx, EventRunSummary, summary)
	if err != nil {
		r.logger.Warn("Failed to publish run summary", zap.Error(err))
		return
	}
	r.logger.Info("Published run summary", zap.String("message_id", id))
}

func (r *Runner) pushMetrics(ctx context.Context) {
	if r.cfg.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(ctx, r.cfg.PushgatewayURL, r.cfg.MetricsJob); err != nil {
		r.logger.Warn("Failed to push metrics", zap.String("gateway", r.cfg.PushgatewayURL), zap.Error(err))
		return
	}
	r.logger.Debug("Pushed metrics", zap.String("gateway", r.cfg.PushgatewayURL))
}
