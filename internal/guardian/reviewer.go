package guardian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/meghshah/paisawatch/internal/alert"
	"github.com/meghshah/paisawatch/internal/metrics"
	"github.com/meghshah/paisawatch/internal/retry"
	"github.com/meghshah/paisawatch/internal/risk"
	"github.com/meghshah/paisawatch/internal/store"
)

// Reviewer periodically refreshes behavioral baselines and re-scores account
// posture, alerting guardians when an account drifts into elevated risk.
type Reviewer struct {
	service  *Service
	logger   *slog.Logger
	interval time.Duration
	stop     chan struct{}
	running  atomic.Bool
}

// NewReviewer creates an hourly account reviewer.
func NewReviewer(service *Service, logger *slog.Logger) *Reviewer {
	return &Reviewer{
		service:  service,
		logger:   logger,
		interval: time.Hour,
		stop:     make(chan struct{}),
	}
}

// WithInterval overrides the review cadence.
func (r *Reviewer) WithInterval(d time.Duration) *Reviewer {
	r.interval = d
	return r
}

// Running reports whether the review loop is active.
func (r *Reviewer) Running() bool {
	return r.running.Load()
}

// Start runs an immediate review pass, then repeats on the interval until the
// context is cancelled or Stop is called.
func (r *Reviewer) Start(ctx context.Context) {
	r.running.Store(true)
	defer r.running.Store(false)

	r.safeReview(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.safeReview(ctx)
		}
	}
}

// Stop signals the reviewer to stop.
func (r *Reviewer) Stop() {
	select {
	case r.stop <- struct{}{}:
	default:
	}
}

func (r *Reviewer) safeReview(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in account reviewer", "panic", fmt.Sprint(rec))
		}
	}()
	r.reviewAll(ctx)
}

func (r *Reviewer) reviewAll(ctx context.Context) {
	ids, err := r.service.store.ListAccounts(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "reviewer list accounts failed", "error", err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		r.reviewOne(ctx, id)
	}
	r.logger.InfoContext(ctx, "account review pass complete", "accounts", len(ids))
}

func (r *Reviewer) reviewOne(ctx context.Context, accountID string) {
	// Conflicts with a concurrent writer are transient; a vanished account
	// is not.
	err := retry.Do(ctx, 3, 200*time.Millisecond, func() error {
		_, err := r.service.RefreshBaseline(ctx, accountID)
		if errors.Is(err, store.ErrConflict) {
			return err
		}
		if err != nil {
			return retry.Permanent(err)
		}
		return nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "baseline refresh failed", "accountId", accountID, "error", err)
		return
	}
	metrics.BaselineRefreshesTotal.Inc()

	assessment, err := r.service.AccountRisk(ctx, accountID)
	if err != nil {
		r.logger.WarnContext(ctx, "account scoring failed", "accountId", accountID, "error", err)
		return
	}

	if assessment.Level == risk.LevelHigh || assessment.Level == risk.LevelCritical {
		r.service.alerts.Emit(ctx, alert.New(accountID, alert.TypeAccountReview,
			fmt.Sprintf("account posture is %s (score %.3f): %s",
				assessment.Level, assessment.Score, assessment.Recommendation)).
			WithRisk(assessment).WithMeta("level", string(assessment.Level)))
	}
}
