package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/dedup"
	"github.com/MikeSquared-Agency/clerk/internal/metrics"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// ErrStoreUnavailable wraps any failure of the persistent store. The commit
// may be retried by the caller; the gateway never retries on its own.
var ErrStoreUnavailable = errors.New("store unavailable")

// Outcome of a commit that reached the store.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDuplicate Outcome = "duplicate_rejected"
)

// Result describes a finished commit. For a duplicate, Record is the
// return that was already stored under the same key.
type Result struct {
	Outcome  Outcome        `json:"outcome"`
	DedupKey string         `json:"dedup_key"`
	Record   returns.Record `json:"record"`
}

// Store is the persistence the gateway needs: a lookup and a single atomic
// insert-or-reject keyed by dedup key.
type Store interface {
	Get(ctx context.Context, dedupKey string) (returns.Record, error)
	InsertIfAbsent(ctx context.Context, r returns.Record) (returns.Record, bool, error)
}

// Notifier is told about every finished commit, after the atomic unit.
type Notifier interface {
	Notify(ctx context.Context, res Result) error
}

type Gateway struct {
	store     Store
	timeout   time.Duration
	notifiers []Notifier
	logger    *slog.Logger
}

func New(store Store, timeout time.Duration, logger *slog.Logger, notifiers ...Notifier) *Gateway {
	return &Gateway{store: store, timeout: timeout, notifiers: notifiers, logger: logger}
}

// Commit validates r, derives its dedup key and inserts it unless a return
// with that key already exists. Incomplete records fail with
// returns.ErrIncomplete and invalid ones with a *returns.ValidationError;
// neither touches the store.
func (g *Gateway) Commit(ctx context.Context, r returns.Record) (Result, error) {
	if missing := r.Fields().Missing(); len(missing) > 0 {
		metrics.CommitsTotal.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("%w: missing %s", returns.ErrIncomplete, returns.JoinLabels(missing))
	}
	if err := returns.Validate(r); err != nil {
		metrics.CommitsTotal.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	r.DedupKey = dedup.Key(r)

	insertCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		insertCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	stored, inserted, err := g.store.InsertIfAbsent(insertCtx, r)
	metrics.CommitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CommitsTotal.WithLabelValues("store_unavailable").Inc()
		g.logger.Error("commit failed", "dedup_key", r.DedupKey, "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	res := Result{Outcome: OutcomeDuplicate, DedupKey: r.DedupKey, Record: stored}
	if inserted {
		res.Outcome = OutcomeCommitted
	}
	metrics.CommitsTotal.WithLabelValues(string(res.Outcome)).Inc()

	g.logger.Info("commit finished",
		"outcome", res.Outcome,
		"dedup_key", res.DedupKey,
		"id", stored.ID.String(),
		"seq", stored.Seq,
	)

	g.notify(ctx, res)
	return res, nil
}

// Lookup returns the stored return with the given dedup key.
func (g *Gateway) Lookup(ctx context.Context, dedupKey string) (returns.Record, error) {
	return g.store.Get(ctx, dedupKey)
}

func (g *Gateway) notify(ctx context.Context, res Result) {
	for _, n := range g.notifiers {
		if err := n.Notify(ctx, res); err != nil {
			g.logger.Warn("commit notification failed", "dedup_key", res.DedupKey, "error", err)
		}
	}
}
