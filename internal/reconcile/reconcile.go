// Package reconcile copies evaluation outcomes from the platform into the
// ledger for contacts that are still pending.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"conversation-stream/internal/evaluagent"
	"conversation-stream/internal/types"
)

type Ledger interface {
	Pending(ctx context.Context) ([]types.ContactRecord, error)
	UpdateOutcome(ctx context.Context, id int64, outcome string) error
}

type Evaluations interface {
	Evaluations(ctx context.Context, from, to time.Time) ([]evaluagent.Evaluation, error)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Pending   int `json:"pending"`
	Updated   int `json:"updated"`
	Remaining int `json:"remaining"`
}

type Reconciler struct {
	ledger Ledger
	evals  Evaluations
	window time.Duration
	now    func() time.Time
	log    *logrus.Entry
}

// New reconciles against evaluations published within window of now.
func New(l Ledger, e Evaluations, window time.Duration, log *logrus.Entry) *Reconciler {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Reconciler{ledger: l, evals: e, window: window, now: time.Now, log: log.WithField("component", "reconcile")}
}

// Once runs a single pass. Any API error ends the pass.
func (r *Reconciler) Once(ctx context.Context) (Result, error) {
	pending, err := r.ledger.Pending(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Pending: len(pending), Remaining: len(pending)}
	if len(pending) == 0 {
		return res, nil
	}

	now := r.now()
	evs, err := r.evals.Evaluations(ctx, now.Add(-r.window), now)
	if err != nil {
		return res, err
	}
	// latest published_at wins; equal times keep the first seen
	outcomes := map[string]string{}
	published := map[string]time.Time{}
	for _, ev := range evs {
		if ev.Outcome == "" {
			continue
		}
		for _, ref := range ev.ContactReferences {
			if at, seen := published[ref]; seen && !ev.PublishedAt.After(at) {
				continue
			}
			outcomes[ref] = ev.Outcome
			published[ref] = ev.PublishedAt
		}
	}

	for _, rec := range pending {
		outcome, ok := outcomes[rec.Reference]
		if !ok {
			continue
		}
		if err := r.ledger.UpdateOutcome(ctx, rec.ID, outcome); err != nil {
			return res, err
		}
		res.Updated++
		res.Remaining--
	}
	r.log.WithFields(logrus.Fields{
		"pending":   res.Pending,
		"updated":   res.Updated,
		"remaining": res.Remaining,
	}).Info("reconciliation pass complete")
	return res, nil
}

var errStillPending = errors.New("outcomes still pending")

// Schedule is the default polling cadence; maxElapsed bounds the whole poll.
func Schedule(maxElapsed time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 30 * time.Second
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = maxElapsed
	return b
}

// Poll repeats Once on schedule until nothing is pending or the schedule
// gives up. API errors stop polling immediately; they are not retried.
// Running out of schedule is not an error: the returned Result still has
// Remaining > 0.
func (r *Reconciler) Poll(ctx context.Context, schedule backoff.BackOff) (Result, error) {
	var last Result
	op := func() error {
		res, err := r.Once(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		last.Pending = res.Pending
		last.Remaining = res.Remaining
		last.Updated += res.Updated
		if res.Remaining > 0 {
			return errStillPending
		}
		return nil
	}
	notify := func(_ error, wait time.Duration) {
		r.log.WithFields(logrus.Fields{"remaining": last.Remaining, "next_poll": wait.String()}).Info("waiting for evaluations")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(schedule, ctx), notify)
	if errors.Is(err, errStillPending) {
		r.log.WithField("remaining", last.Remaining).Warn("polling stopped with outcomes still pending")
		return last, nil
	}
	return last, err
}
