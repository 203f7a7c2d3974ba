/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Retrying wraps a Store and retries failed writes with linear backoff.
// Identity errors and context cancellation are returned immediately.
type Retrying struct {
	Store

	retries int
	backoff time.Duration
	clock   clockwork.Clock
}

func NewRetrying(s Store, retries int, backoff time.Duration, clock clockwork.Clock) *Retrying {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retries < 0 {
		retries = 0
	}

	return &Retrying{Store: s, retries: retries, backoff: backoff, clock: clock}
}

// InsertTeam treats a conflict as success when an earlier attempt failed
// without a definite answer, since that attempt may have committed.
func (r *Retrying) InsertTeam(ctx context.Context, team Team) error {
	var ambiguous bool

	return r.do(ctx, "insert team", func() error {
		err := r.Store.InsertTeam(ctx, team)
		switch {
		case errors.Is(err, ErrTeamExists) && ambiguous:
			log.Warn().Str("team", team.Name).Msg("team already stored by an earlier attempt")
			return nil
		case err != nil && !permanent(err):
			ambiguous = true
		}

		return err
	})
}

func (r *Retrying) UpdateTeam(ctx context.Context, team Team) error {
	return r.do(ctx, "update team", func() error { return r.Store.UpdateTeam(ctx, team) })
}

// InsertSubmission relies on the store ignoring a repeated (team, question)
// pair, so a retry after a lost acknowledgement writes nothing twice.
func (r *Retrying) InsertSubmission(ctx context.Context, sub Submission) error {
	return r.do(ctx, "insert submission", func() error { return r.Store.InsertSubmission(ctx, sub) })
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	var err error

	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || permanent(err) || attempt >= r.retries {
			return err
		}

		wait := r.backoff * time.Duration(attempt+1)

		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("store call failed, retrying")

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-r.clock.After(wait):
		}
	}
}

func permanent(err error) bool {
	return errors.Is(err, ErrTeamExists) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
