/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"fmt"
	"time"

	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/store"
)

type answerKey struct {
	team  string
	index int
}

// Score returns the points for an answer given after elapsed on a question
// with the given limit. A correct answer never scores below the limit in
// seconds, and at most twice that.
func Score(limit, elapsed time.Duration, correct bool) int {
	if !correct {
		return 0
	}

	t := int(limit / time.Second)
	e := max(int(elapsed/time.Second), 0)

	return max(t, 2*t-e)
}

// Ledger accumulates pending points and writes one submission per team
// for every committed round.
type Ledger struct {
	bank  *questions.Bank
	store store.Store

	answered  map[answerKey]bool
	committed map[int]bool
	backlog   []store.Submission
}

func NewLedger(bank *questions.Bank, s store.Store) *Ledger {
	return &Ledger{
		bank:      bank,
		store:     s,
		answered:  make(map[answerKey]bool),
		committed: make(map[int]bool),
	}
}

// RecordAnswer grades response and adds the points to the team's pending
// score. Only the first answer per team and question counts; ok is false
// for any later one.
func (l *Ledger) RecordAnswer(team *Team, index int, response string, elapsed time.Duration) (points int, ok bool) {
	q, exists := l.bank.At(index)
	if !exists {
		return 0, false
	}

	correct := q.Grade(response)

	return l.record(team, index, Score(q.Limit(), elapsed, correct), correct)
}

// RecordScore accepts a client-computed score, clamped to what a correct
// answer could have earned.
func (l *Ledger) RecordScore(team *Team, index int, points int) (int, bool) {
	q, exists := l.bank.At(index)
	if !exists {
		return 0, false
	}

	points = min(max(points, 0), 2*q.Time)

	return l.record(team, index, points, points > 0)
}

func (l *Ledger) record(team *Team, index, points int, solved bool) (int, bool) {
	key := answerKey{team: team.Name, index: index}
	if _, seen := l.answered[key]; seen {
		return 0, false
	}

	l.answered[key] = solved
	team.Pending += points

	return points, true
}

// Answered reports whether team already has an answer for index.
func (l *Ledger) Answered(team string, index int) bool {
	_, seen := l.answered[answerKey{team: team, index: index}]

	return seen
}

// CommitRound moves pending points into committed scores and persists one
// submission per team. A round is committed at most once. Submissions that
// fail to persist are kept and retried on the next commit or Flush.
func (l *Ledger) CommitRound(ctx context.Context, index int, teams []*Team) error {
	if l.committed[index] {
		return nil
	}
	l.committed[index] = true

	for _, team := range teams {
		l.backlog = append(l.backlog, store.Submission{
			Team:          team.Name,
			QuestionIndex: index,
			Points:        team.Pending,
			Solved:        l.answered[answerKey{team: team.Name, index: index}],
		})

		team.Committed += team.Pending
		team.Pending = 0
	}

	return l.Flush(ctx)
}

// Flush persists the backlog in order. It stops at the first failure and
// keeps that submission and everything after it for the next attempt.
func (l *Ledger) Flush(ctx context.Context) error {
	for i, sub := range l.backlog {
		if err := l.store.InsertSubmission(ctx, sub); err != nil {
			l.backlog = l.backlog[i:]

			return fmt.Errorf("%w: %d submissions not saved: %s question %d: %w",
				ErrStoreUnavailable, len(l.backlog), sub.Team, sub.QuestionIndex, err)
		}
	}

	l.backlog = nil

	return nil
}

// Backlog returns the number of submissions waiting to be persisted.
func (l *Ledger) Backlog() int {
	return len(l.backlog)
}
