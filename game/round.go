/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/Seednode/triviabox/questions"
)

type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseOpen     Phase = "OPEN"
	PhaseScoring  Phase = "SCORING"
	PhaseFinished Phase = "FINISHED"
)

var transitions = map[Phase][]Phase{
	PhaseLobby:    {PhaseOpen, PhaseFinished},
	PhaseOpen:     {PhaseScoring},
	PhaseScoring:  {PhaseOpen, PhaseFinished},
	PhaseFinished: {},
}

// CanTransitionTo reports whether moving from p to next is allowed.
func (p Phase) CanTransitionTo(next Phase) bool {
	return slices.Contains(transitions[p], next)
}

// Round tracks the live phase and question index.
type Round struct {
	Index    int
	Phase    Phase
	OpenedAt time.Time
	Deadline time.Time

	bank *questions.Bank
}

func NewRound(bank *questions.Bank) *Round {
	return &Round{Phase: PhaseLobby, bank: bank}
}

func (r *Round) transition(next Phase) error {
	if !r.Phase.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Phase, next)
	}

	r.Phase = next

	return nil
}

func (r *Round) open(index int, now time.Time) error {
	q, ok := r.bank.At(index)
	if !ok {
		return fmt.Errorf("%w: no question %d", ErrInvalidTransition, index)
	}

	if err := r.transition(PhaseOpen); err != nil {
		return err
	}

	r.Index = index
	r.OpenedAt = now
	r.Deadline = now.Add(q.Limit())

	return nil
}

// Start opens the first question.
func (r *Round) Start(now time.Time) error {
	if r.Phase != PhaseLobby {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, r.Phase)
	}

	return r.open(0, now)
}

// Close stops accepting answers for the open question.
func (r *Round) Close() error {
	return r.transition(PhaseScoring)
}

// Advance opens the next question, or finishes the game after the last one.
func (r *Round) Advance(now time.Time) (finished bool, err error) {
	if r.Phase != PhaseScoring {
		return false, fmt.Errorf("%w: advance from %s", ErrInvalidTransition, r.Phase)
	}

	if r.Index+1 >= r.bank.Len() {
		return true, r.transition(PhaseFinished)
	}

	return false, r.open(r.Index+1, now)
}

// Finish ends the game. An open question must be closed first.
func (r *Round) Finish() error {
	return r.transition(PhaseFinished)
}

// Accepting reports whether answers for index are currently honoured.
func (r *Round) Accepting(index int) bool {
	return r.Phase == PhaseOpen && r.Index == index
}

// Question returns the question at the current index.
func (r *Round) Question() *questions.Question {
	q, _ := r.bank.At(r.Index)

	return q
}

func (r *Round) Total() int {
	return r.bank.Len()
}
