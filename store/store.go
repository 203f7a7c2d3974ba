/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store persists teams and the append-only submission log.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTeamExists   = errors.New("team already exists")
	ErrTeamNotFound = errors.New("team not found")
)

type Team struct {
	Name      string
	Section   string
	Members   []string
	CreatedAt time.Time
}

type Submission struct {
	Team          string
	QuestionIndex int
	Points        int
	Solved        bool
}

// Standing is a team's total over all persisted submissions.
type Standing struct {
	Team   string `json:"team"`
	Points int    `json:"points"`
}

// Store is the durable side of the game. InsertTeam must be atomic with
// respect to name uniqueness and return ErrTeamExists on conflict.
// InsertSubmission keeps at most one row per team and question; repeating
// one is a no-op.
type Store interface {
	InsertTeam(ctx context.Context, team Team) error
	UpdateTeam(ctx context.Context, team Team) error
	InsertSubmission(ctx context.Context, sub Submission) error
	Standings(ctx context.Context) ([]Standing, error)
	Close()
}
