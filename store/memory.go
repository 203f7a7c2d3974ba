/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// Memory is a Store for games that need no durability.
type Memory struct {
	mu          sync.Mutex
	teams       map[string]Team
	submissions []Submission
	submitted   map[submissionKey]bool
}

type submissionKey struct {
	team  string
	index int
}

func NewMemory() *Memory {
	return &Memory{
		teams:     make(map[string]Team),
		submitted: make(map[submissionKey]bool),
	}
}

func (m *Memory) InsertTeam(_ context.Context, team Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.teams[team.Name]; exists {
		return ErrTeamExists
	}

	team.Members = slices.Clone(team.Members)
	m.teams[team.Name] = team

	return nil
}

func (m *Memory) UpdateTeam(_ context.Context, team Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.teams[team.Name]
	if !exists {
		return ErrTeamNotFound
	}

	existing.Section = team.Section
	existing.Members = slices.Clone(team.Members)
	m.teams[team.Name] = existing

	return nil
}

func (m *Memory) InsertSubmission(_ context.Context, sub Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := submissionKey{team: sub.Team, index: sub.QuestionIndex}
	if m.submitted[key] {
		return nil
	}

	m.submitted[key] = true
	m.submissions = append(m.submissions, sub)

	return nil
}

func (m *Memory) Standings(_ context.Context) ([]Standing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := make(map[string]int, len(m.teams))
	for name := range m.teams {
		totals[name] = 0
	}
	for _, sub := range m.submissions {
		totals[sub.Team] += sub.Points
	}

	standings := make([]Standing, 0, len(totals))
	for name, points := range totals {
		standings = append(standings, Standing{Team: name, Points: points})
	}

	sortStandings(standings)

	return standings, nil
}

// Submissions returns a copy of the log in insertion order.
func (m *Memory) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.submissions)
}

// Team returns the stored record for name.
func (m *Memory) Team(name string) (Team, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	team, ok := m.teams[name]

	return team, ok
}

func (m *Memory) Close() {}

func sortStandings(s []Standing) {
	slices.SortFunc(s, func(a, b Standing) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.Team, b.Team)
	})
}
