/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"slices"
	"time"
)

type Status struct {
	Phase       Phase      `json:"phase"`
	Question    int        `json:"question"`
	Questions   int        `json:"questions"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Teams       int        `json:"teams"`
	Connections int        `json:"connections"`
	Backlog     int        `json:"backlog"`
	Warnings    []string   `json:"warnings"`
}

// TeamView is a copy of a team's state, safe to use outside the coordinator.
type TeamView struct {
	Name      string   `json:"name"`
	Section   string   `json:"section,omitempty"`
	Members   []string `json:"members,omitempty"`
	Committed int      `json:"committed"`
	Pending   int      `json:"pending"`
	Connected bool     `json:"connected"`
}

// VisibleScores returns the committed scores of connected teams.
func (c *Coordinator) VisibleScores(ctx context.Context) (map[string]int, error) {
	var scores map[string]int

	err := c.query(ctx, func() {
		scores = c.registry.VisibleScores()
	})

	return scores, err
}

func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	var s Status

	err := c.query(ctx, func() {
		s = Status{
			Phase:       c.round.Phase,
			Question:    c.round.Index,
			Questions:   c.round.Total(),
			Teams:       c.registry.Len(),
			Connections: len(c.conns),
			Backlog:     c.ledger.Backlog(),
			Warnings:    slices.Clone(c.warnings),
		}
		if c.round.Phase == PhaseOpen {
			deadline := c.round.Deadline
			s.Deadline = &deadline
		}
	})

	return s, err
}

func (c *Coordinator) Teams(ctx context.Context) ([]TeamView, error) {
	var views []TeamView

	err := c.query(ctx, func() {
		for _, team := range c.registry.Teams() {
			views = append(views, TeamView{
				Name:      team.Name,
				Section:   team.Section,
				Members:   slices.Clone(team.Members),
				Committed: team.Committed,
				Pending:   team.Pending,
				Connected: team.Connected,
			})
		}
	})

	return views, err
}
