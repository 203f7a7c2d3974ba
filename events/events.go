/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package events publishes round lifecycle events for external observers.
package events

import (
	"context"
	"time"
)

const (
	RoundStarted = "round.started"
	RoundEnded   = "round.ended"
	GameFinished = "game.finished"
)

type Event struct {
	Type   string         `json:"type"`
	Index  int            `json:"index"`
	Scores map[string]int `json:"scores,omitempty"`
	At     time.Time      `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
