// Package events publishes game completion events.
package events

import (
	"context"

	"github.com/google/uuid"
)

// Type names an event and doubles as its NATS subject.
type Type string

const (
	RaceFinished     Type = "minigames.race.finished"
	LotteryCompleted Type = "minigames.lottery.completed"
)

// Event is anything that can be published.
type Event interface {
	Type() Type
}

// Placing is one horse's result in a RaceFinishedEvent.
type Placing struct {
	Place         int    `json:"place"`
	HorseID       int    `json:"horse_id"`
	Name          string `json:"name"`
	FinishSeconds string `json:"finish_seconds"`
}

// RaceFinishedEvent fires when the last horse crosses the line.
type RaceFinishedEvent struct {
	SessionID  uuid.UUID `json:"session_id"`
	TrackWidth float64   `json:"track_width"`
	Ticks      int       `json:"ticks"`
	Placings   []Placing `json:"placings"`
}

func (RaceFinishedEvent) Type() Type { return RaceFinished }

// LotteryCompletedEvent fires when the last winning card is revealed.
type LotteryCompletedEvent struct {
	SessionID    uuid.UUID `json:"session_id"`
	TotalCards   int       `json:"total_cards"`
	WinningCards int       `json:"winning_cards"`
	Reveals      int       `json:"reveals"`
}

func (LotteryCompletedEvent) Type() Type { return LotteryCompleted }

// Publisher sends events to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}
