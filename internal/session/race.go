package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/schedule"
	"github.com/MJE43/minigames/internal/store"
)

// RaceSession is one live race. Its tick task is the only writer to the race
// while it runs.
type RaceSession struct {
	id  uuid.UUID
	mgr *Manager

	// opMu serializes Start, Reset and close so a task is never stopped and
	// started at the same time. It is never taken by the tick.
	opMu sync.Mutex
	task *schedule.Task

	mu         sync.Mutex
	race       *games.Race
	startedAt  time.Time
	lastAccess time.Time
	closed     bool
}

// HorseView is a horse as shown to clients.
type HorseView struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Color         string  `json:"color"`
	Position      float64 `json:"position"`
	Speed         float64 `json:"speed"`
	Finished      bool    `json:"finished"`
	FinishSeconds string  `json:"finish_seconds,omitempty"`
	Place         int     `json:"place,omitempty"`
}

// RaceSnapshot is the client view of a race.
type RaceSnapshot struct {
	ID         uuid.UUID       `json:"id"`
	State      games.RaceState `json:"state"`
	TrackWidth float64         `json:"track_width"`
	Ticks      int             `json:"ticks"`
	Horses     []HorseView     `json:"horses"`
	Placings   []HorseView     `json:"placings"`

	// Raw engine state for rendering.
	Field       []games.Horse `json:"-"`
	FinishOrder []games.Horse `json:"-"`
}

func (s *RaceSession) ID() uuid.UUID { return s.id }

// Snapshot returns the current race state.
func (s *RaceSession) Snapshot() RaceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *RaceSession) snapshotLocked() RaceSnapshot {
	field := s.race.Horses()
	order := s.race.FinishOrder()

	places := make(map[int]int, len(order))
	placings := make([]HorseView, len(order))
	for i, h := range order {
		places[h.ID] = i + 1
		placings[i] = horseView(h, i+1)
	}
	horses := make([]HorseView, len(field))
	for i, h := range field {
		horses[i] = horseView(h, places[h.ID])
	}

	return RaceSnapshot{
		ID:          s.id,
		State:       s.race.State(),
		TrackWidth:  s.race.TrackWidth(),
		Ticks:       s.race.Ticks(),
		Horses:      horses,
		Placings:    placings,
		Field:       field,
		FinishOrder: order,
	}
}

func horseView(h games.Horse, place int) HorseView {
	v := HorseView{
		ID:       h.ID,
		Name:     h.Name,
		Color:    h.Color,
		Position: h.Position,
		Speed:    h.Speed,
		Finished: h.Finished(),
		Place:    place,
	}
	if h.FinishTime != nil {
		v.FinishSeconds = games.FinishSeconds(*h.FinishTime).StringFixed(2)
	}
	return v
}

// Start begins ticking an idle race.
func (s *RaceSession) Start() (RaceSnapshot, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return RaceSnapshot{}, ErrNotFound
	}
	if err := s.race.Start(); err != nil {
		s.mu.Unlock()
		return RaceSnapshot{}, err
	}
	now := s.mgr.opts.Now()
	s.startedAt = now
	s.lastAccess = now
	running := s.race.State() == games.RaceRacing
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if !running {
		return snap, nil
	}

	task, err := schedule.EveryWith(context.Background(), s.mgr.opts.NewTicker, s.mgr.opts.TickInterval, s.tick)
	if err != nil {
		return RaceSnapshot{}, err
	}
	s.task = task

	log.WithFields(log.Fields{
		"session": s.id,
		"horses":  len(snap.Horses),
	}).Info("Race started")
	return snap, nil
}

// Reset stops any running ticks and lines the field up again.
func (s *RaceSession) Reset() RaceSnapshot {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stopTaskLocked()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.race.Reset()
	s.lastAccess = s.mgr.opts.Now()
	return s.snapshotLocked()
}

func (s *RaceSession) tick(now time.Time) bool {
	s.mu.Lock()
	if s.closed || s.race.State() != games.RaceRacing {
		s.mu.Unlock()
		return false
	}

	s.race.Tick(now.Sub(s.startedAt))
	if !s.race.Finished() {
		s.mu.Unlock()
		return true
	}
	s.lastAccess = s.mgr.opts.Now()
	rec := store.RaceRecord{
		SessionID:  s.id,
		TrackWidth: s.race.TrackWidth(),
		Ticks:      s.race.Ticks(),
		Finishers:  s.race.FinishOrder(),
	}
	s.mu.Unlock()

	s.mgr.raceFinished(rec)
	return false
}

// stopTaskLocked stops the tick task. opMu must be held and mu must not be.
func (s *RaceSession) stopTaskLocked() {
	if s.task != nil {
		s.task.Stop()
		if err := s.task.Err(); err != nil {
			log.WithField("session", s.id).WithError(err).Error("Race tick failed")
		}
		s.task = nil
	}
}

func (s *RaceSession) close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopTaskLocked()
}

func (s *RaceSession) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.race.State() == games.RaceRacing
}

func (s *RaceSession) touch() {
	s.mu.Lock()
	s.lastAccess = s.mgr.opts.Now()
	s.mu.Unlock()
}

func (s *RaceSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}
