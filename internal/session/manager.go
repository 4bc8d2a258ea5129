// Package session hosts live lottery and race games keyed by id.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/engine"
	"github.com/MJE43/minigames/internal/events"
	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/schedule"
	"github.com/MJE43/minigames/internal/store"
)

var (
	// ErrNotFound is returned for an unknown or expired session id.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned once the manager has shut down.
	ErrClosed = errors.New("session manager closed")
)

// Recorder stores completed games. *store.Store satisfies it.
type Recorder interface {
	SaveRace(ctx context.Context, rec store.RaceRecord) (uuid.UUID, error)
	SaveLottery(ctx context.Context, rec store.LotteryRecord) (uuid.UUID, error)
}

// NoopRecorder discards results.
type NoopRecorder struct{}

func (NoopRecorder) SaveRace(context.Context, store.RaceRecord) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (NoopRecorder) SaveLottery(context.Context, store.LotteryRecord) (uuid.UUID, error) {
	return uuid.Nil, nil
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	TTL          time.Duration // idle sessions older than this are dropped; 0 disables expiry
	TickInterval time.Duration
	MinHorses    int
	MaxHorses    int
	MaxCards     int     // largest lottery board
	MaxWidth     float64 // longest race track
	Palette      []string
	NamePattern  string

	Rules     games.RaceRules
	NewSource func() engine.Source
	NewTicker schedule.TickerFunc
	Now       func() time.Time

	Recorder  Recorder
	Publisher events.Publisher
}

const (
	defaultTickInterval = 50 * time.Millisecond
	defaultMaxHorses    = 10
	defaultMaxCards     = 100
	defaultMaxWidth     = 10000
	hookTimeout         = 5 * time.Second
	maxJanitorPeriod    = time.Minute
)

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.MinHorses < 1 {
		o.MinHorses = 1
	}
	if o.MaxHorses < o.MinHorses {
		o.MaxHorses = defaultMaxHorses
	}
	if o.MaxCards < 1 {
		o.MaxCards = defaultMaxCards
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = defaultMaxWidth
	}
	if o.Rules == (games.RaceRules{}) {
		o.Rules = games.DefaultRaceRules()
	}
	if o.NewSource == nil {
		o.NewSource = engine.NewSource
	}
	if o.NewTicker == nil {
		o.NewTicker = schedule.NewRealTicker
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Recorder == nil {
		o.Recorder = NoopRecorder{}
	}
	if o.Publisher == nil {
		o.Publisher = events.NewNoopPublisher()
	}
	return o
}

// Manager owns every live session.
type Manager struct {
	opts Options

	mu        sync.Mutex
	lotteries map[uuid.UUID]*LotterySession
	races     map[uuid.UUID]*RaceSession
	closed    bool

	janitor *schedule.Task
}

// NewManager creates a manager and, when opts.TTL is set, starts the janitor.
func NewManager(opts Options) *Manager {
	m := &Manager{
		opts:      opts.withDefaults(),
		lotteries: make(map[uuid.UUID]*LotterySession),
		races:     make(map[uuid.UUID]*RaceSession),
	}

	if m.opts.TTL > 0 {
		period := m.opts.TTL / 2
		if period > maxJanitorPeriod {
			period = maxJanitorPeriod
		}
		task, err := schedule.Every(context.Background(), period, func(time.Time) bool {
			m.Sweep()
			return true
		})
		if err != nil {
			log.WithError(err).Error("Failed to start session janitor")
		}
		m.janitor = task
	}
	return m
}

// --------- Lottery ---------

// CreateLottery deals a new board.
func (m *Manager) CreateLottery(totalCards, winningCards int) (*LotterySession, error) {
	if totalCards > m.opts.MaxCards {
		return nil, fmt.Errorf("%w: at most %d cards", games.ErrInvalidLotteryConfig, m.opts.MaxCards)
	}
	lottery, err := games.NewLottery(m.opts.NewSource(), totalCards, winningCards)
	if err != nil {
		return nil, err
	}
	s := &LotterySession{
		id:         uuid.New(),
		mgr:        m,
		lottery:    lottery,
		lastAccess: m.opts.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.lotteries[s.id] = s

	log.WithFields(log.Fields{
		"session": s.id,
		"cards":   totalCards,
		"winners": winningCards,
	}).Info("Lottery session created")
	return s, nil
}

// Lottery returns the session and marks it as used.
func (m *Manager) Lottery(id uuid.UUID) (*LotterySession, error) {
	m.mu.Lock()
	s, ok := m.lotteries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("lottery %s: %w", id, ErrNotFound)
	}
	s.touch()
	return s, nil
}

// DeleteLottery drops a lottery session.
func (m *Manager) DeleteLottery(id uuid.UUID) error {
	m.mu.Lock()
	_, ok := m.lotteries[id]
	delete(m.lotteries, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("lottery %s: %w", id, ErrNotFound)
	}
	log.WithField("session", id).Info("Lottery session deleted")
	return nil
}

// --------- Race ---------

// RaceConfig describes a race to line up. Count may exceed len(Names); extra
// lanes get generated names. When Count is zero, len(Names) is used.
type RaceConfig struct {
	Count      int
	Names      []string
	TrackWidth float64
}

// CreateRace lines up a race in the Idle state. Invalid configurations are
// rejected before any session exists.
func (m *Manager) CreateRace(cfg RaceConfig) (*RaceSession, error) {
	count := cfg.Count
	if count == 0 {
		count = len(cfg.Names)
	}
	if err := games.ValidateRaceConfig(count, cfg.TrackWidth); err != nil {
		return nil, err
	}
	if count < m.opts.MinHorses || count > m.opts.MaxHorses {
		return nil, fmt.Errorf("%w: horses must be between %d and %d", games.ErrInvalidRaceConfig, m.opts.MinHorses, m.opts.MaxHorses)
	}
	if cfg.TrackWidth > m.opts.MaxWidth {
		return nil, fmt.Errorf("%w: track width at most %g", games.ErrInvalidRaceConfig, m.opts.MaxWidth)
	}

	entrants := games.BuildEntrants(count, cfg.Names, m.opts.Palette, m.opts.NamePattern)
	s := &RaceSession{
		id:         uuid.New(),
		mgr:        m,
		race:       games.NewRaceWithRules(m.opts.NewSource(), entrants, cfg.TrackWidth, m.opts.Rules),
		lastAccess: m.opts.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.races[s.id] = s

	log.WithFields(log.Fields{
		"session":    s.id,
		"horses":     count,
		"trackWidth": cfg.TrackWidth,
	}).Info("Race session created")
	return s, nil
}

// Race returns the session and marks it as used.
func (m *Manager) Race(id uuid.UUID) (*RaceSession, error) {
	m.mu.Lock()
	s, ok := m.races[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("race %s: %w", id, ErrNotFound)
	}
	s.touch()
	return s, nil
}

// DeleteRace stops a race's ticks and drops it.
func (m *Manager) DeleteRace(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.races[id]
	delete(m.races, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("race %s: %w", id, ErrNotFound)
	}
	s.close()
	log.WithField("session", id).Info("Race session deleted")
	return nil
}

// --------- Lifecycle ---------

// Sweep drops sessions idle for longer than the TTL and returns how many were
// removed. Running races are never idle.
func (m *Manager) Sweep() int {
	if m.opts.TTL <= 0 {
		return 0
	}
	cutoff := m.opts.Now().Add(-m.opts.TTL)

	m.mu.Lock()
	var expiredRaces []*RaceSession
	removed := 0
	for id, s := range m.lotteries {
		if s.idleSince().Before(cutoff) {
			delete(m.lotteries, id)
			removed++
		}
	}
	for id, s := range m.races {
		if s.running() {
			continue
		}
		if s.idleSince().Before(cutoff) {
			delete(m.races, id)
			expiredRaces = append(expiredRaces, s)
			removed++
		}
	}
	m.mu.Unlock()

	for _, s := range expiredRaces {
		s.close()
	}
	if removed > 0 {
		log.WithField("count", removed).Info("Expired idle sessions")
	}
	return removed
}

// Counts returns the number of live lottery and race sessions.
func (m *Manager) Counts() (lotteries, races int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lotteries), len(m.races)
}

// Close stops the janitor and every race. Later creates fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	races := make([]*RaceSession, 0, len(m.races))
	for _, s := range m.races {
		races = append(races, s)
	}
	m.races = make(map[uuid.UUID]*RaceSession)
	m.lotteries = make(map[uuid.UUID]*LotterySession)
	m.mu.Unlock()

	if m.janitor != nil {
		m.janitor.Stop()
	}
	for _, s := range races {
		s.close()
	}
	log.WithField("races", len(races)).Info("Session manager closed")
}

// --------- Completion hooks ---------

func (m *Manager) lotteryCompleted(rec store.LotteryRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	fields := log.Fields{"session": rec.SessionID, "reveals": rec.Reveals}
	if _, err := m.opts.Recorder.SaveLottery(ctx, rec); err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to record lottery result")
	}
	err := m.opts.Publisher.Publish(ctx, events.LotteryCompletedEvent{
		SessionID:    rec.SessionID,
		TotalCards:   rec.TotalCards,
		WinningCards: rec.WinningCards,
		Reveals:      rec.Reveals,
	})
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to publish lottery result")
	}
	log.WithFields(fields).Info("Lottery completed")
}

func (m *Manager) raceFinished(rec store.RaceRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	fields := log.Fields{"session": rec.SessionID, "ticks": rec.Ticks}
	if _, err := m.opts.Recorder.SaveRace(ctx, rec); err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to record race result")
	}

	placings := make([]events.Placing, len(rec.Finishers))
	for i, h := range rec.Finishers {
		placings[i] = events.Placing{Place: i + 1, HorseID: h.ID, Name: h.Name}
		if h.FinishTime != nil {
			placings[i].FinishSeconds = games.FinishSeconds(*h.FinishTime).StringFixed(2)
		}
	}
	err := m.opts.Publisher.Publish(ctx, events.RaceFinishedEvent{
		SessionID:  rec.SessionID,
		TrackWidth: rec.TrackWidth,
		Ticks:      rec.Ticks,
		Placings:   placings,
	})
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to publish race result")
	}
	if len(placings) > 0 {
		fields["winner"] = placings[0].Name
	}
	log.WithFields(fields).Info("Race finished")
}
