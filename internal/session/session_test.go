package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/minigames/internal/engine"
	"github.com/MJE43/minigames/internal/events"
	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/schedule"
	"github.com/MJE43/minigames/internal/store"
)

type tickerPool struct {
	mu      sync.Mutex
	tickers []*schedule.ManualTicker
}

func (p *tickerPool) New(time.Duration) schedule.Ticker {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := schedule.NewManualTicker()
	p.tickers = append(p.tickers, t)
	return t
}

func (p *tickerPool) Last() *schedule.ManualTicker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tickers[len(p.tickers)-1]
}

func (p *tickerPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tickers)
}

type fakeRecorder struct {
	mu        sync.Mutex
	races     []store.RaceRecord
	lotteries []store.LotteryRecord
}

func (r *fakeRecorder) SaveRace(_ context.Context, rec store.RaceRecord) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.races = append(r.races, rec)
	return uuid.New(), nil
}

func (r *fakeRecorder) SaveLottery(_ context.Context, rec store.LotteryRecord) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lotteries = append(r.lotteries, rec)
	return uuid.New(), nil
}

func (r *fakeRecorder) counts() (races, lotteries int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.races), len(r.lotteries)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	mgr     *Manager
	tickers *tickerPool
	rec     *fakeRecorder
	pub     *fakePublisher
	clock   *clock
	start   time.Time
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h := &harness{
		tickers: &tickerPool{},
		rec:     &fakeRecorder{},
		pub:     &fakePublisher{},
		clock:   &clock{now: start},
		start:   start,
	}
	rules := games.DefaultRaceRules()
	rules.MinSpeed, rules.MaxSpeed = 5, 5
	opts := Options{
		TickInterval: 50 * time.Millisecond,
		Rules:        rules,
		NewTicker:    h.tickers.New,
		Now:          h.clock.Now,
		Recorder:     h.rec,
		Publisher:    h.pub,
		NewSource:    func() engine.Source { return engine.NewSequence(0.5) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.mgr = NewManager(opts)
	t.Cleanup(h.mgr.Close)
	return h
}

func (h *harness) fire(t *testing.T, n int) {
	t.Helper()
	ticker := h.tickers.Last()
	for i := 1; i <= n; i++ {
		require.True(t, ticker.Fire(h.start.Add(time.Duration(i)*50*time.Millisecond)), "tick %d", i)
	}
}

func TestLotterySessionMasksHiddenWinners(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.mgr.CreateLottery(5, 2)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 5, snap.TotalCards)
	assert.False(t, snap.Over)
	for _, c := range snap.Cards {
		assert.False(t, c.IsWinner, "card %d leaked", c.ID)
	}

	// Sequence(0.5) puts the winners at 2 and 3.
	res, err := s.Reveal(2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delta)
	assert.True(t, res.IsWinner)
	assert.True(t, res.Snapshot.Cards[2].IsWinner)
	assert.False(t, res.Snapshot.Cards[3].IsWinner)

	res, err = s.Reveal(3)
	require.NoError(t, err)
	assert.True(t, res.Snapshot.Over)
	assert.Equal(t, 0, res.Snapshot.Remaining)
}

func TestLotteryCompletionRecordedOnce(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.mgr.CreateLottery(5, 2)
	require.NoError(t, err)

	for _, id := range []int{0, 2, 3, 4, 3} {
		_, err := s.Reveal(id)
		require.NoError(t, err)
	}
	_, lotteries := h.rec.counts()
	assert.Equal(t, 1, lotteries)
	assert.Equal(t, 3, h.rec.lotteries[0].Reveals)
	assert.Equal(t, s.ID(), h.rec.lotteries[0].SessionID)

	published := h.pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.LotteryCompleted, published[0].Type())

	snap, err := s.Reset()
	require.NoError(t, err)
	assert.False(t, snap.Over)
	assert.Zero(t, snap.Reveals)
	for _, id := range []int{2, 3} {
		_, err := s.Reveal(id)
		require.NoError(t, err)
	}
	_, lotteries = h.rec.counts()
	assert.Equal(t, 2, lotteries)
}

func TestLotterySessionErrors(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.mgr.CreateLottery(3, 4)
	assert.ErrorIs(t, err, games.ErrInvalidLotteryConfig)
	_, err = h.mgr.CreateLottery(defaultMaxCards+1, 1)
	assert.ErrorIs(t, err, games.ErrInvalidLotteryConfig)

	s, err := h.mgr.CreateLottery(3, 1)
	require.NoError(t, err)
	_, err = s.Reveal(7)
	assert.ErrorIs(t, err, games.ErrCardNotFound)

	_, err = h.mgr.Lottery(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, h.mgr.DeleteLottery(s.ID()))
	assert.ErrorIs(t, h.mgr.DeleteLottery(s.ID()), ErrNotFound)
}

func TestCreateLotteryHonoursMaxCards(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxCards = 10 })

	s, err := h.mgr.CreateLottery(10, 2)
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().Cards, 10)

	_, err = h.mgr.CreateLottery(11, 2)
	assert.ErrorIs(t, err, games.ErrInvalidLotteryConfig)
	lotteries, _ := h.mgr.Counts()
	assert.Equal(t, 1, lotteries)
}

func TestRaceSessionRunsToFinish(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.mgr.CreateRace(RaceConfig{Names: []string{"Comet", "Blaze"}, Count: 3, TrackWidth: 300})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, games.RaceIdle, snap.State)
	require.Len(t, snap.Horses, 3)
	assert.Equal(t, "Horse 3", snap.Horses[2].Name)

	snap, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, games.RaceRacing, snap.State)

	h.fire(t, 60)
	require.Eventually(t, func() bool {
		races, _ := h.rec.counts()
		return races == 1
	}, time.Second, 5*time.Millisecond)

	snap = s.Snapshot()
	assert.Equal(t, games.RaceFinished, snap.State)
	assert.Equal(t, 60, snap.Ticks)
	require.Len(t, snap.Placings, 3)
	for i, p := range snap.Placings {
		assert.Equal(t, i+1, p.Place)
		assert.Equal(t, i+1, p.ID)
		assert.Equal(t, "3.00", p.FinishSeconds)
	}

	// The task ended with the race, so the ticker is stopped.
	assert.False(t, h.tickers.Last().Fire(h.start.Add(time.Hour)))

	published := h.pub.all()
	require.Len(t, published, 1)
	finished, ok := published[0].(events.RaceFinishedEvent)
	require.True(t, ok)
	assert.Equal(t, "Comet", finished.Placings[0].Name)
	assert.Equal(t, "3.00", finished.Placings[0].FinishSeconds)
}

func TestRaceSessionStartErrors(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.mgr.CreateRace(RaceConfig{Count: 1, TrackWidth: 5})
	require.NoError(t, err)

	_, err = s.Start()
	require.NoError(t, err)
	_, err = s.Start()
	assert.ErrorIs(t, err, games.ErrRaceInProgress)

	h.fire(t, 1)
	require.Eventually(t, func() bool {
		return s.Snapshot().State == games.RaceFinished
	}, time.Second, 5*time.Millisecond)

	_, err = s.Start()
	assert.ErrorIs(t, err, games.ErrRaceFinished)

	snap := s.Reset()
	assert.Equal(t, games.RaceIdle, snap.State)
	_, err = s.Start()
	assert.NoError(t, err)
	assert.Equal(t, 2, h.tickers.Len())
}

func TestRaceSessionResetStopsTicks(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.mgr.CreateRace(RaceConfig{Count: 2, TrackWidth: 300})
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	h.fire(t, 10)
	ticker := h.tickers.Last()

	snap := s.Reset()
	assert.Equal(t, games.RaceIdle, snap.State)
	assert.Zero(t, snap.Ticks)
	for _, hv := range snap.Horses {
		assert.Zero(t, hv.Position)
	}

	assert.False(t, ticker.Fire(h.start.Add(time.Minute)), "no tick after reset")
	assert.Zero(t, s.Snapshot().Ticks)
	races, _ := h.rec.counts()
	assert.Zero(t, races)
}

func TestCreateRaceRejectsInvalid(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.MaxHorses = 4
		o.MaxWidth = 1000
	})

	tests := []struct {
		name string
		cfg  RaceConfig
	}{
		{"no horses", RaceConfig{TrackWidth: 300}},
		{"zero width", RaceConfig{Count: 2}},
		{"too many horses", RaceConfig{Count: 5, TrackWidth: 300}},
		{"track too long", RaceConfig{Count: 2, TrackWidth: 1001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.mgr.CreateRace(tt.cfg)
			assert.ErrorIs(t, err, games.ErrInvalidRaceConfig)
		})
	}
	_, races := h.mgr.Counts()
	assert.Zero(t, races)
}

func TestDeleteRaceStopsTicks(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.mgr.CreateRace(RaceConfig{Count: 2, TrackWidth: 300})
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)
	h.fire(t, 3)

	require.NoError(t, h.mgr.DeleteRace(s.ID()))
	assert.False(t, h.tickers.Last().Fire(h.start.Add(time.Minute)))
	_, err = h.mgr.Race(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Start()
	assert.Error(t, err)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.TTL = time.Hour })

	idle, err := h.mgr.CreateLottery(4, 1)
	require.NoError(t, err)
	idleRace, err := h.mgr.CreateRace(RaceConfig{Count: 2, TrackWidth: 300})
	require.NoError(t, err)
	running, err := h.mgr.CreateRace(RaceConfig{Count: 2, TrackWidth: 300})
	require.NoError(t, err)
	_, err = running.Start()
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	fresh, err := h.mgr.CreateLottery(4, 1)
	require.NoError(t, err)

	h.clock.Advance(31 * time.Minute)
	assert.Equal(t, 2, h.mgr.Sweep())

	_, err = h.mgr.Lottery(idle.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.mgr.Race(idleRace.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.mgr.Lottery(fresh.ID())
	assert.NoError(t, err)
	_, err = h.mgr.Race(running.ID())
	assert.NoError(t, err)
}

func TestManagerClose(t *testing.T) {
	h := newHarness(t, nil)
	s, err := h.mgr.CreateRace(RaceConfig{Count: 2, TrackWidth: 300})
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)
	ticker := h.tickers.Last()

	h.mgr.Close()
	h.mgr.Close()

	assert.False(t, ticker.Fire(h.start.Add(time.Second)))
	_, err = h.mgr.CreateLottery(3, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.mgr.CreateRace(RaceConfig{Count: 1, TrackWidth: 10})
	assert.ErrorIs(t, err, ErrClosed)
}
