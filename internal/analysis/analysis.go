// Package analysis runs many seeded races in parallel and reports how the
// race balance plays out per lane.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MJE43/minigames/internal/engine"
	"github.com/MJE43/minigames/internal/games"
)

var (
	ErrInvalidRequest = errors.New("invalid analysis request")
)

const (
	MaxRaces      = 100000
	MaxHorses     = 100
	MaxTrackWidth = 100000

	batchSize     = 64
	ctxCheckTicks = 1024
	analysisLabel = "race-analysis"
)

// Request describes a batch of simulated races.
type Request struct {
	Horses     int     `json:"horses"`
	TrackWidth float64 `json:"track_width"`
	Races      int     `json:"races"`
	Seed       string  `json:"seed"`
	TimeoutMs  int     `json:"timeout_ms,omitempty"`
}

// Validate checks the request bounds.
func (r Request) Validate() error {
	if err := games.ValidateRaceConfig(r.Horses, r.TrackWidth); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Horses > MaxHorses {
		return fmt.Errorf("%w: at most %d horses", ErrInvalidRequest, MaxHorses)
	}
	if r.TrackWidth > MaxTrackWidth {
		return fmt.Errorf("%w: track width at most %d", ErrInvalidRequest, MaxTrackWidth)
	}
	if r.Races < 1 || r.Races > MaxRaces {
		return fmt.Errorf("%w: races must be between 1 and %d", ErrInvalidRequest, MaxRaces)
	}
	return nil
}

// LaneStats aggregates one lane across all races.
type LaneStats struct {
	Lane      int     `json:"lane"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	MeanPlace float64 `json:"mean_place"`
}

// Summary is the outcome of an analysis run.
type Summary struct {
	Races      int         `json:"races"`
	Lanes      []LaneStats `json:"lanes"`
	MeanTicks  float64     `json:"mean_ticks"`
	MinTicks   int         `json:"min_ticks"`
	MaxTicks   int         `json:"max_ticks"`
	MeanSpread float64     `json:"mean_spread_ticks"`
	ElapsedMs  int64       `json:"elapsed_ms"`
	TimedOut   bool        `json:"timed_out,omitempty"`
	Echo       Request     `json:"echo"`
}

// outcome is a single simulated race.
type outcome struct {
	places []int // places[lane] is 1-based
	ticks  int
	spread int // ticks between first and last finisher
}

type job struct {
	start, end int // race indices, inclusive
}

// Analyzer simulates races across a worker pool.
type Analyzer struct {
	workerCount int
	rules       games.RaceRules
}

// NewAnalyzer creates an analyzer with one worker per CPU.
func NewAnalyzer(rules games.RaceRules) *Analyzer {
	return &Analyzer{
		workerCount: runtime.GOMAXPROCS(0),
		rules:       rules,
	}
}

// Run simulates req.Races races. Race i is driven by an HMAC source keyed by
// req.Seed and i, so a seed always reproduces the same summary. On timeout the
// races finished so far are summarized and TimedOut is set.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	jobs := make(chan job, a.workerCount*2)
	outcomes := make(chan outcome, a.workerCount*batchSize)

	var simulated uint64
	var wg sync.WaitGroup
	entrants := games.BuildEntrants(req.Horses, nil, nil, "")
	for i := 0; i < a.workerCount; i++ {
		wg.Add(1)
		go a.work(ctx, &wg, jobs, outcomes, req, entrants, &simulated)
	}
	go generateJobs(ctx, jobs, req.Races)
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	sum := collect(outcomes, req.Horses)
	sum.ElapsedMs = time.Since(start).Milliseconds()
	sum.TimedOut = ctx.Err() != nil && int(atomic.LoadUint64(&simulated)) < req.Races
	sum.Echo = req
	return sum, nil
}

func (a *Analyzer) work(ctx context.Context, wg *sync.WaitGroup, jobs <-chan job, out chan<- outcome,
	req Request, entrants []games.Entrant, simulated *uint64) {
	defer wg.Done()

	maxTicks := int(math.Ceil(req.TrackWidth/a.rules.MinSpeed)) + 1
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			for i := j.start; i <= j.end; i++ {
				if ctx.Err() != nil {
					return
				}
				src := engine.NewHMACSource(req.Seed, analysisLabel, uint64(i), 0)
				o, ok := simulate(ctx, games.NewRaceWithRules(src, entrants, req.TrackWidth, a.rules), maxTicks)
				if !ok {
					continue
				}
				atomic.AddUint64(simulated, 1)
				select {
				case out <- o:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// simulate runs a race to the end. Finish times are tick counts.
func simulate(ctx context.Context, r *games.Race, maxTicks int) (outcome, bool) {
	if r.Start() != nil {
		return outcome{}, false
	}
	for tick := 1; !r.Finished(); tick++ {
		if tick > maxTicks {
			return outcome{}, false
		}
		if tick%ctxCheckTicks == 0 && ctx.Err() != nil {
			return outcome{}, false
		}
		r.Tick(time.Duration(tick))
	}

	order := r.FinishOrder()
	o := outcome{places: make([]int, len(order)), ticks: r.Ticks()}
	for place, h := range order {
		o.places[h.ID-1] = place + 1
	}
	if len(order) > 0 {
		o.spread = int(*order[len(order)-1].FinishTime - *order[0].FinishTime)
	}
	return o, true
}

func generateJobs(ctx context.Context, jobs chan<- job, races int) {
	defer close(jobs)
	for current := 0; current < races; {
		end := current + batchSize - 1
		if end >= races {
			end = races - 1
		}
		select {
		case jobs <- job{start: current, end: end}:
			current = end + 1
		case <-ctx.Done():
			return
		}
	}
}

func collect(outcomes <-chan outcome, horses int) *Summary {
	wins := make([]int, horses)
	placeSums := make([]int, horses)
	var (
		n, tickSum, spreadSum int
		minTicks, maxTicks    int
	)

	for o := range outcomes {
		n++
		tickSum += o.ticks
		spreadSum += o.spread
		if n == 1 || o.ticks < minTicks {
			minTicks = o.ticks
		}
		if o.ticks > maxTicks {
			maxTicks = o.ticks
		}
		for lane, place := range o.places {
			placeSums[lane] += place
			if place == 1 {
				wins[lane]++
			}
		}
	}

	sum := &Summary{Races: n, MinTicks: minTicks, MaxTicks: maxTicks, Lanes: make([]LaneStats, horses)}
	for lane := range sum.Lanes {
		sum.Lanes[lane] = LaneStats{Lane: lane + 1, Wins: wins[lane]}
		if n > 0 {
			sum.Lanes[lane].WinRate = float64(wins[lane]) / float64(n)
			sum.Lanes[lane].MeanPlace = float64(placeSums[lane]) / float64(n)
		}
	}
	if n > 0 {
		sum.MeanTicks = float64(tickSum) / float64(n)
		sum.MeanSpread = float64(spreadSum) / float64(n)
	}
	return sum
}
