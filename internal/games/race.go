package games

import (
	"math"
	"sort"
	"time"

	"github.com/MJE43/minigames/internal/engine"
)

// RaceState is the lifecycle stage of a race.
type RaceState string

const (
	RaceIdle     RaceState = "idle"
	RaceRacing   RaceState = "racing"
	RaceFinished RaceState = "finished"
)

// RaceRules holds the balance constants of the race. The defaults define the
// feel of the game; other values exist for tests and analysis.
type RaceRules struct {
	InitialSpeedMin float64 // initial speed is uniform in [InitialSpeedMin, InitialSpeedMax)
	InitialSpeedMax float64
	Perturbation    float64 // per-tick speed change is uniform in [-Perturbation, +Perturbation)
	BoostThreshold  float64 // fraction of track a horse must trail the leader by to get a boost
	BoostFactor     float64 // boost = gap / trackWidth * BoostFactor
	MinSpeed        float64
	MaxSpeed        float64
}

// DefaultRaceRules returns the standard race balance.
func DefaultRaceRules() RaceRules {
	return RaceRules{
		InitialSpeedMin: 0.5,
		InitialSpeedMax: 2.0,
		Perturbation:    0.75,
		BoostThreshold:  0.1,
		BoostFactor:     1.5,
		MinSpeed:        0.5,
		MaxSpeed:        5,
	}
}

// Entrant is a horse as configured before the race.
type Entrant struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Horse is a competitor on the track.
type Horse struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	Color      string         `json:"color"`
	Position   float64        `json:"position"`
	Speed      float64        `json:"speed"`
	FinishTime *time.Duration `json:"finish_time,omitempty"`
}

// Finished reports whether the horse has crossed the line.
func (h Horse) Finished() bool { return h.FinishTime != nil }

// ValidateRaceConfig rejects configurations the engine would short-circuit.
func ValidateRaceConfig(horses int, trackWidth float64) error {
	if horses < 1 || trackWidth <= 0 || math.IsNaN(trackWidth) || math.IsInf(trackWidth, 0) {
		return ErrInvalidRaceConfig
	}
	return nil
}

// Race advances horses on a fixed-length track one tick at a time.
// It is not safe for concurrent use.
type Race struct {
	rules       RaceRules
	src         engine.Source
	trackWidth  float64
	entrants    []Entrant
	horses      []Horse
	finishOrder []int // indices into horses
	state       RaceState
	ticks       int
}

// NewRace lines up entrants with the default rules.
func NewRace(src engine.Source, entrants []Entrant, trackWidth float64) *Race {
	return NewRaceWithRules(src, entrants, trackWidth, DefaultRaceRules())
}

// NewRaceWithRules lines up entrants with custom rules.
func NewRaceWithRules(src engine.Source, entrants []Entrant, trackWidth float64, rules RaceRules) *Race {
	r := &Race{
		rules:      rules,
		src:        src,
		trackWidth: trackWidth,
		entrants:   append([]Entrant(nil), entrants...),
	}
	r.Reset()
	return r
}

// Reset discards all horses and lines up fresh ones in the Idle state.
func (r *Race) Reset() {
	r.horses = make([]Horse, len(r.entrants))
	for i, e := range r.entrants {
		r.horses[i] = Horse{
			ID:    i + 1,
			Name:  e.Name,
			Color: e.Color,
			Speed: engine.Uniform(r.src, r.rules.InitialSpeedMin, r.rules.InitialSpeedMax),
		}
	}
	r.finishOrder = nil
	r.ticks = 0
	r.state = RaceIdle
}

// Start moves an idle race to Racing and clears the finish list.
// A malformed race goes straight to Finished.
func (r *Race) Start() error {
	switch r.state {
	case RaceRacing:
		return ErrRaceInProgress
	case RaceFinished:
		return ErrRaceFinished
	}

	r.finishOrder = nil
	if ValidateRaceConfig(len(r.horses), r.trackWidth) != nil {
		r.state = RaceFinished
		return nil
	}
	r.state = RaceRacing
	return nil
}

// Tick advances every unfinished horse once. elapsed is the time since the race
// started and becomes the finish time of any horse that crosses the line now.
// It returns the horses that finished on this tick.
func (r *Race) Tick(elapsed time.Duration) []Horse {
	if r.state != RaceRacing {
		return nil
	}
	if ValidateRaceConfig(len(r.horses), r.trackWidth) != nil {
		r.state = RaceFinished
		return nil
	}
	if elapsed < 0 {
		elapsed = 0
	}
	r.ticks++

	lead := r.leadPosition()
	var justFinished []Horse
	for i := range r.horses {
		h := &r.horses[i]
		if h.Finished() {
			continue
		}

		speed := h.Speed + engine.Uniform(r.src, -r.rules.Perturbation, r.rules.Perturbation)
		if gap := lead - h.Position; gap > r.trackWidth*r.rules.BoostThreshold {
			speed += gap / r.trackWidth * r.rules.BoostFactor
		}
		speed = math.Max(r.rules.MinSpeed, math.Min(speed, r.rules.MaxSpeed))

		h.Speed = speed
		h.Position = math.Min(h.Position+speed, r.trackWidth)

		if h.Position >= r.trackWidth {
			finish := elapsed
			h.FinishTime = &finish
			r.finishOrder = append(r.finishOrder, i)
			justFinished = append(justFinished, *h)
		}
	}

	if len(justFinished) > 0 {
		sort.SliceStable(r.finishOrder, func(a, b int) bool {
			return *r.horses[r.finishOrder[a]].FinishTime < *r.horses[r.finishOrder[b]].FinishTime
		})
	}
	if len(r.finishOrder) == len(r.horses) {
		r.state = RaceFinished
	}
	return justFinished
}

func (r *Race) leadPosition() float64 {
	lead := 0.0
	for _, h := range r.horses {
		if h.Position > lead {
			lead = h.Position
		}
	}
	return lead
}

// State returns the current lifecycle stage.
func (r *Race) State() RaceState { return r.state }

// Finished reports whether every horse has crossed the line.
func (r *Race) Finished() bool { return r.state == RaceFinished }

// Ticks is the number of ticks applied since the last reset.
func (r *Race) Ticks() int { return r.ticks }

// TrackWidth is the track length in position units.
func (r *Race) TrackWidth() float64 { return r.trackWidth }

// Entrants returns the configured entrants.
func (r *Race) Entrants() []Entrant {
	return append([]Entrant(nil), r.entrants...)
}

// Horses returns a copy of the field in lane order.
func (r *Race) Horses() []Horse {
	out := make([]Horse, len(r.horses))
	for i, h := range r.horses {
		out[i] = copyHorse(h)
	}
	return out
}

// FinishOrder returns finished horses sorted ascending by finish time.
func (r *Race) FinishOrder() []Horse {
	out := make([]Horse, len(r.finishOrder))
	for i, idx := range r.finishOrder {
		out[i] = copyHorse(r.horses[idx])
	}
	return out
}

func copyHorse(h Horse) Horse {
	if h.FinishTime != nil {
		ft := *h.FinishTime
		h.FinishTime = &ft
	}
	return h
}
