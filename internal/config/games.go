package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/render"
)

// Games holds tunable game defaults.
type Games struct {
	Race    RaceDefaults    `yaml:"race"`
	Lottery LotteryDefaults `yaml:"lottery"`
}

type RaceDefaults struct {
	TrackWidth    float64       `yaml:"track_width"`
	MaxTrackWidth float64       `yaml:"max_track_width"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	MinHorses     int           `yaml:"min_horses"`
	MaxHorses     int           `yaml:"max_horses"`
	Palette       []string      `yaml:"palette"`
	NamePattern   string        `yaml:"name_pattern"`
}

type LotteryDefaults struct {
	TotalCards   int `yaml:"total_cards"`
	WinningCards int `yaml:"winning_cards"`
	MaxCards     int `yaml:"max_cards"`
}

// DefaultGames returns the built-in defaults.
func DefaultGames() Games {
	return Games{
		Race: RaceDefaults{
			TrackWidth:    800,
			MaxTrackWidth: 10000,
			TickInterval:  50 * time.Millisecond,
			MinHorses:     1,
			MaxHorses:     10,
			Palette:       append([]string(nil), games.DefaultPalette...),
			NamePattern:   games.DefaultNamePattern,
		},
		Lottery: LotteryDefaults{
			TotalCards:   10,
			WinningCards: 3,
			MaxCards:     100,
		},
	}
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ParseGames decodes YAML over the defaults, so omitted keys keep their
// default values. Unknown keys are rejected.
func ParseGames(data []byte) (Games, error) {
	g := DefaultGames()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil && !errors.Is(err, io.EOF) {
		return Games{}, fmt.Errorf("decode game config: %w", err)
	}
	if err := g.Validate(); err != nil {
		return Games{}, err
	}
	return g, nil
}

// Validate checks every default is usable.
func (g Games) Validate() error {
	r := g.Race
	if err := games.ValidateRaceConfig(r.MinHorses, r.TrackWidth); err != nil {
		return fmt.Errorf("race defaults: %w", err)
	}
	if r.MaxTrackWidth < r.TrackWidth {
		return fmt.Errorf("race defaults: max_track_width %g below track_width %g", r.MaxTrackWidth, r.TrackWidth)
	}
	if r.MaxHorses < r.MinHorses {
		return fmt.Errorf("race defaults: max_horses %d below min_horses %d", r.MaxHorses, r.MinHorses)
	}
	if r.TickInterval <= 0 {
		return fmt.Errorf("race defaults: tick_interval must be positive")
	}
	if len(r.Palette) == 0 {
		return fmt.Errorf("race defaults: palette must not be empty")
	}
	for _, c := range r.Palette {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("race defaults: invalid palette colour %q", c)
		}
	}
	if strings.Count(r.NamePattern, "%d") != 1 || strings.Count(r.NamePattern, "%") != 1 {
		return fmt.Errorf("race defaults: name_pattern must contain exactly one %%d")
	}

	l := g.Lottery
	if err := games.ValidateLotteryConfig(l.TotalCards, l.WinningCards); err != nil {
		return fmt.Errorf("lottery defaults: %w", err)
	}
	if l.MaxCards < l.TotalCards {
		return fmt.Errorf("lottery defaults: max_cards %d below total_cards %d", l.MaxCards, l.TotalCards)
	}
	if l.MaxCards > render.MaxBoardCards {
		return fmt.Errorf("lottery defaults: max_cards %d above %d", l.MaxCards, render.MaxBoardCards)
	}
	return nil
}
