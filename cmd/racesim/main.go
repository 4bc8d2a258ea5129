// Command racesim runs a horse race in the terminal, or analyzes many
// simulated races with -analyze.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/analysis"
	"github.com/MJE43/minigames/internal/engine"
	"github.com/MJE43/minigames/internal/games"
	"github.com/MJE43/minigames/internal/schedule"
)

const (
	barWidth     = 50
	headlessTick = 50 * time.Millisecond
)

func main() {
	var (
		horses   int
		width    float64
		interval time.Duration
		names    string
		races    int
		seed     string
		verbose  bool
	)
	flag.IntVar(&horses, "horses", 5, "number of horses")
	flag.Float64Var(&width, "width", 800, "track width in position units")
	flag.DurationVar(&interval, "interval", 50*time.Millisecond, "tick interval; 0 runs headless as fast as possible, timed as 50ms ticks")
	flag.StringVar(&names, "names", "", "comma-separated horse names")
	flag.IntVar(&races, "analyze", 0, "simulate this many races and print lane statistics instead of racing")
	flag.StringVar(&seed, "seed", "", "seed for -analyze (default: random)")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if races > 0 {
		err = analyze(ctx, horses, width, races, seed)
	} else {
		err = race(ctx, horses, width, interval, splitNames(names))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func race(ctx context.Context, horses int, width float64, interval time.Duration, names []string) error {
	if len(names) > horses {
		horses = len(names)
	}
	if err := games.ValidateRaceConfig(horses, width); err != nil {
		return err
	}

	r := games.NewRace(engine.NewSource(), games.BuildEntrants(horses, names, nil, ""), width)
	if err := r.Start(); err != nil {
		return err
	}

	if interval <= 0 {
		for tick := 1; !r.Finished(); tick++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.Tick(time.Duration(tick) * headlessTick)
		}
		printPlacings(r)
		return nil
	}

	start := time.Now()
	task, err := schedule.Every(ctx, interval, func(now time.Time) bool {
		r.Tick(now.Sub(start))
		draw(r)
		return !r.Finished()
	})
	if err != nil {
		return err
	}

	select {
	case <-task.Done():
	case <-ctx.Done():
		task.Stop()
		return ctx.Err()
	}
	if err := task.Err(); err != nil {
		return err
	}
	if !r.Finished() {
		return ctx.Err()
	}

	fmt.Println()
	printPlacings(r)
	return nil
}

func printPlacings(r *games.Race) {
	fmt.Printf("Finished in %d ticks\n", r.Ticks())
	for i, h := range r.FinishOrder() {
		fmt.Printf("%2d. %-12s %ss\n", i+1, h.Name, games.FinishSeconds(*h.FinishTime).StringFixed(2))
	}
}

// draw redraws the track in place using ANSI cursor movement.
func draw(r *games.Race) {
	field := r.Horses()
	var b strings.Builder
	if r.Ticks() > 1 {
		fmt.Fprintf(&b, "\x1b[%dA", len(field))
	}
	for _, h := range field {
		filled := int(h.Position / r.TrackWidth() * barWidth)
		if filled > barWidth {
			filled = barWidth
		}
		mark := " "
		if h.Finished() {
			mark = "✓"
		}
		fmt.Fprintf(&b, "%-12s |%s>%s| %s\n", h.Name,
			strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled), mark)
	}
	fmt.Print(b.String())
}

func analyze(ctx context.Context, horses int, width float64, races int, seed string) error {
	if seed == "" {
		seed = fmt.Sprintf("racesim-%d", time.Now().UnixNano())
	}
	sum, err := analysis.NewAnalyzer(games.DefaultRaceRules()).Run(ctx, analysis.Request{
		Horses:     horses,
		TrackWidth: width,
		Races:      races,
		Seed:       seed,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d races, seed %q, %dms\n", sum.Races, seed, sum.ElapsedMs)
	if sum.TimedOut {
		fmt.Println("(interrupted, partial results)")
	}
	fmt.Printf("ticks: mean %.1f, min %d, max %d; mean spread %.1f ticks\n",
		sum.MeanTicks, sum.MinTicks, sum.MaxTicks, sum.MeanSpread)
	fmt.Println("lane  wins  win%    mean place")
	for _, l := range sum.Lanes {
		fmt.Printf("%4d  %4d  %5.1f%%  %.2f\n", l.Lane, l.Wins, l.WinRate*100, l.MeanPlace)
	}
	return nil
}
