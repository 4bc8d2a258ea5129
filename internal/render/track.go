package render

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/fogleman/gg"
	log "github.com/sirupsen/logrus"

	"github.com/MJE43/minigames/internal/games"
)

const (
	minLaneHeight = 30.0
	maxLaneHeight = 60.0
	minHorseWidth = 20.0
	maxHorseWidth = 40.0
	nameOffset    = 24.0

	minImageSize = 64
	maxImageSize = 4096
)

// RaceView is the race state to draw.
type RaceView struct {
	TrackWidth  float64
	Horses      []games.Horse // lane order
	FinishOrder []games.Horse
}

// LaneMetrics sizes lanes and horse markers to fit height pixels.
func LaneMetrics(height float64, horses int) (laneHeight, horseWidth float64) {
	if horses < 1 {
		horses = 1
	}
	available := height - nameOffset
	laneHeight = math.Max(minLaneHeight, math.Min(maxLaneHeight, available/float64(horses)))
	horseWidth = math.Max(minHorseWidth, math.Min(maxHorseWidth, laneHeight*0.8))
	return laneHeight, horseWidth
}

// HorseX maps a track position onto the image so the marker never crosses the
// right edge.
func HorseX(position, trackWidth, imageWidth, horseWidth float64) float64 {
	if trackWidth <= 0 {
		return 0
	}
	return position / trackWidth * (imageWidth - horseWidth)
}

func validateSize(w, h int) error {
	if w < minImageSize || h < minImageSize || w > maxImageSize || h > maxImageSize {
		return fmt.Errorf("image size %dx%d outside %d..%d", w, h, minImageSize, maxImageSize)
	}
	return nil
}

// RaceTrack draws lanes, horses, the finish line and placings.
func RaceTrack(view RaceView, w, h int) ([]byte, error) {
	start := time.Now()
	defer func() {
		log.WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("horses", len(view.Horses)).
			Debug("Race track image generated")
	}()

	if err := validateSize(w, h); err != nil {
		return nil, err
	}
	nameFace, err := boldFace(12)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	width, height := float64(w), float64(h)
	laneHeight, horseWidth := LaneMetrics(height, len(view.Horses))

	places := make(map[int]int, len(view.FinishOrder))
	for i, f := range view.FinishOrder {
		places[f.ID] = i + 1
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	// Lane stripes.
	for i := range view.Horses {
		if i%2 == 1 {
			dc.SetRGB(0.95, 0.95, 0.95)
			dc.DrawRectangle(0, nameOffset+float64(i)*laneHeight-nameOffset/2, width, laneHeight)
			dc.Fill()
		}
	}

	// Top and bottom rails.
	dc.SetRGB(0.6, 0.6, 0.6)
	dc.SetLineWidth(4)
	dc.DrawLine(0, 2, width, 2)
	dc.DrawLine(0, height-2, width, height-2)
	dc.Stroke()

	// Finish line.
	dc.SetRGB(0.94, 0.27, 0.27)
	dc.SetLineWidth(2)
	dc.DrawLine(width-1, 0, width-1, height)
	dc.Stroke()

	for i, horse := range view.Horses {
		x := HorseX(horse.Position, view.TrackWidth, width, horseWidth)
		y := float64(i)*laneHeight + nameOffset

		dc.SetColor(parseHex(horse.Color))
		drawHorse(dc, x, y, horseWidth)

		dc.SetFontFace(nameFace)
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(horseLabel(horse, places[horse.ID]), x, y-4, 0, 0)
	}

	return encode(dc)
}

func horseLabel(h games.Horse, place int) string {
	if place == 0 || h.FinishTime == nil {
		return h.Name
	}
	return fmt.Sprintf("%s #%d %ss", h.Name, place, games.FinishSeconds(*h.FinishTime).StringFixed(2))
}

// drawHorse fills a horse silhouette in a size x size box at (x, y).
func drawHorse(dc *gg.Context, x, y, size float64) {
	s := size / 100
	p := func(px, py float64) (float64, float64) { return x + px*s, y + py*s }

	// Head.
	dc.MoveTo(p(70, 5))
	dc.LineTo(p(80, 15))
	dc.LineTo(p(75, 25))
	dc.LineTo(p(60, 25))
	cx, cy := p(65, 15)
	ex, ey := p(70, 5)
	dc.QuadraticTo(cx, cy, ex, ey)
	dc.ClosePath()

	// Body.
	dc.MoveTo(p(25, 40))
	cx, cy = p(40, 35)
	ex, ey = p(50, 40)
	dc.QuadraticTo(cx, cy, ex, ey)
	cx, cy = p(60, 45)
	ex, ey = p(75, 40)
	dc.QuadraticTo(cx, cy, ex, ey)
	dc.LineTo(p(75, 70))
	dc.LineTo(p(25, 70))
	dc.ClosePath()

	// Legs.
	dc.DrawRectangle(x+25*s, y+70*s, 10*s, 20*s)
	dc.DrawRectangle(x+65*s, y+70*s, 10*s, 20*s)
	dc.Fill()
}
