package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/MJE43/minigames/internal/games"
)

const (
	cardWidth   = 80.0
	cardHeight  = 100.0
	cardGap     = 12.0
	boardMargin = 16.0
	maxColumns  = 5

	// MaxBoardCards is the largest board that fits within maxImageSize.
	MaxBoardCards = maxColumns * ((maxImageSize - 2*int(boardMargin) + int(cardGap)) / int(cardHeight+cardGap))
)

var (
	hiddenCard = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	winCard    = color.RGBA{R: 34, G: 197, B: 94, A: 255}
	passCard   = color.RGBA{R: 239, G: 68, B: 68, A: 255}
)

// BoardSize returns the image size LotteryBoard produces for n cards.
func BoardSize(n int) (w, h int) {
	cols := maxColumns
	if n < cols {
		cols = n
	}
	if cols < 1 {
		cols = 1
	}
	rows := int(math.Ceil(float64(n) / float64(cols)))
	if rows < 1 {
		rows = 1
	}
	w = int(2*boardMargin + float64(cols)*cardWidth + float64(cols-1)*cardGap)
	h = int(2*boardMargin + float64(rows)*cardHeight + float64(rows-1)*cardGap)
	return w, h
}

// CardOrigin is the top-left pixel of card i.
func CardOrigin(i, n int) (x, y float64) {
	cols := maxColumns
	if n < cols {
		cols = n
	}
	if cols < 1 {
		cols = 1
	}
	col, row := i%cols, i/cols
	return boardMargin + float64(col)*(cardWidth+cardGap), boardMargin + float64(row)*(cardHeight+cardGap)
}

// LotteryBoard draws the cards in rows of five. Face-down cards are black
// with a "?"; revealed cards are green WIN or red PASS. cards must already be
// masked for the viewer.
func LotteryBoard(cards []games.Card) ([]byte, error) {
	if len(cards) > MaxBoardCards {
		return nil, fmt.Errorf("board of %d cards exceeds %d", len(cards), MaxBoardCards)
	}
	face, err := boldFace(18)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	w, h := BoardSize(len(cards))
	dc := gg.NewContext(w, h)
	dc.SetRGB(0.98, 0.98, 0.98)
	dc.Clear()
	dc.SetFontFace(face)

	for i, card := range cards {
		x, y := CardOrigin(i, len(cards))

		label := "?"
		fill := color.Color(hiddenCard)
		if card.IsRevealed {
			label, fill = "PASS", passCard
			if card.IsWinner {
				label, fill = "WIN", winCard
			}
		}

		dc.SetColor(fill)
		dc.DrawRoundedRectangle(x, y, cardWidth, cardHeight, 8)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawStringAnchored(label, x+cardWidth/2, y+cardHeight/2, 0.5, 0.5)
	}

	return encode(dc)
}
