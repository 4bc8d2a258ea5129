// Package render draws race tracks and lottery boards as PNG images.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

var (
	boldOnce sync.Once
	boldFont *truetype.Font
	boldErr  error
)

// boldFace returns a face over the bold font, which is parsed once. Faces
// cache glyphs and are not safe for concurrent use, so each image gets its own.
func boldFace(size float64) (font.Face, error) {
	boldOnce.Do(func() {
		boldFont, boldErr = truetype.Parse(gobold.TTF)
	})
	if boldErr != nil {
		return nil, boldErr
	}
	return truetype.NewFace(boldFont, &truetype.Options{
		Size:       size,
		DPI:        72,
		Hinting:    font.HintingFull,
		SubPixelsX: 4,
		SubPixelsY: 4,
	}), nil
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// parseHex reads #RGB or #RRGGBB. Unparseable input draws grey.
func parseHex(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.Gray{Y: 128}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.Gray{Y: 128}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
