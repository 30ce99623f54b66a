// Package typeface loads the two chat fonts and exposes width measurement and
// top-left anchored drawing on top of golang.org/x/image/font.
package typeface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// BaseSize is the chat text size in pixels at scale 1.
const BaseSize = 13

type Face struct {
	face   font.Face
	ascent int
}

func newFace(data []byte, size float64) (*Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	return &Face{face: face, ascent: face.Metrics().Ascent.Ceil()}, nil
}

// Load parses a TrueType/OpenType file at size pixels.
func Load(path string, size float64) (*Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	face, err := newFace(data, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return face, nil
}

// Measure returns the advance width of s in whole pixels. Empty strings and
// faces without the needed glyphs measure 0.
func (f *Face) Measure(s string) int {
	if f == nil || s == "" {
		return 0
	}
	return font.MeasureString(f.face, s).Ceil()
}

// Draw paints s with its top-left corner at (x, y).
func (f *Face) Draw(dst draw.Image, x, y int, s string, c color.Color) {
	if f == nil || s == "" {
		return
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: f.face,
		Dot:  fixed.P(x, y+f.ascent),
	}
	d.DrawString(s)
}

func (f *Face) Close() error {
	if f == nil {
		return nil
	}
	return f.face.Close()
}

// Set holds the author label face and the message body face.
type Set struct {
	Author  *Face
	Message *Face
}

// LoadSet opens the configured font files at size pixels. Paths that are empty
// use the embedded Go fonts; paths that fail to load fall back to them too and
// are reported in warnings.
func LoadSet(regularPath, mediumPath string, size float64) (Set, []error) {
	var warnings []error

	open := func(path string, fallback []byte) *Face {
		if path != "" {
			face, err := Load(path, size)
			if err == nil {
				return face
			}
			warnings = append(warnings, err)
		}
		face, err := newFace(fallback, size)
		if err != nil {
			// The embedded fonts are known-good.
			panic(err)
		}
		return face
	}

	return Set{
		Message: open(regularPath, goregular.TTF),
		Author:  open(mediumPath, gomedium.TTF),
	}, warnings
}

func (s Set) Close() {
	s.Author.Close()
	s.Message.Close()
}
