package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseHexColor accepts "#rrggbb", "rrggbb" and the short "#rgb" form.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: expected #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Blend mixes a over b with the given opacity of a. Channels are truncated.
func Blend(a, b color.RGBA, opacity float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x)*opacity + float64(y)*(1-opacity))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}
