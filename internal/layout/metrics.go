package layout

import "math"

// Pixel sizes of the YouTube chat widget at scale 1.
const (
	baseAvatarSize = 24
	baseEmojiSize  = 16
	baseLineHeight = 16
	baseAvatarGap  = 16 // avatar to author label
	baseAuthorGap  = 8  // author label to message text
	baseVPad       = 4
	baseTextTop    = 8 // author/text y of single-line messages
)

// Metrics is the fixed geometry of one render. Only the avatar and emoji sizes
// follow the scale factor; spacing and line height stay at widget pixels.
type Metrics struct {
	Width   int
	Height  int
	Padding int

	AvatarSize int
	EmojiSize  int
	LineHeight int
	AvatarGap  int
	AuthorGap  int
	VPad       int
	TextTop    int
}

func NewMetrics(width, height, padding int, scale float64) Metrics {
	s := func(v int) int {
		return int(math.Round(float64(v) * scale))
	}
	return Metrics{
		Width:      width,
		Height:     height,
		Padding:    padding,
		AvatarSize: s(baseAvatarSize),
		EmojiSize:  s(baseEmojiSize),
		LineHeight: baseLineHeight,
		AvatarGap:  baseAvatarGap,
		AuthorGap:  baseAuthorGap,
		VPad:       baseVPad,
		TextTop:    baseTextTop,
	}
}

func (m Metrics) AvatarX() int { return m.Padding }

// AuthorX is also where wrapped lines restart.
func (m Metrics) AuthorX() int { return m.Padding + m.AvatarSize + m.AvatarGap }

// RightEdge is the wrap limit for a token's absolute end x. The content width
// leaves padding on both sides and is measured from x=0.
func (m Metrics) RightEdge() int { return m.Width - 2*m.Padding }
