package config

import "image/color"

type Config struct {
	InputPath   string
	OutputVideo string

	Width  int
	Height int
	FPS    int

	// StartTime and EndTime are in seconds. EndTime == 0 means "until the last message".
	StartTime float64
	EndTime   float64

	Background  string
	Padding     int
	Scale       float64
	Clip        bool
	Transparent bool

	SkipAvatars bool
	SkipEmojis  bool
	DiskCache   bool
	CacheDir    string

	FontRegular string
	FontMedium  string

	Workers      int
	VideoEncoder string
	Quality      int

	ShowStats    bool
	MetricsFile  string
	LogLevel     string
	LogFormat    string
	BuildVersion string
}

// Defaults mirror the look of the YouTube chat widget at 1x scale.
const (
	DefaultWidth      = 400
	DefaultHeight     = 540
	DefaultFPS        = 10
	DefaultBackground = "#0f0f0f"
	DefaultPadding    = 24
	DefaultScale      = 1.0
	DefaultCacheDir   = "_cache"
)

func Default() *Config {
	return &Config{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		FPS:        DefaultFPS,
		Background: DefaultBackground,
		Padding:    DefaultPadding,
		Scale:      DefaultScale,
		Clip:       true,
		CacheDir:   DefaultCacheDir,
		Workers:    4,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// BackgroundColor parses Background. Validate has already rejected bad values,
// so callers past validation may ignore the error.
func (c *Config) BackgroundColor() (color.RGBA, error) {
	return ParseHexColor(c.Background)
}

// AuthorColor is the background blended 70% toward white.
func (c *Config) AuthorColor() color.RGBA {
	bg, _ := c.BackgroundColor()
	return Blend(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, bg, 0.7)
}

// PixelFormat is the ffmpeg name of the raw frame layout.
func (c *Config) PixelFormat() string {
	if c.Transparent {
		return "rgba"
	}
	return "rgb24"
}
