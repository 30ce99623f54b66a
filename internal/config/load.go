package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Viper keys shared by the CLI flag bindings and config files.
const (
	KeyOutput      = "output"
	KeyWidth       = "width"
	KeyHeight      = "height"
	KeyFPS         = "fps"
	KeyStart       = "start"
	KeyEnd         = "end"
	KeyBackground  = "background"
	KeyPadding     = "padding"
	KeyScale       = "scale"
	KeyNoClip      = "no_clip"
	KeyTransparent = "transparent"
	KeySkipAvatars = "skip_avatars"
	KeySkipEmojis  = "skip_emojis"
	KeyCache       = "cache"
	KeyCacheDir    = "cache_dir"
	KeyFontRegular = "font.regular"
	KeyFontMedium  = "font.medium"
	KeyWorkers     = "workers"
	KeyEncoder     = "encoder"
	KeyQuality     = "quality"
	KeyStats       = "stats"
	KeyMetricsFile = "metrics_file"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

const EnvPrefix = "CHAT2VIDEO"

// SetDefaults registers Default() values on v so that config files and env
// variables only need to name what they change.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyWidth, d.Width)
	v.SetDefault(KeyHeight, d.Height)
	v.SetDefault(KeyFPS, d.FPS)
	v.SetDefault(KeyBackground, d.Background)
	v.SetDefault(KeyPadding, d.Padding)
	v.SetDefault(KeyScale, d.Scale)
	v.SetDefault(KeyNoClip, !d.Clip)
	v.SetDefault(KeyCacheDir, d.CacheDir)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load builds a Config from v. It does not validate.
func Load(v *viper.Viper) *Config {
	return &Config{
		OutputVideo:  v.GetString(KeyOutput),
		Width:        v.GetInt(KeyWidth),
		Height:       v.GetInt(KeyHeight),
		FPS:          v.GetInt(KeyFPS),
		StartTime:    v.GetFloat64(KeyStart),
		EndTime:      v.GetFloat64(KeyEnd),
		Background:   v.GetString(KeyBackground),
		Padding:      v.GetInt(KeyPadding),
		Scale:        v.GetFloat64(KeyScale),
		Clip:         !v.GetBool(KeyNoClip),
		Transparent:  v.GetBool(KeyTransparent),
		SkipAvatars:  v.GetBool(KeySkipAvatars),
		SkipEmojis:   v.GetBool(KeySkipEmojis),
		DiskCache:    v.GetBool(KeyCache),
		CacheDir:     v.GetString(KeyCacheDir),
		FontRegular:  v.GetString(KeyFontRegular),
		FontMedium:   v.GetString(KeyFontMedium),
		Workers:      v.GetInt(KeyWorkers),
		VideoEncoder: v.GetString(KeyEncoder),
		Quality:      v.GetInt(KeyQuality),
		ShowStats:    v.GetBool(KeyStats),
		MetricsFile:  v.GetString(KeyMetricsFile),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
	}
}
