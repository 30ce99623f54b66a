package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ivlev/chat2video/internal/config"
	"github.com/ivlev/chat2video/internal/telemetry"
)

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *slog.Logger
	runID   string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:   "chat2video [chat-file]",
		Short: "Render a YouTube live chat replay into a video",
		Long: `Renders a YouTube live chat replay (the .live_chat.json file written by yt-dlp)
into a video of the chat widget, ready to be overlaid on the stream recording.

Without a chat file the most recent .json/.jsonl in input/chat is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return a.render(cmd, input)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "YAML config file")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.IntP("width", "W", config.DefaultWidth, "frame width in pixels (even, at least 100)")
	pf.IntP("height", "H", config.DefaultHeight, "frame height in pixels (even, at least 32)")
	pf.Float64("start", 0, "start time in seconds")
	pf.Float64("end", 0, "end time in seconds (0 = last message)")
	pf.String("background", config.DefaultBackground, "background color #rrggbb")
	pf.Int("padding", config.DefaultPadding, "horizontal padding in pixels")
	pf.Float64("scale", config.DefaultScale, "scale factor for avatar and emoji sizes")
	pf.Bool("no-clip", false, "keep the topmost message even when it is cut off by the frame")
	pf.String("font-regular", "", "TrueType font for message text (default: embedded Go Regular)")
	pf.String("font-medium", "", "TrueType font for author names (default: embedded Go Medium)")
	pf.Bool("cache", false, "keep downloaded avatars and emoji on disk between runs")
	pf.String("cache-dir", config.DefaultCacheDir, "disk cache directory")

	f := root.Flags()
	f.StringP("output", "o", "", "output video; - streams raw frames to stdout (default: output/<input>_<time>.mp4)")
	f.IntP("fps", "r", config.DefaultFPS, "frames per second")
	f.Bool("transparent", false, "transparent background (ProRes 4444 .mov or VP9 .webm)")
	f.Bool("skip-avatars", false, "do not download avatars")
	f.Bool("skip-emojis", false, "do not download emoji")
	f.Int("workers", config.Default().Workers, "parallel image downloads")
	f.String("encoder", "", "ffmpeg video encoder (default: best available H.264)")
	f.Int("quality", 0, "encoder quality (0 = encoder default; x264 CRF, VideoToolbox bitrate = Q*100 kbit/s)")
	f.Bool("stats", false, "print a performance report and append it to benchmark.log")
	f.String("metrics-file", "", "write Prometheus metrics to this file (node_exporter textfile format)")

	a.bind(pf, map[string]string{
		config.KeyLogLevel:    "log-level",
		config.KeyLogFormat:   "log-format",
		config.KeyWidth:       "width",
		config.KeyHeight:      "height",
		config.KeyStart:       "start",
		config.KeyEnd:         "end",
		config.KeyBackground:  "background",
		config.KeyPadding:     "padding",
		config.KeyScale:       "scale",
		config.KeyNoClip:      "no-clip",
		config.KeyFontRegular: "font-regular",
		config.KeyFontMedium:  "font-medium",
		config.KeyCache:       "cache",
		config.KeyCacheDir:    "cache-dir",
	})
	a.bind(f, map[string]string{
		config.KeyOutput:      "output",
		config.KeyFPS:         "fps",
		config.KeyTransparent: "transparent",
		config.KeySkipAvatars: "skip-avatars",
		config.KeySkipEmojis:  "skip-emojis",
		config.KeyWorkers:     "workers",
		config.KeyEncoder:     "encoder",
		config.KeyQuality:     "quality",
		config.KeyStats:       "stats",
		config.KeyMetricsFile: "metrics-file",
	})

	root.AddCommand(newLayoutCmd(a), newCacheCmd(a))
	return root
}

func (a *app) bind(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		// Only fails for a nil flag, which would be a typo above.
		if err := a.v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// init loads .env and the config file, then sets up logging. It runs before
// every command.
func (a *app) init(cmd *cobra.Command) error {
	// A missing .env is fine.
	_ = godotenv.Load()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", a.cfgFile, err)
		}
	}

	logger, err := newLogger(cmd.ErrOrStderr(), a.v.GetString(config.KeyLogLevel), a.v.GetString(config.KeyLogFormat))
	if err != nil {
		return err
	}
	a.runID = telemetry.NewRunID()
	a.logger = logger.With(slog.String("run_id", a.runID))
	return nil
}

// config returns the validated configuration for this invocation.
func (a *app) config() (*config.Config, error) {
	cfg := config.Load(a.v)
	cfg.BuildVersion = version
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
