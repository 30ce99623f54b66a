package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/chat2video/internal/config"
	"github.com/ivlev/chat2video/internal/snapshot"
)

func newLayoutCmd(a *app) *cobra.Command {
	var at float64
	var out string

	cmd := &cobra.Command{
		Use:   "layout [chat-file]",
		Short: "Write the chat layout at one instant to YAML",
		Long: `Computes the message layout the renderer would draw at --at seconds and writes
it as YAML. Emoji are only laid out when they are in the disk cache (--cache).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return a.layout(cmd, input, at, out)
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "time in seconds")
	cmd.Flags().StringVar(&out, "out", "", "output YAML (default: output/layout_<time>.yaml)")
	return cmd
}

func (a *app) layout(cmd *cobra.Command, input string, at float64, out string) error {
	console := cmd.OutOrStdout()
	if at < 0 {
		return config.NewError("at", "can't be negative, got %g", at)
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}
	if cfg.InputPath, err = resolveInput(console, input); err != nil {
		return err
	}
	events, err := loadEvents(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	r := newRenderer(cfg, console)
	defer r.Close()
	r.loadDiskCache(console, a.logger)

	s := snapshot.Capture(events, at, r.layoutEngine())
	if out == "" {
		out = snapshot.DefaultPath(outputDir, time.Now())
	}
	if err := snapshot.Write(s, out); err != nil {
		return err
	}

	fmt.Fprintf(console, "[*] %d messages visible at %gs\n", len(s.Messages), at)
	fmt.Fprintln(console, okStyle.Render("[+++] Layout saved to: "+out))
	return nil
}
