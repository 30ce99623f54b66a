package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ivlev/chat2video/internal/config"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the avatar and emoji disk cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the disk cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearCache(cmd, a.v.GetString(config.KeyCacheDir))
		},
	})
	return cmd
}

func clearCache(cmd *cobra.Command, dir string) error {
	console := cmd.OutOrStdout()
	clean := filepath.Clean(dir)
	if dir == "" || clean == "." || clean == string(filepath.Separator) {
		return config.NewError(config.KeyCacheDir, "refusing to delete %q", dir)
	}

	if _, err := os.Stat(clean); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(console, "[*] Cache %s does not exist, nothing to do\n", clean)
		return nil
	}
	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Fprintf(console, "[*] Cache %s cleared\n", clean)
	return nil
}
