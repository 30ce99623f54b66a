package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ChatExtensions are the file types accepted when looking for a chat log.
var ChatExtensions = []string{".json", ".jsonl"}

// FindLatestChat returns the most recently modified chat log in dir.
func FindLatestChat(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), ChatExtensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no chat logs (%s) found in %s", strings.Join(ChatExtensions, ", "), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// OutputPath builds output/<input name>_<timestamp><ext>, with spaces in the
// input name replaced by underscores.
func OutputPath(dir, input, ext string, now time.Time) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	// foo.live_chat.json -> foo
	name = strings.TrimSuffix(name, ".live_chat")
	name = strings.ReplaceAll(name, " ", "_")
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, now.Format("2006-01-02_15-04-05"), ext))
}

// hardwareEncoders are tried in order before falling back to libx264.
var hardwareEncoders = []string{"h264_videotoolbox", "h264_nvenc"}

// GetBestH264Encoder asks ffmpeg which encoders it was built with and picks a
// hardware one when available.
func GetBestH264Encoder(ctx context.Context, binary string) string {
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(encoders string) string {
	for _, enc := range hardwareEncoders {
		if strings.Contains(encoders, enc) {
			return enc
		}
	}
	return "libx264"
}
