// Package assets inspects and decodes the media files a demo references:
// ffprobe metadata for imports, and per-instant frame decoding for the
// render pipeline.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/takastudio/taka-agent/internal/timeline"
)

// Info is the probed metadata of a media file.
type Info struct {
	Path       string  `json:"path"`
	Kind       string  `json:"kind"`
	DurationMS int64   `json:"duration_ms"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	HasAudio   bool    `json:"has_audio"`
}

// Prober wraps ffprobe.
type Prober struct {
	ffprobePath string
	logger      *slog.Logger
}

// NewProber resolves ffprobe and returns a prober. An explicit path wins
// over PATH lookup so a bundled binary can be pinned in config.
func NewProber(ffprobePath string, logger *slog.Logger) (*Prober, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	resolved, err := exec.LookPath(ffprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}
	return &Prober{ffprobePath: resolved, logger: logger.With("component", "prober")}, nil
}

// Probe runs ffprobe on the file and parses its stream metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	info, err := parseProbe(output, path)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("probed media",
		"path", path, "kind", info.Kind,
		"duration_ms", info.DurationMS, "fps", info.FPS)
	return info, nil
}

type probePayload struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func parseProbe(data []byte, path string) (*Info, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &Info{Path: path}
	if dur, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil {
		info.DurationMS = int64(dur * 1000)
	}

	hasVideo := false
	for _, stream := range payload.Streams {
		switch stream.CodecType {
		case "video":
			hasVideo = true
			if info.Width == 0 {
				info.Width = stream.Width
				info.Height = stream.Height
				info.FPS = parseFrameRate(stream.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
		}
	}

	switch {
	case hasVideo && info.DurationMS > 0:
		info.Kind = timeline.TrackVideo
	case hasVideo:
		info.Kind = timeline.TrackImage
	case info.HasAudio:
		info.Kind = timeline.TrackAudio
	default:
		return nil, fmt.Errorf("no decodable streams in %s", filepath.Base(path))
	}
	return info, nil
}

// parseFrameRate parses ffprobe's fractional rate, e.g. "30000/1001".
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}
