package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/takastudio/taka-agent/internal/timeline"
)

const (
	// Video frames are cached on 33ms buckets so scrubbing and renders at
	// nearby instants reuse the same extraction.
	frameBucketMS = 33

	extractTimeout = 15 * time.Second
)

// FrameCache decodes still images directly and extracts video frames
// through ffmpeg, keeping a bounded in-memory cache. It satisfies the
// compositor's frame source contract.
type FrameCache struct {
	ffmpegPath string
	logger     *slog.Logger

	mu      sync.Mutex
	frames  map[string]image.Image
	order   []string
	failed  map[string]error
	maxSize int
}

// NewFrameCache creates a cache holding at most maxSize decoded frames.
// ffmpegPath may be empty to fall back to PATH lookup; video extraction
// then fails gracefully when ffmpeg is absent and image decoding still
// works.
func NewFrameCache(ffmpegPath string, maxSize int, logger *slog.Logger) *FrameCache {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if resolved, err := exec.LookPath(ffmpegPath); err == nil {
		ffmpegPath = resolved
	}
	if maxSize < 1 {
		maxSize = 64
	}
	return &FrameCache{
		ffmpegPath: ffmpegPath,
		logger:     logger.With("component", "frames"),
		frames:     make(map[string]image.Image),
		failed:     make(map[string]error),
		maxSize:    maxSize,
	}
}

// Frame returns the pixels of path at source instant atMS. Images ignore
// atMS. Audio sources have no pixels.
func (c *FrameCache) Frame(path, kind string, atMS int64) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("empty source path")
	}
	if kind == timeline.TrackAudio {
		return nil, fmt.Errorf("audio source %s has no frames", filepath.Base(path))
	}

	key := path
	if kind == timeline.TrackVideo {
		if atMS < 0 {
			atMS = 0
		}
		key = fmt.Sprintf("%s@%d", path, atMS/frameBucketMS)
	}

	c.mu.Lock()
	if img, ok := c.frames[key]; ok {
		c.mu.Unlock()
		return img, nil
	}
	if err, ok := c.failed[path]; ok {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	var img image.Image
	var err error
	if kind == timeline.TrackVideo {
		img, err = c.extractVideoFrame(path, atMS)
	} else {
		img, err = decodeImageFile(path)
	}
	if err != nil {
		c.mu.Lock()
		c.failed[path] = err
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.store(key, img)
	c.mu.Unlock()
	return img, nil
}

// Invalidate drops all cached frames for a path, e.g. after the file on
// disk was replaced.
func (c *FrameCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failed, path)
	kept := c.order[:0]
	for _, key := range c.order {
		if key == path || (len(key) > len(path) && key[:len(path)] == path && key[len(path)] == '@') {
			delete(c.frames, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

// store inserts with FIFO eviction. Caller holds the lock.
func (c *FrameCache) store(key string, img image.Image) {
	if _, ok := c.frames[key]; ok {
		return
	}
	for len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.frames, oldest)
	}
	c.frames[key] = img
	c.order = append(c.order, key)
}

func (c *FrameCache) extractVideoFrame(path string, atMS int64) (image.Image, error) {
	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", float64(atMS)/1000),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract frame from %s at %dms: %w: %s",
			filepath.Base(path), atMS, err, lastLine(stderr.String()))
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame from %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}
