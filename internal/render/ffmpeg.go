package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const maxStderrBytes = 8 * 1024 // tail of ffmpeg stderr kept for diagnostics

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg subprocess. It is
// the production encoder for mp4 and webm output.
type FFmpegEncoder struct {
	ffmpegPath string
	logger     *slog.Logger

	spec   EncodeSpec
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *limitedWriter
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewFFmpegEncoder resolves ffmpeg, failing fast when it is absent so the
// caller can fall back to the built-in encoder.
func NewFFmpegEncoder(ffmpegPath string, logger *slog.Logger) (*FFmpegEncoder, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &FFmpegEncoder{
		ffmpegPath: resolved,
		logger:     logger.With("component", "ffmpeg"),
	}, nil
}

func (e *FFmpegEncoder) Start(ctx context.Context, spec EncodeSpec) error {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FPS <= 0 {
		return fmt.Errorf("invalid encode spec %dx%d@%.2f", spec.Width, spec.Height, spec.FPS)
	}
	if err := os.MkdirAll(filepath.Dir(spec.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", fmt.Sprintf("%.3f", spec.FPS),
		"-i", "pipe:0",
	}
	codec, err := codecArgs(spec.Format, spec.Quality)
	if err != nil {
		return err
	}
	args = append(args, codec...)
	args = append(args, spec.OutputPath)

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	stderr := &limitedWriter{limit: maxStderrBytes}
	cmd.Stderr = stderr
	cmd.Stdout = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.logger.Debug("encoder started",
		"output", spec.OutputPath, "format", spec.Format, "quality", spec.Quality)

	group, _ := errgroup.WithContext(ctx)
	group.Go(cmd.Wait)

	e.spec = spec
	e.cmd = cmd
	e.stdin = stdin
	e.stderr = stderr
	e.group = group
	e.cancel = cancel
	return nil
}

func (e *FFmpegEncoder) WriteFrame(frame *image.RGBA) error {
	b := frame.Bounds()
	if b.Dx() != e.spec.Width || b.Dy() != e.spec.Height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d",
			b.Dx(), b.Dy(), e.spec.Width, e.spec.Height)
	}
	// RGBA stride can exceed the row width; write row by row when it does.
	rowBytes := e.spec.Width * 4
	if frame.Stride == rowBytes {
		if _, err := e.stdin.Write(frame.Pix); err != nil {
			return e.writeError(err)
		}
		return nil
	}
	for y := 0; y < e.spec.Height; y++ {
		row := frame.Pix[y*frame.Stride : y*frame.Stride+rowBytes]
		if _, err := e.stdin.Write(row); err != nil {
			return e.writeError(err)
		}
	}
	return nil
}

func (e *FFmpegEncoder) writeError(err error) error {
	return fmt.Errorf("write frame to ffmpeg: %w: %s", err, e.stderr.Tail())
}

// Close closes the frame stream and waits for ffmpeg to finalize the
// container.
func (e *FFmpegEncoder) Close() error {
	defer e.cancel()
	if err := e.stdin.Close(); err != nil {
		return fmt.Errorf("close ffmpeg stdin: %w", err)
	}
	if err := e.group.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited with error: %w: %s", err, e.stderr.Tail())
	}
	return nil
}

// Abort kills ffmpeg and removes the partial output file.
func (e *FFmpegEncoder) Abort() error {
	e.cancel()
	e.stdin.Close()
	e.group.Wait() // exit error expected after the kill
	if err := os.Remove(e.spec.OutputPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial output: %w", err)
	}
	return nil
}

// codecArgs maps format and quality preset to ffmpeg codec flags. The mp4
// ladder follows x264 CRF conventions; webm uses VP9 with roughly
// matching quality levels.
func codecArgs(format, quality string) ([]string, error) {
	switch format {
	case FormatMP4:
		crf, preset := "18", "fast"
		switch quality {
		case QualityDraft:
			crf, preset = "32", "ultrafast"
		case QualityGood:
			crf, preset = "23", "fast"
		case QualityHigh, "":
			crf, preset = "18", "medium"
		case QualityMax:
			crf, preset = "14", "slow"
		default:
			return nil, fmt.Errorf("unknown quality %q", quality)
		}
		return []string{
			"-c:v", "libx264",
			"-preset", preset,
			"-crf", crf,
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
		}, nil
	case FormatWebM:
		crf := "31"
		switch quality {
		case QualityDraft:
			crf = "45"
		case QualityGood:
			crf = "36"
		case QualityHigh, "":
			crf = "31"
		case QualityMax:
			crf = "24"
		default:
			return nil, fmt.Errorf("unknown quality %q", quality)
		}
		return []string{
			"-c:v", "libvpx-vp9",
			"-b:v", "0",
			"-crf", crf,
			"-pix_fmt", "yuv420p",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	buf   bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.buf.Write(p)
	if lw.buf.Len() > lw.limit {
		b := lw.buf.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.buf.Reset()
		lw.buf.Write(tail)
	}
	return n, nil
}

func (lw *limitedWriter) Tail() string {
	return lw.buf.String()
}
