package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/takastudio/taka-agent/internal/compositor"
	"github.com/takastudio/taka-agent/internal/timeline"
)

var (
	// ErrExportBusy is returned when a demo already has an export in
	// flight. One job per demo keeps disk and CPU contention sane.
	ErrExportBusy = errors.New("an export is already running for this demo")

	ErrJobNotFound   = errors.New("export job not found")
	ErrEmptyTimeline = errors.New("timeline has no content to render")
)

const persistTimeout = 5 * time.Second

// Options selects the output of one export. Zero values take defaults:
// 1920x1080, 30 fps, high quality, mp4 when ffmpeg is available and avi
// otherwise.
type Options struct {
	Width      int
	Height     int
	FPS        float64
	Format     string
	Quality    string
	OutputPath string
}

// Config wires a Manager.
type Config struct {
	FFmpegPath string
	ExportsDir string
	Frames     compositor.FrameSource
	Store      Store // optional
	Logger     *slog.Logger
}

// Manager owns export jobs: admission, execution, progress and
// cancellation. Jobs render in their own goroutine against a timeline
// snapshot, so editing can continue while an export runs.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	ffmpegOK   bool
	newEncoder func(format string) (Encoder, error)

	mu     sync.Mutex
	active map[string]*Job // demo id -> running job
	jobs   map[string]*Job // job id -> job, including finished ones
	wg     sync.WaitGroup
}

// NewManager creates a manager. ffmpeg availability is probed once here;
// when it is missing the built-in AVI encoder keeps exports working.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger.With("component", "render")

	m := &Manager{
		cfg:    cfg,
		logger: logger,
		active: make(map[string]*Job),
		jobs:   make(map[string]*Job),
	}

	if _, err := NewFFmpegEncoder(cfg.FFmpegPath, logger); err != nil {
		logger.Warn("ffmpeg unavailable, exports limited to avi", "error", err)
	} else {
		m.ffmpegOK = true
	}
	m.newEncoder = func(format string) (Encoder, error) {
		if format == FormatAVI {
			return NewMJPEGEncoder(logger), nil
		}
		if !m.ffmpegOK {
			return nil, fmt.Errorf("format %q needs ffmpeg, which was not found; use avi", format)
		}
		return NewFFmpegEncoder(cfg.FFmpegPath, logger)
	}
	return m
}

// Start admits and launches an export for the given timeline. The
// timeline is deep-copied before this method returns, so later edits do
// not affect the running job.
func (m *Manager) Start(ctx context.Context, tl *timeline.Timeline, opts Options) (*Job, error) {
	opts = m.applyDefaults(tl, opts)

	durationMS := tl.Duration()
	if durationMS <= 0 {
		return nil, ErrEmptyTimeline
	}
	totalFrames := int64(math.Ceil(float64(durationMS) / 1000 * opts.FPS))

	enc, err := m.newEncoder(opts.Format)
	if err != nil {
		return nil, err
	}

	snapshot := tl.Clone()
	demoID := tl.Demo.ID

	m.mu.Lock()
	if running, ok := m.active[demoID]; ok && !running.terminal() {
		m.mu.Unlock()
		return nil, ErrExportBusy
	}
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := newJob(timeline.NewID(), demoID, opts.OutputPath, totalFrames, cancel)
	m.active[demoID] = job
	m.jobs[job.ID] = job
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("export started",
		"job_id", job.ID, "demo_id", demoID,
		"frames", totalFrames, "format", opts.Format, "output", opts.OutputPath)
	m.persist(job)

	go m.run(jobCtx, job, snapshot, enc, opts)
	return job, nil
}

func (m *Manager) applyDefaults(tl *timeline.Timeline, opts Options) Options {
	if opts.Width <= 0 {
		opts.Width = tl.Demo.Width
	}
	if opts.Height <= 0 {
		opts.Height = tl.Demo.Height
	}
	if opts.FPS <= 0 {
		opts.FPS = float64(tl.Demo.FrameRate)
	}
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Quality == "" {
		opts.Quality = QualityHigh
	}
	if opts.Format == "" {
		if m.ffmpegOK {
			opts.Format = FormatMP4
		} else {
			opts.Format = FormatAVI
		}
	}
	if opts.OutputPath == "" {
		name := fmt.Sprintf("%s-%s.%s", tl.Demo.ID, timeline.NewID()[:8], opts.Format)
		opts.OutputPath = filepath.Join(m.cfg.ExportsDir, name)
	}
	return opts
}

// run is the render loop. Cancellation is honored between frames only:
// a frame in progress always finishes or fails on its own.
func (m *Manager) run(ctx context.Context, job *Job, snapshot *timeline.Timeline, enc Encoder, opts Options) {
	defer m.wg.Done()
	defer m.release(job)

	if ctx.Err() != nil {
		m.finish(job, StateCancelled, nil)
		return
	}
	job.setStage(StageRendering)
	job.transition(StateRendering, nil)

	spec := EncodeSpec{
		OutputPath: opts.OutputPath,
		Width:      opts.Width,
		Height:     opts.Height,
		FPS:        opts.FPS,
		Format:     opts.Format,
		Quality:    opts.Quality,
	}
	if err := enc.Start(ctx, spec); err != nil {
		m.finish(job, StateFailed, fmt.Errorf("start encoder: %w", err))
		return
	}

	comp := compositor.New(opts.Width, opts.Height, snapshot.Background, m.cfg.Frames, m.logger)

	total := job.Snapshot().TotalFrames
	for i := int64(0); i < total; i++ {
		if ctx.Err() != nil {
			m.abort(enc, job, StateCancelled, nil)
			return
		}
		tMS := int64(math.Round(float64(i) * 1000 / opts.FPS))
		frame := comp.RenderFrame(snapshot.Resolve(tMS))
		if err := enc.WriteFrame(frame); err != nil {
			m.abort(enc, job, StateFailed, err)
			return
		}
		job.setFrame(i + 1)
	}

	job.setStage(StageFinalizing)
	if err := enc.Close(); err != nil {
		// A file that failed to finalize is as unplayable as one that
		// failed mid-write; clean it up the same way.
		m.abort(enc, job, StateFailed, fmt.Errorf("finalize output: %w", err))
		return
	}
	m.finish(job, StateCompleted, nil)
}

// abort tears down the encoder, which removes any partial output, then
// records the terminal state.
func (m *Manager) abort(enc Encoder, job *Job, state string, cause error) {
	if err := enc.Abort(); err != nil {
		m.logger.Warn("encoder abort cleanup failed", "job_id", job.ID, "error", err)
	}
	m.finish(job, state, cause)
}

func (m *Manager) finish(job *Job, state string, err error) {
	job.transition(state, err)
	p := job.Snapshot()
	switch state {
	case StateCompleted:
		m.logger.Info("export completed",
			"job_id", job.ID, "demo_id", job.DemoID,
			"frames", p.Frame, "output", p.OutputPath)
	case StateCancelled:
		m.logger.Info("export cancelled",
			"job_id", job.ID, "demo_id", job.DemoID, "frames_done", p.Frame)
	default:
		m.logger.Error("export failed",
			"job_id", job.ID, "demo_id", job.DemoID, "error", p.Error)
	}
	m.persist(job)
}

func (m *Manager) release(job *Job) {
	m.mu.Lock()
	if m.active[job.DemoID] == job {
		delete(m.active, job.DemoID)
	}
	m.mu.Unlock()
}

func (m *Manager) persist(job *Job) {
	if m.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.cfg.Store.SaveExport(ctx, job.record()); err != nil {
		m.logger.Warn("cannot persist export job", "job_id", job.ID, "error", err)
	}
}

// Job looks up a job by id.
func (m *Manager) Job(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Progress returns the current progress of a job.
func (m *Manager) Progress(id string) (Progress, error) {
	job, err := m.Job(id)
	if err != nil {
		return Progress{}, err
	}
	return job.Snapshot(), nil
}

// Cancel requests cancellation of a job. Cancelling a finished job
// returns its state unchanged.
func (m *Manager) Cancel(id string) (Progress, error) {
	job, err := m.Job(id)
	if err != nil {
		return Progress{}, err
	}
	job.Cancel()
	return job.Snapshot(), nil
}

// ActiveJob returns the running job for a demo, if any.
func (m *Manager) ActiveJob(demoID string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.active[demoID]
	return job, ok
}

// Shutdown cancels every running job and waits for them to wind down or
// for the context to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, job := range m.active {
		job.Cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
