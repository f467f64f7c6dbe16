package render

import (
	"context"
	"sync"
	"time"
)

// Job states. Queued and rendering are transient; the other three are
// terminal.
const (
	StateQueued    = "queued"
	StateRendering = "rendering"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Render stages, reported alongside the coarser job state.
const (
	StageWaiting    = "waiting"
	StageRendering  = "rendering"
	StageFinalizing = "finalizing"
)

// Progress is a point-in-time view of a job, published on the job's
// event channel and returned by polling. Throughput and the remaining
// time estimate derive from frames finished so far, so they are zero
// until the first frame lands.
type Progress struct {
	JobID                string  `json:"job_id"`
	DemoID               string  `json:"demo_id"`
	State                string  `json:"state"`
	Stage                string  `json:"stage"`
	Frame                int64   `json:"frame"`
	TotalFrames          int64   `json:"total_frames"`
	Percent              float64 `json:"percent"`
	FPS                  float64 `json:"fps"`
	ElapsedMS            int64   `json:"elapsed_ms"`
	EstimatedRemainingMS int64   `json:"estimated_remaining_ms"`
	OutputPath           string  `json:"output_path,omitempty"`
	Error                string  `json:"error,omitempty"`
}

// eventBuffer bounds the per-job progress channel. A slow subscriber
// loses intermediate updates, never the terminal one.
const eventBuffer = 64

// Job is one export run. All mutable state is behind the mutex; the
// render goroutine writes, everyone else reads.
type Job struct {
	ID     string
	DemoID string

	cancel context.CancelFunc
	done   chan struct{}
	events chan Progress

	mu          sync.Mutex
	state       string
	stage       string
	frame       int64
	totalFrames int64
	outputPath  string
	err         error
	startedAt   time.Time
	finishedAt  time.Time
}

func newJob(id, demoID, outputPath string, totalFrames int64, cancel context.CancelFunc) *Job {
	return &Job{
		ID:          id,
		DemoID:      demoID,
		cancel:      cancel,
		done:        make(chan struct{}),
		events:      make(chan Progress, eventBuffer),
		state:       StateQueued,
		stage:       StageWaiting,
		totalFrames: totalFrames,
		outputPath:  outputPath,
		startedAt:   time.Now(),
	}
}

// Cancel requests cancellation. The job notices at the next frame
// boundary; Done unblocks once it has wound down. Cancelling a finished
// job is a no-op.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Events streams progress updates. The channel is closed after the
// terminal event. Intermediate events are dropped when the buffer is
// full; the terminal event always arrives.
func (j *Job) Events() <-chan Progress {
	return j.events
}

// Snapshot returns the job's current progress.
func (j *Job) Snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progressLocked()
}

func (j *Job) progressLocked() Progress {
	p := Progress{
		JobID:       j.ID,
		DemoID:      j.DemoID,
		State:       j.state,
		Stage:       j.stage,
		Frame:       j.frame,
		TotalFrames: j.totalFrames,
	}
	if j.totalFrames > 0 {
		p.Percent = float64(j.frame) / float64(j.totalFrames) * 100
	}
	elapsed := time.Since(j.startedAt)
	if !j.finishedAt.IsZero() {
		elapsed = j.finishedAt.Sub(j.startedAt)
	}
	p.ElapsedMS = elapsed.Milliseconds()
	if j.frame > 0 && elapsed > 0 {
		p.FPS = float64(j.frame) / elapsed.Seconds()
		if remaining := j.totalFrames - j.frame; remaining > 0 && !isTerminal(j.state) {
			p.EstimatedRemainingMS = int64(float64(remaining) / p.FPS * 1000)
		}
	}
	if j.state == StateCompleted {
		p.OutputPath = j.outputPath
	}
	if j.err != nil {
		p.Error = j.err.Error()
	}
	return p
}

func (j *Job) terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return isTerminal(j.state)
}

func isTerminal(state string) bool {
	return state == StateCompleted || state == StateFailed || state == StateCancelled
}

// setStage records the render phase without publishing an event; the next
// frame or state transition carries it.
func (j *Job) setStage(stage string) {
	j.mu.Lock()
	j.stage = stage
	j.mu.Unlock()
}

// setFrame records a finished frame and publishes progress, dropping the
// event when no one is draining.
func (j *Job) setFrame(frame int64) {
	j.mu.Lock()
	j.frame = frame
	p := j.progressLocked()
	j.mu.Unlock()

	select {
	case j.events <- p:
	default:
	}
}

// transition moves the job to a new state. Terminal transitions latch:
// the first one wins, its event is delivered even to a full buffer, and
// the channel closes after it.
func (j *Job) transition(state string, err error) {
	j.mu.Lock()
	if isTerminal(j.state) {
		j.mu.Unlock()
		return
	}
	j.state = state
	if err != nil {
		j.err = err
	}
	final := isTerminal(state)
	if final {
		j.finishedAt = time.Now()
	}
	p := j.progressLocked()
	j.mu.Unlock()

	if final {
		// Make room so the terminal event cannot be dropped.
		for {
			select {
			case j.events <- p:
				close(j.events)
				close(j.done)
				return
			default:
				select {
				case <-j.events:
				default:
				}
			}
		}
	}

	select {
	case j.events <- p:
	default:
	}
}

// record converts the job to its persisted form.
func (j *Job) record() Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := Record{
		ID:          j.ID,
		DemoID:      j.DemoID,
		State:       j.state,
		Frame:       j.frame,
		TotalFrames: j.totalFrames,
		OutputPath:  j.outputPath,
		StartedAt:   j.startedAt,
		FinishedAt:  j.finishedAt,
	}
	if j.err != nil {
		rec.Error = j.err.Error()
	}
	return rec
}

// Record is the persisted summary of an export job.
type Record struct {
	ID          string    `json:"id"`
	DemoID      string    `json:"demo_id"`
	State       string    `json:"state"`
	Frame       int64     `json:"frame"`
	TotalFrames int64     `json:"total_frames"`
	OutputPath  string    `json:"output_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// Store persists job records across restarts. Implementations must be
// safe for concurrent use.
type Store interface {
	SaveExport(ctx context.Context, rec Record) error
}
