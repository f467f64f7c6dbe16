// Package render turns a timeline snapshot into a finished video file:
// it drives the compositor frame by frame and streams the pixels into an
// encoder, with cancellation, progress events and one job per demo.
package render

import (
	"context"
	"image"
)

// Output formats.
const (
	FormatMP4  = "mp4"
	FormatWebM = "webm"
	FormatAVI  = "avi"
)

// Quality presets, trading encode speed against file size.
const (
	QualityDraft = "draft"
	QualityGood  = "good"
	QualityHigh  = "high"
	QualityMax   = "max"
)

// EncodeSpec describes one encode run.
type EncodeSpec struct {
	OutputPath string
	Width      int
	Height     int
	FPS        float64
	Format     string
	Quality    string
}

// Encoder receives RGBA frames in presentation order and produces the
// output file. Start must be called once before the first WriteFrame.
// Close finalizes the file; Abort stops early and removes any partial
// output.
type Encoder interface {
	Start(ctx context.Context, spec EncodeSpec) error
	WriteFrame(frame *image.RGBA) error
	Close() error
	Abort() error
}
