package render

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testFrame(w, h int, col color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
	return img
}

func TestMJPEGEncoder_WritesValidContainer(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.avi")
	enc := NewMJPEGEncoder(slog.New(slog.NewTextHandler(io.Discard, nil)))

	spec := EncodeSpec{OutputPath: out, Width: 32, Height: 24, FPS: 30, Format: FormatAVI, Quality: QualityGood}
	if err := enc.Start(context.Background(), spec); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := enc.WriteFrame(testFrame(32, 24, color.RGBA{uint8(i * 40), 0, 0, 0xff})); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 200 {
		t.Fatalf("file too small: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "AVI " {
		t.Fatalf("bad container magic: %q %q", data[0:4], data[8:12])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != uint32(len(data)-8) {
		t.Fatalf("RIFF size = %d, want %d", got, len(data)-8)
	}
	// dwTotalFrames in avih.
	if got := binary.LittleEndian.Uint32(data[48:52]); got != 5 {
		t.Fatalf("avih total frames = %d, want 5", got)
	}
	// strh dwLength.
	if got := binary.LittleEndian.Uint32(data[140:144]); got != 5 {
		t.Fatalf("strh length = %d, want 5", got)
	}
	if !bytes.Contains(data, []byte("MJPG")) {
		t.Fatal("missing MJPG fourcc")
	}
	if !bytes.Contains(data, []byte("idx1")) {
		t.Fatal("missing idx1 index chunk")
	}
	// Five frame chunks plus five index entries.
	if got := bytes.Count(data, []byte("00dc")); got < 10 {
		t.Fatalf("found %d 00dc markers, want at least 10", got)
	}
}

func TestMJPEGEncoder_AbortRemovesPartialOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.avi")
	enc := NewMJPEGEncoder(slog.New(slog.NewTextHandler(io.Discard, nil)))

	spec := EncodeSpec{OutputPath: out, Width: 16, Height: 16, FPS: 30, Format: FormatAVI}
	if err := enc.Start(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	if err := enc.WriteFrame(testFrame(16, 16, color.RGBA{0xff, 0, 0, 0xff})); err != nil {
		t.Fatal(err)
	}
	if err := enc.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("partial output still exists: %v", err)
	}
}

func TestMJPEGEncoder_AbortAfterCloseFailureRemovesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.avi")
	enc := NewMJPEGEncoder(slog.New(slog.NewTextHandler(io.Discard, nil)))

	spec := EncodeSpec{OutputPath: out, Width: 16, Height: 16, FPS: 30, Format: FormatAVI}
	if err := enc.Start(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	if err := enc.WriteFrame(testFrame(16, 16, color.RGBA{0xff, 0, 0, 0xff})); err != nil {
		t.Fatal(err)
	}
	// Yank the file out from under the encoder so finalization fails the
	// way a full disk would.
	enc.file.Close()
	if err := enc.Close(); err == nil {
		t.Fatal("expected Close to fail on a dead file handle")
	}
	if err := enc.Abort(); err != nil {
		t.Fatalf("Abort after failed Close: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("unfinalized output still exists: %v", err)
	}
}

func TestMJPEGEncoder_RejectsWrongFormat(t *testing.T) {
	enc := NewMJPEGEncoder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	spec := EncodeSpec{OutputPath: filepath.Join(t.TempDir(), "x.mp4"), Width: 16, Height: 16, FPS: 30, Format: FormatMP4}
	if err := enc.Start(context.Background(), spec); err == nil {
		t.Fatal("expected error for non-avi format")
	}
}

func TestMJPEGEncoder_RejectsMismatchedFrameSize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.avi")
	enc := NewMJPEGEncoder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	spec := EncodeSpec{OutputPath: out, Width: 32, Height: 24, FPS: 30, Format: FormatAVI}
	if err := enc.Start(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	defer enc.Abort()
	if err := enc.WriteFrame(testFrame(16, 16, color.RGBA{})); err == nil {
		t.Fatal("expected error for wrong frame size")
	}
}
