package render

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
)

// MJPEGEncoder writes Motion-JPEG frames into an AVI container without
// any external tooling. It is the fallback when ffmpeg is not installed:
// files are larger and mp4/webm are unavailable, but an export always
// succeeds.
type MJPEGEncoder struct {
	logger *slog.Logger

	spec    EncodeSpec
	file    *os.File
	quality int

	frames     []aviIndexEntry
	moviOffset int64
}

type aviIndexEntry struct {
	offset uint32 // relative to the movi list data start
	size   uint32
}

func NewMJPEGEncoder(logger *slog.Logger) *MJPEGEncoder {
	return &MJPEGEncoder{logger: logger.With("component", "mjpeg")}
}

func (e *MJPEGEncoder) Start(ctx context.Context, spec EncodeSpec) error {
	if spec.Format != FormatAVI {
		return fmt.Errorf("built-in encoder only writes avi, got %q", spec.Format)
	}
	if spec.Width <= 0 || spec.Height <= 0 || spec.FPS <= 0 {
		return fmt.Errorf("invalid encode spec %dx%d@%.2f", spec.Width, spec.Height, spec.FPS)
	}
	if err := os.MkdirAll(filepath.Dir(spec.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(spec.OutputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	e.file = f
	e.spec = spec
	e.frames = nil

	switch spec.Quality {
	case QualityDraft:
		e.quality = 60
	case QualityGood:
		e.quality = 80
	case QualityMax:
		e.quality = 95
	default:
		e.quality = 90
	}

	if err := e.writeHeaders(); err != nil {
		f.Close()
		os.Remove(spec.OutputPath)
		return err
	}
	e.logger.Debug("encoder started", "output", spec.OutputPath, "jpeg_quality", e.quality)
	return nil
}

func (e *MJPEGEncoder) WriteFrame(frame *image.RGBA) error {
	b := frame.Bounds()
	if b.Dx() != e.spec.Width || b.Dy() != e.spec.Height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d",
			b.Dx(), b.Dy(), e.spec.Width, e.spec.Height)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: e.quality}); err != nil {
		return fmt.Errorf("encode jpeg frame: %w", err)
	}

	pos, err := e.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	e.frames = append(e.frames, aviIndexEntry{
		offset: uint32(pos - e.moviOffset),
		size:   uint32(buf.Len()),
	})

	if err := writeChunk(e.file, "00dc", buf.Bytes()); err != nil {
		return fmt.Errorf("write frame chunk: %w", err)
	}
	return nil
}

// Close writes the index, patches the deferred sizes and frame counts in
// the headers, and closes the file.
func (e *MJPEGEncoder) Close() error {
	defer e.file.Close()

	moviEnd, err := e.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	// idx1
	var idx bytes.Buffer
	for _, fr := range e.frames {
		idx.WriteString("00dc")
		binary.Write(&idx, binary.LittleEndian, uint32(0x10)) // keyframe
		binary.Write(&idx, binary.LittleEndian, fr.offset)
		binary.Write(&idx, binary.LittleEndian, fr.size)
	}
	if err := writeChunk(e.file, "idx1", idx.Bytes()); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	fileEnd, err := e.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	patches := []struct {
		offset int64
		value  uint32
	}{
		{4, uint32(fileEnd - 8)},                    // RIFF size
		{e.aviHTotalFramesOffset(), e.frameCount()}, // avih dwTotalFrames
		{e.strhLengthOffset(), e.frameCount()},      // strh dwLength
		{e.moviOffset - 4, uint32(moviEnd - e.moviOffset)}, // movi LIST size
	}
	for _, p := range patches {
		if err := patchUint32(e.file, p.offset, p.value); err != nil {
			return err
		}
	}
	return e.file.Sync()
}

// Abort closes and removes the partial output.
func (e *MJPEGEncoder) Abort() error {
	e.file.Close()
	if err := os.Remove(e.spec.OutputPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial output: %w", err)
	}
	return nil
}

func (e *MJPEGEncoder) frameCount() uint32 {
	return uint32(len(e.frames))
}

// The header block written by writeHeaders is fixed-size, so the patch
// locations are constants relative to the file start.

func (e *MJPEGEncoder) aviHTotalFramesOffset() int64 {
	// RIFF(12) + LIST header(8) + "hdrl"(4) + "avih"+size(8) + 4 dwords
	return 12 + 8 + 4 + 8 + 16
}

func (e *MJPEGEncoder) strhLengthOffset() int64 {
	// strh chunk data starts after RIFF(12)+LIST hdr(8)+"hdrl"(4)+avih(64)+
	// LIST hdr(8)+"strl"(4)+"strh"+size(8); dwLength is the 9th dword.
	return 12 + 8 + 4 + 8 + 56 + 8 + 4 + 8 + 32
}

func (e *MJPEGEncoder) writeHeaders() error {
	w := e.file
	fps := e.spec.FPS

	var hdrl bytes.Buffer
	hdrl.WriteString("hdrl")

	// avih
	var avih bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&avih, le, uint32(math.Round(1e6/fps))) // dwMicroSecPerFrame
	binary.Write(&avih, le, uint32(0))                   // dwMaxBytesPerSec
	binary.Write(&avih, le, uint32(0))                   // dwPaddingGranularity
	binary.Write(&avih, le, uint32(0x10))                // AVIF_HASINDEX
	binary.Write(&avih, le, uint32(0))                   // dwTotalFrames (patched)
	binary.Write(&avih, le, uint32(0))                   // dwInitialFrames
	binary.Write(&avih, le, uint32(1))                   // dwStreams
	binary.Write(&avih, le, uint32(0))                   // dwSuggestedBufferSize
	binary.Write(&avih, le, uint32(e.spec.Width))
	binary.Write(&avih, le, uint32(e.spec.Height))
	avih.Write(make([]byte, 16)) // dwReserved[4]
	writeChunkBuf(&hdrl, "avih", avih.Bytes())

	// strl LIST
	var strl bytes.Buffer
	strl.WriteString("strl")

	var strh bytes.Buffer
	strh.WriteString("vids")
	strh.WriteString("MJPG")
	binary.Write(&strh, le, uint32(0)) // dwFlags
	binary.Write(&strh, le, uint32(0)) // wPriority + wLanguage
	binary.Write(&strh, le, uint32(0)) // dwInitialFrames
	binary.Write(&strh, le, uint32(1000))
	binary.Write(&strh, le, uint32(math.Round(fps*1000))) // rate/scale = fps
	binary.Write(&strh, le, uint32(0))                    // dwStart
	binary.Write(&strh, le, uint32(0))                    // dwLength (patched)
	binary.Write(&strh, le, uint32(0))                    // dwSuggestedBufferSize
	binary.Write(&strh, le, ^uint32(0))                   // dwQuality = -1
	binary.Write(&strh, le, uint32(0))                    // dwSampleSize
	binary.Write(&strh, le, uint16(0))                    // rcFrame
	binary.Write(&strh, le, uint16(0))
	binary.Write(&strh, le, uint16(e.spec.Width))
	binary.Write(&strh, le, uint16(e.spec.Height))
	writeChunkBuf(&strl, "strh", strh.Bytes())

	var strf bytes.Buffer
	binary.Write(&strf, le, uint32(40)) // biSize
	binary.Write(&strf, le, int32(e.spec.Width))
	binary.Write(&strf, le, int32(e.spec.Height))
	binary.Write(&strf, le, uint16(1))  // biPlanes
	binary.Write(&strf, le, uint16(24)) // biBitCount
	strf.WriteString("MJPG")
	binary.Write(&strf, le, uint32(e.spec.Width*e.spec.Height*3))
	strf.Write(make([]byte, 16)) // ppm + clr fields
	writeChunkBuf(&strl, "strf", strf.Bytes())

	writeListBuf(&hdrl, strl.Bytes())

	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(0)); err != nil { // patched
		return err
	}
	if _, err := w.WriteString("AVI "); err != nil {
		return err
	}
	if err := writeList(w, hdrl.Bytes()); err != nil {
		return err
	}

	// movi LIST, size patched at Close.
	if _, err := w.WriteString("LIST"); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(0)); err != nil {
		return err
	}
	if _, err := w.WriteString("movi"); err != nil {
		return err
	}
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	// Index offsets are relative to the "movi" fourcc.
	e.moviOffset = pos - 4
	return nil
}

func writeChunk(w *os.File, fourcc string, data []byte) error {
	if _, err := w.WriteString(fourcc); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data)%2 == 1 {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	return nil
}

func writeChunkBuf(buf *bytes.Buffer, fourcc string, data []byte) {
	buf.WriteString(fourcc)
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
}

func writeList(w *os.File, data []byte) error {
	if _, err := w.WriteString("LIST"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func writeListBuf(buf *bytes.Buffer, data []byte) {
	buf.WriteString("LIST")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
}

func patchUint32(f *os.File, offset int64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := f.WriteAt(b[:], offset)
	return err
}
