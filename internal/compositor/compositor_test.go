package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"testing"

	"github.com/takastudio/taka-agent/internal/timeline"
)

type stubSource struct {
	frames map[string]image.Image
	calls  int
}

func (s *stubSource) Frame(path, kind string, atMS int64) (image.Image, error) {
	s.calls++
	img, ok := s.frames[path]
	if !ok {
		return nil, fmt.Errorf("no frame for %s", path)
	}
	return img, nil
}

func solidImage(w, h int, col color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
	return img
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func identityLayer(path string) timeline.Layer {
	return timeline.Layer{
		ClipID:     "clip-1",
		TrackID:    "track-1",
		SourcePath: path,
		SourceType: timeline.TrackVideo,
		Transform:  timeline.Transform{ScaleX: 1, ScaleY: 1},
		Opacity:    1,
	}
}

func TestRenderFrame_SolidBackground(t *testing.T) {
	bg := &timeline.Background{Type: timeline.BackgroundColor, Color: "#102030"}
	c := New(64, 48, bg, &stubSource{}, testLogger())

	frame := c.RenderFrame(nil)

	want := color.RGBA{0x10, 0x20, 0x30, 0xff}
	for _, pt := range []image.Point{{0, 0}, {63, 47}, {32, 24}} {
		if got := frame.RGBAAt(pt.X, pt.Y); got != want {
			t.Fatalf("pixel %v = %v, want %v", pt, got, want)
		}
	}
}

func TestRenderFrame_NilBackgroundFallback(t *testing.T) {
	c := New(16, 16, nil, &stubSource{}, testLogger())
	frame := c.RenderFrame(nil)
	if got := frame.RGBAAt(8, 8); got != fallbackBackground {
		t.Fatalf("fallback pixel = %v, want %v", got, fallbackBackground)
	}
}

func TestRenderFrame_GradientEndpoints(t *testing.T) {
	bg := &timeline.Background{
		Type:              timeline.BackgroundGradient,
		GradientDirection: "vertical",
		GradientStops: []timeline.GradientStop{
			{Offset: 0, Color: "#000000"},
			{Offset: 1, Color: "#ffffff"},
		},
	}
	c := New(10, 100, bg, &stubSource{}, testLogger())
	frame := c.RenderFrame(nil)

	top := frame.RGBAAt(5, 0)
	bottom := frame.RGBAAt(5, 99)
	if top.R > 8 {
		t.Fatalf("top of vertical gradient = %v, want near black", top)
	}
	if bottom.R < 247 {
		t.Fatalf("bottom of vertical gradient = %v, want near white", bottom)
	}
	mid := frame.RGBAAt(5, 50)
	if mid.R < 100 || mid.R > 160 {
		t.Fatalf("midpoint = %v, want grey", mid)
	}
}

func TestRenderFrame_PaintsLayerOverBackground(t *testing.T) {
	src := &stubSource{frames: map[string]image.Image{
		"/media/a.mp4": solidImage(64, 48, color.RGBA{0xff, 0, 0, 0xff}),
	}}
	bg := &timeline.Background{Type: timeline.BackgroundColor, Color: "#000000"}
	c := New(64, 48, bg, src, testLogger())

	frame := c.RenderFrame([]timeline.Layer{identityLayer("/media/a.mp4")})

	got := frame.RGBAAt(32, 24)
	if got.R < 200 || got.G > 30 {
		t.Fatalf("centre pixel = %v, want red layer", got)
	}
	if src.calls != 1 {
		t.Fatalf("source called %d times, want 1", src.calls)
	}
}

func TestRenderFrame_ZeroOpacityLeavesBackground(t *testing.T) {
	src := &stubSource{frames: map[string]image.Image{
		"/media/a.mp4": solidImage(64, 48, color.RGBA{0xff, 0, 0, 0xff}),
	}}
	bg := &timeline.Background{Type: timeline.BackgroundColor, Color: "#001122"}
	c := New(64, 48, bg, src, testLogger())

	layer := identityLayer("/media/a.mp4")
	layer.Opacity = 0
	frame := c.RenderFrame([]timeline.Layer{layer})

	want := color.RGBA{0x00, 0x11, 0x22, 0xff}
	if got := frame.RGBAAt(32, 24); got != want {
		t.Fatalf("pixel = %v, want untouched background %v", got, want)
	}
}

func TestRenderFrame_PlaceholderAndMissingSource(t *testing.T) {
	src := &stubSource{frames: map[string]image.Image{}}
	bg := &timeline.Background{Type: timeline.BackgroundColor, Color: "#001122"}
	c := New(32, 32, bg, src, testLogger())

	placeholder := identityLayer("")
	placeholder.Placeholder = true
	missing := identityLayer("/media/gone.mp4")

	frame := c.RenderFrame([]timeline.Layer{placeholder, missing})

	want := color.RGBA{0x00, 0x11, 0x22, 0xff}
	if got := frame.RGBAAt(16, 16); got != want {
		t.Fatalf("pixel = %v, want background %v", got, want)
	}
	if src.calls != 1 {
		t.Fatalf("placeholder layer must not hit the source, calls = %d", src.calls)
	}
}

func TestRenderFrame_SkipsAudioLayers(t *testing.T) {
	src := &stubSource{frames: map[string]image.Image{}}
	c := New(16, 16, nil, src, testLogger())

	layer := identityLayer("/media/song.mp3")
	layer.SourceType = timeline.TrackAudio
	c.RenderFrame([]timeline.Layer{layer})

	if src.calls != 0 {
		t.Fatalf("audio layer hit the frame source %d times", src.calls)
	}
}

func TestRenderFrame_ZoomMagnifies(t *testing.T) {
	// A source split into a red left half and blue right half. Zooming
	// 2x about the canvas centre keeps the seam centred but a point a
	// quarter in from the left lands on red either way; a zoomed frame
	// must differ from the unzoomed frame near the seam edges.
	srcImg := image.NewRGBA(image.Rect(0, 0, 64, 48))
	draw.Draw(srcImg, image.Rect(0, 0, 32, 48), image.NewUniform(color.RGBA{0xff, 0, 0, 0xff}), image.Point{}, draw.Src)
	draw.Draw(srcImg, image.Rect(32, 0, 64, 48), image.NewUniform(color.RGBA{0, 0, 0xff, 0xff}), image.Point{}, draw.Src)
	src := &stubSource{frames: map[string]image.Image{"/media/a.mp4": srcImg}}

	c := New(64, 48, &timeline.Background{Type: timeline.BackgroundColor, Color: "#000000"}, src, testLogger())

	plain := identityLayer("/media/a.mp4")
	zoomed := identityLayer("/media/a.mp4")
	zoomed.Zoom = &timeline.ZoomState{Scale: 2, CenterX: 75, CenterY: 50}

	before := c.RenderFrame([]timeline.Layer{plain})
	after := c.RenderFrame([]timeline.Layer{zoomed})

	// Zoom centred on the blue half pushes the seam left of centre, so a
	// pixel that was red before is blue after.
	if got := before.RGBAAt(20, 24); got.R < 200 {
		t.Fatalf("pixel before zoom = %v, want red", got)
	}
	if got := after.RGBAAt(20, 24); got.B < 200 {
		t.Fatalf("pixel after zoom = %v, want blue", got)
	}
	if got := after.RGBAAt(60, 24); got.B < 200 {
		t.Fatalf("right edge after zoom = %v, want blue", got)
	}
}

func TestParseColor(t *testing.T) {
	fallback := color.RGBA{1, 2, 3, 4}
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ff0000", color.RGBA{0xff, 0, 0, 0xff}},
		{"#00ff00", color.RGBA{0, 0xff, 0, 0xff}},
		{"#abc", color.RGBA{0xaa, 0xbb, 0xcc, 0xff}},
		{"#11223344", color.RGBA{0x11, 0x22, 0x33, 0x44}},
		{"", fallback},
		{"red", fallback},
		{"#12", fallback},
		{"#gggggg", fallback},
	}
	for _, tt := range tests {
		if got := parseColor(tt.in, fallback); got != tt.want {
			t.Errorf("parseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMaskCorners(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0xff, 0xff, 0xff, 0xff}), image.Point{}, draw.Src)
	maskCorners(img, 10)

	if got := img.RGBAAt(0, 0); got.A != 0 {
		t.Fatalf("corner pixel alpha = %d, want 0", got.A)
	}
	if got := img.RGBAAt(20, 20); got.A != 0xff {
		t.Fatalf("centre pixel alpha = %d, want 255", got.A)
	}
	if got := img.RGBAAt(20, 0); got.A != 0xff {
		t.Fatalf("edge midpoint alpha = %d, want 255", got.A)
	}
}

func TestBoxBlur_UniformRegionUnchanged(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	col := color.RGBA{10, 20, 30, 0xff}
	draw.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)

	boxBlur(img, img.Bounds(), 3)

	if got := img.RGBAAt(10, 10); got != col {
		t.Fatalf("uniform blur changed pixel to %v", got)
	}
}

func TestApplyRegionBlur_OutsidePreservesRegion(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 0xff}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 10, 30, 30), image.NewUniform(color.RGBA{0xff, 0xff, 0xff, 0xff}), image.Point{}, draw.Src)

	applyRegionBlur(img, &timeline.BlurState{
		Intensity: 1,
		Region:    timeline.BlurRegion{X: 10, Y: 10, Width: 20, Height: 20},
		Inside:    false,
	})

	if got := img.RGBAAt(20, 20); got.R != 0xff {
		t.Fatalf("region interior = %v, want untouched white", got)
	}
	// Just outside the region the hard edge must have softened.
	if got := img.RGBAAt(9, 20); got.R == 0 {
		t.Fatalf("pixel outside region = %v, want blurred grey", got)
	}
}
