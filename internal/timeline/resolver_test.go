package timeline

import (
	"math"
	"reflect"
	"testing"
)

func f(v float64) *float64 { return &v }

// buildZoomScenario is the 10s demo at 30fps with one zoom clip spanning
// [2000,6000) with 1s ramps used across the resolver tests.
func buildZoomScenario(t *testing.T) *Timeline {
	t.Helper()
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("media", 0))
	mustAddTrack(t, tl, &Track{ID: "zoom", Type: TrackZoom, Visible: true, SortOrder: 1, TargetTrackID: "media"})
	mustAddClip(t, tl, &Clip{ID: "c1", TrackID: "media", SourcePath: "shot.mp4", SourceType: "video", StartMS: 0, DurationMS: 10000})
	if err := tl.AddZoomClip(&ZoomClip{
		ID: "z1", TrackID: "zoom", StartMS: 2000, DurationMS: 4000,
		Scale: 2, CenterX: 50, CenterY: 50, EaseInMS: 1000, EaseOutMS: 1000,
	}); err != nil {
		t.Fatal(err)
	}
	return tl
}

func zoomScaleAt(t *testing.T, tl *Timeline, at int64) float64 {
	t.Helper()
	layers := tl.Resolve(at)
	if len(layers) != 1 {
		t.Fatalf("Resolve(%d) returned %d layers, want 1", at, len(layers))
	}
	if layers[0].Zoom == nil {
		return 1
	}
	return layers[0].Zoom.Scale
}

func TestResolve_ZoomEnvelopeScenario(t *testing.T) {
	tl := buildZoomScenario(t)

	// intensity 0 -> scale 1; intensity 1 -> scale 2.
	tests := []struct {
		at   int64
		want float64
	}{
		{2000, 1},   // intensity 0 at effect start
		{3000, 2},   // ramp complete
		{3500, 2},   // plateau
		{4000, 2},   // plateau
		{4500, 2},   // plateau
		{5000, 2},   // plateau end
		{5500, 1.5}, // halfway down the out ramp
	}
	for _, tt := range tests {
		if got := zoomScaleAt(t, tl, tt.at); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("zoom scale at t=%d: got %v, want %v", tt.at, got, tt.want)
		}
	}

	// At t=6000 the effect clip's half-open interval has ended.
	layers := tl.Resolve(6000)
	if len(layers) != 1 {
		t.Fatalf("Resolve(6000): %d layers", len(layers))
	}
	if layers[0].Zoom != nil {
		t.Errorf("zoom still active at t=6000: %+v", layers[0].Zoom)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	tl := buildZoomScenario(t)
	for _, at := range []int64{0, 2500, 4000, 5999, 9999} {
		a := tl.Resolve(at)
		b := tl.Resolve(at)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("Resolve(%d) not deterministic:\n%+v\n%+v", at, a, b)
		}
	}
}

func TestResolve_InvisibleTrackOmitted(t *testing.T) {
	tl := buildZoomScenario(t)
	tl.Track("media").Visible = false
	if layers := tl.Resolve(1000); len(layers) != 0 {
		t.Errorf("invisible track produced %d layers", len(layers))
	}
}

func TestResolve_LockedAndMutedStillComposited(t *testing.T) {
	tl := buildZoomScenario(t)
	tl.Track("media").Locked = true
	tl.Track("media").Muted = true
	layers := tl.Resolve(1000)
	if len(layers) != 1 {
		t.Fatalf("locked/muted track dropped from compositing: %d layers", len(layers))
	}
	if !layers[0].Muted {
		t.Error("muted track flag not carried to layer audio state")
	}
}

func TestResolve_AudioFadeScalesVolume(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("media", 0))
	mustAddClip(t, tl, &Clip{
		ID: "c1", TrackID: "media", SourcePath: "shot.mp4", SourceType: "video",
		StartMS: 0, DurationMS: 4000, FadeInMS: 1000, FadeOutMS: 1000,
	})

	tests := []struct {
		at   int64
		want float64
	}{
		{0, 0},      // fade-in starts silent
		{500, 0.5},  // halfway up the fade-in
		{1000, 1},   // fade-in complete
		{2000, 1},   // plateau
		{3500, 0.5}, // halfway down the fade-out
	}
	for _, tt := range tests {
		layers := tl.Resolve(tt.at)
		if len(layers) != 1 {
			t.Fatalf("Resolve(%d): %d layers", tt.at, len(layers))
		}
		if got := layers[0].Volume; math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("volume at t=%d: got %v, want %v", tt.at, got, tt.want)
		}
	}

	// A clip with no fades keeps its full volume at the edges.
	plain := New(testDemo())
	mustAddTrack(t, plain, videoTrack("media", 0))
	mustAddClip(t, plain, &Clip{
		ID: "c2", TrackID: "media", SourcePath: "shot.mp4", SourceType: "video",
		StartMS: 0, DurationMS: 4000,
	})
	if got := plain.Resolve(0)[0].Volume; got != 1 {
		t.Errorf("unfaded clip volume at t=0: got %v, want 1", got)
	}
}

func TestResolve_InertEffectTrack(t *testing.T) {
	tl := buildZoomScenario(t)
	// Retarget the zoom track at nothing: it becomes inert, not an error.
	tl.Track("zoom").TargetTrackID = "gone"
	layers := tl.Resolve(4000)
	if len(layers) != 1 {
		t.Fatalf("Resolve: %d layers", len(layers))
	}
	if layers[0].Zoom != nil {
		t.Error("inert zoom track still applied")
	}
}

func TestResolve_LayerOrderFollowsSortOrder(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("top", 2))
	mustAddTrack(t, tl, videoTrack("bottom", 0))
	mustAddTrack(t, tl, videoTrack("middle", 1))
	for _, id := range []string{"top", "bottom", "middle"} {
		mustAddClip(t, tl, &Clip{ID: "clip-" + id, TrackID: id, SourcePath: id + ".mp4", StartMS: 0, DurationMS: 1000})
	}
	layers := tl.Resolve(500)
	if len(layers) != 3 {
		t.Fatalf("Resolve: %d layers", len(layers))
	}
	want := []string{"bottom", "middle", "top"}
	for i, id := range want {
		if layers[i].TrackID != id {
			t.Errorf("layer %d is %s, want %s", i, layers[i].TrackID, id)
		}
	}
}

func TestResolve_SourceTimeMapping(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("t1", 0))

	out := int64(2500)
	tests := []struct {
		name string
		clip Clip
		at   int64
		want int64
	}{
		{"plain", Clip{ID: "a", InPointMS: 0, StartMS: 0, DurationMS: 4000}, 1000, 1000},
		{"in point", Clip{ID: "b", InPointMS: 500, StartMS: 4000, DurationMS: 1000}, 4200, 700},
		{"double speed", Clip{ID: "c", InPointMS: 0, Speed: 2, StartMS: 6000, DurationMS: 1000}, 6500, 1000},
		{"freeze", Clip{ID: "d", InPointMS: 1500, Freeze: true, StartMS: 8000, DurationMS: 1000}, 8900, 1500},
		{"out point clamp", Clip{ID: "e", InPointMS: 2000, OutPointMS: &out, StartMS: 10000, DurationMS: 1000}, 10900, 2500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.clip
			c.TrackID = "t1"
			c.SourcePath = "src.mp4"
			mustAddClip(t, tl, &c)
			layers := tl.Resolve(tt.at)
			if len(layers) != 1 {
				t.Fatalf("Resolve(%d): %d layers", tt.at, len(layers))
			}
			if layers[0].SourceTimeMS != tt.want {
				t.Errorf("SourceTimeMS = %d, want %d", layers[0].SourceTimeMS, tt.want)
			}
			if err := tl.RemoveClip(c.ID); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestResolve_KeyframeInterpolation(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("media", 0))
	mustAddTrack(t, tl, &Track{ID: "tf", Type: TrackTransform, Visible: true, SortOrder: 1, TargetTrackID: "media"})
	mustAddClip(t, tl, &Clip{ID: "c1", TrackID: "media", SourcePath: "a.mp4", StartMS: 0, DurationMS: 5000})
	if err := tl.AddTransformClip(&TransformClip{
		ID: "tc1", TrackID: "tf", StartMS: 0, DurationMS: 2000,
		Keyframes: []Keyframe{
			{TimeMS: 0, ScaleX: f(1), ScaleY: f(1), Easing: CurveLinear},
			{TimeMS: 1000, ScaleX: f(2), ScaleY: f(2), Easing: CurveLinear},
		},
	}); err != nil {
		t.Fatal(err)
	}

	// Midpoint with linear easing: scale 1.5.
	layers := tl.Resolve(500)
	if got := layers[0].Transform.ScaleX; math.Abs(got-1.5) > 1e-12 {
		t.Errorf("scale at 500ms = %v, want 1.5", got)
	}

	// Exactly on a keyframe: its explicit value with no drift.
	layers = tl.Resolve(1000)
	if got := layers[0].Transform.ScaleX; got != 2 {
		t.Errorf("scale at keyframe = %v, want exactly 2", got)
	}
	layers = tl.Resolve(0)
	if got := layers[0].Transform.ScaleX; got != 1 {
		t.Errorf("scale at first keyframe = %v, want exactly 1", got)
	}

	// Past the last keyframe: clamp.
	layers = tl.Resolve(1900)
	if got := layers[0].Transform.ScaleX; got != 2 {
		t.Errorf("scale past last keyframe = %v, want 2", got)
	}
}

func TestResolve_KeyframeInheritance(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("media", 0))
	mustAddTrack(t, tl, &Track{ID: "tf", Type: TrackTransform, Visible: true, SortOrder: 1, TargetTrackID: "media"})
	mustAddClip(t, tl, &Clip{ID: "c1", TrackID: "media", SourcePath: "a.mp4", StartMS: 0, DurationMS: 5000})
	if err := tl.AddTransformClip(&TransformClip{
		ID: "tc1", TrackID: "tf", StartMS: 0, DurationMS: 3000,
		Keyframes: []Keyframe{
			{TimeMS: 0, PositionX: f(100), Rotation: f(45)},
			{TimeMS: 1000, PositionX: f(200)}, // rotation nil: inherits 45
			{TimeMS: 2000},                    // both nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	// Rotation inherits backward through nil keyframes.
	layers := tl.Resolve(1500)
	if got := layers[0].Transform.Rotation; got != 45 {
		t.Errorf("inherited rotation = %v, want 45", got)
	}
	// PositionX between kf1 (200) and kf2 (inherits 200): constant.
	if got := layers[0].Transform.PositionX; got != 200 {
		t.Errorf("position between set and inheriting keyframe = %v, want 200", got)
	}
	// Fields never set use documented defaults.
	if got := layers[0].Transform.ScaleX; got != 1 {
		t.Errorf("default scale = %v, want 1", got)
	}
	if got := layers[0].Opacity; got != 1 {
		t.Errorf("default opacity = %v, want 1", got)
	}
}

func TestResolve_PanOffsetsPosition(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("media", 0))
	mustAddTrack(t, tl, &Track{ID: "pan", Type: TrackPan, Visible: true, SortOrder: 1, TargetTrackID: "media"})
	mustAddClip(t, tl, &Clip{ID: "c1", TrackID: "media", SourcePath: "a.mp4", StartMS: 0, DurationMS: 4000})
	if err := tl.AddPanClip(&PanClip{
		ID: "p1", TrackID: "pan", StartMS: 0, DurationMS: 2000,
		StartX: 50, StartY: 50, EndX: 100, EndY: 50,
	}); err != nil {
		t.Fatal(err)
	}

	// No ramps: full intensity. At the pan midpoint the x offset is a
	// quarter of the canvas width (75% point minus the 50% neutral).
	layers := tl.Resolve(1000)
	want := 0.25 * 1920
	if got := layers[0].Transform.PositionX; math.Abs(got-want) > 1e-9 {
		t.Errorf("pan offset = %v, want %v", got, want)
	}
	if got := layers[0].Transform.PositionY; got != 0 {
		t.Errorf("pan y offset = %v, want 0", got)
	}
}

func TestResolve_BlurIntensityBlended(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("media", 0))
	mustAddTrack(t, tl, &Track{ID: "blur", Type: TrackBlur, Visible: true, SortOrder: 1, TargetTrackID: "media"})
	mustAddClip(t, tl, &Clip{ID: "c1", TrackID: "media", SourcePath: "a.mp4", StartMS: 0, DurationMS: 4000})
	if err := tl.AddBlurClip(&BlurClip{
		ID: "b1", TrackID: "blur", StartMS: 0, DurationMS: 2000,
		Intensity: 10, Region: BlurRegion{X: 100, Y: 100, Width: 200, Height: 50},
		EaseInMS: 1000, EaseOutMS: 0,
	}); err != nil {
		t.Fatal(err)
	}

	layers := tl.Resolve(500)
	if layers[0].Blur == nil {
		t.Fatal("no blur state resolved")
	}
	if got := layers[0].Blur.Intensity; math.Abs(got-5) > 1e-9 {
		t.Errorf("blur intensity at half ramp = %v, want 5", got)
	}
}

func TestResolve_TransitionProgress(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("t1", 0))
	mustAddClip(t, tl, &Clip{
		ID: "c1", TrackID: "t1", SourcePath: "a.mp4", StartMS: 0, DurationMS: 4000,
		EntranceType: TransitionFade, EntranceMS: 1000,
		ExitType: TransitionFade, ExitMS: 1000,
	})

	tests := []struct {
		at   int64
		want float64
	}{
		{0, 0},      // entrance start
		{500, 0.5},  // mid entrance
		{2000, 1},   // settled
		{3500, 0.5}, // mid exit
	}
	for _, tt := range tests {
		layers := tl.Resolve(tt.at)
		if got := layers[0].Opacity; math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("opacity at t=%d: got %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestResolve_PlaceholderForMissingSource(t *testing.T) {
	tl := New(testDemo())
	mustAddTrack(t, tl, videoTrack("t1", 0))
	mustAddClip(t, tl, &Clip{ID: "c1", TrackID: "t1", SourcePath: "", StartMS: 0, DurationMS: 1000})
	layers := tl.Resolve(500)
	if len(layers) != 1 {
		t.Fatalf("missing source dropped the layer entirely: %d layers", len(layers))
	}
	if !layers[0].Placeholder {
		t.Error("layer with no source not flagged as placeholder")
	}
}
