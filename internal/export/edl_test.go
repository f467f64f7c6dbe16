package export

import (
	"strings"
	"testing"

	"github.com/takastudio/taka-agent/internal/timeline"
)

func TestGenerateEDL_SingleClip(t *testing.T) {
	clips := []ResolvedClip{{
		ClipName:    "Intro",
		MediaPath:   "/media/intro.mp4",
		SrcInMs:     0,
		SrcOutMs:    2000,
		RecordInMs:  0,
		RecordOutMs: 2000,
	}}

	edl := GenerateEDL(clips, "Project One", 30.0)

	if !strings.Contains(edl, "TITLE: Project One") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  Intro") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/intro.mp4") {
		t.Fatalf("missing media path comment: %q", edl)
	}
}

func TestGenerateEDL_TrimmedClip(t *testing.T) {
	clips := []ResolvedClip{{
		ClipName:    "Cut",
		MediaPath:   "/a.mp4",
		SrcInMs:     500,
		SrcOutMs:    1500,
		RecordInMs:  1000,
		RecordOutMs: 2000,
	}}

	edl := GenerateEDL(clips, "Trim", 30.0)

	if !strings.Contains(edl, "001  AX       V     C        00:00:00:15 00:00:01:15 00:00:01:00 00:00:02:00") {
		t.Fatalf("event line mismatch: %q", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	clips := []ResolvedClip{{ClipName: "Clip", MediaPath: "/x.mp4", SrcOutMs: 1000, RecordOutMs: 1000}}
	edl := GenerateEDL(clips, "Drop", 29.97)

	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
}

func TestFromTimeline(t *testing.T) {
	tl := timeline.New(timeline.Demo{ID: "d", Name: "Demo", Width: 1920, Height: 1080, FrameRate: 30})
	video := &timeline.Track{ID: "v", Type: timeline.TrackVideo, Visible: true}
	audio := &timeline.Track{ID: "a", Type: timeline.TrackAudio, Visible: true}
	if err := tl.AddTrack(video); err != nil {
		t.Fatal(err)
	}
	if err := tl.AddTrack(audio); err != nil {
		t.Fatal(err)
	}

	clips := []*timeline.Clip{
		{ID: "c2", TrackID: "v", Name: "Second", SourcePath: "/b.mp4", SourceType: timeline.TrackVideo, StartMS: 3000, DurationMS: 1000, InPointMS: 250},
		{ID: "c1", TrackID: "v", Name: "First", SourcePath: "/a.mp4", SourceType: timeline.TrackVideo, StartMS: 0, DurationMS: 2000},
		{ID: "c3", TrackID: "a", SourcePath: "/music.mp3", SourceType: timeline.TrackAudio, StartMS: 0, DurationMS: 5000},
	}
	for _, c := range clips {
		if err := tl.AddClip(c); err != nil {
			t.Fatalf("AddClip(%s) error = %v", c.ID, err)
		}
	}

	got := FromTimeline(tl)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (audio excluded)", len(got))
	}
	if got[0].ClipName != "First" || got[1].ClipName != "Second" {
		t.Errorf("events out of record order: %+v", got)
	}
	if got[1].SrcInMs != 250 || got[1].SrcOutMs != 1250 {
		t.Errorf("trimmed source range = [%d,%d], want [250,1250]", got[1].SrcInMs, got[1].SrcOutMs)
	}
	if got[1].RecordInMs != 3000 || got[1].RecordOutMs != 4000 {
		t.Errorf("record range = [%d,%d], want [3000,4000]", got[1].RecordInMs, got[1].RecordOutMs)
	}
}

func TestFromTimeline_SpeedScalesSource(t *testing.T) {
	tl := timeline.New(timeline.Demo{ID: "d", Name: "Demo", FrameRate: 30})
	if err := tl.AddTrack(&timeline.Track{ID: "v", Type: timeline.TrackVideo, Visible: true}); err != nil {
		t.Fatal(err)
	}
	c := &timeline.Clip{
		ID: "c", TrackID: "v", Name: "Fast", SourcePath: "/a.mp4",
		SourceType: timeline.TrackVideo, DurationMS: 1000, Speed: 2,
	}
	if err := tl.AddClip(c); err != nil {
		t.Fatal(err)
	}

	got := FromTimeline(tl)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].SrcOutMs != 2000 {
		t.Errorf("SrcOutMs = %d, want 2000 (2x speed covers twice the source)", got[0].SrcOutMs)
	}
}

func TestMsToTimecode(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		fps  int
		want string
	}{
		{name: "zero", ms: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", ms: 1000, fps: 30, want: "00:00:01:00"},
		{name: "fractional second", ms: 500, fps: 30, want: "00:00:00:15"},
		{name: "one minute", ms: 60000, fps: 30, want: "00:01:00:00"},
		{name: "one hour", ms: 3600000, fps: 30, want: "01:00:00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := msToTimecode(tc.ms, tc.fps)
			if got != tc.want {
				t.Fatalf("msToTimecode(%d, %d) = %q, want %q", tc.ms, tc.fps, got, tc.want)
			}
		})
	}
}
