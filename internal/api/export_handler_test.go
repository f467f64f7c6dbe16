package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/takastudio/taka-agent/internal/timeline"
)

func TestExportEDL_WritesFile(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)
	trackID := addTrackViaAPI(t, router, id, timeline.TrackVideo, "")

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/clips", timeline.Clip{
		TrackID:    trackID,
		Name:       "Opening",
		SourcePath: "/media/opening.mp4",
		SourceType: timeline.TrackVideo,
		StartMS:    0,
		DurationMS: 2000,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d", rr.Code)
	}

	outDir := t.TempDir()
	rr = doJSON(t, router, http.MethodPost, "/demos/"+id+"/edl", EDLRequest{
		OutputDir:   outDir,
		ProjectName: "My Project",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("edl status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp EDLResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ClipCount != 1 {
		t.Errorf("ClipCount = %d, want 1", resp.ClipCount)
	}
	if resp.OutputPath != filepath.Join(outDir, "My Project.edl") {
		t.Errorf("OutputPath = %q", resp.OutputPath)
	}

	content, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("read EDL: %v", err)
	}
	edl := string(content)
	if !strings.Contains(edl, "TITLE: My Project") {
		t.Errorf("missing title: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  Opening") {
		t.Errorf("missing clip name: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/opening.mp4") {
		t.Errorf("missing media path: %q", edl)
	}
}

func TestExportEDL_EmptyTimeline(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/edl", EDLRequest{OutputDir: t.TempDir()})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestExportEDL_BadOutputDir(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/edl", EDLRequest{
		OutputDir: filepath.Join(t.TempDir(), "missing"),
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
