package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/takastudio/taka-agent/internal/db"
	"github.com/takastudio/taka-agent/internal/demo"
	"github.com/takastudio/taka-agent/internal/playback"
	"github.com/takastudio/taka-agent/internal/render"
	"github.com/takastudio/taka-agent/internal/timeline"
)

const testToken = "test-token"

type stubFrames struct{}

func (stubFrames) Frame(path, kind string, atMS int64) (image.Image, error) {
	return nil, errors.New("no media available")
}

func newTestRouter(t *testing.T) (*chi.Mux, demo.Repository) {
	t.Helper()
	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := demo.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	manager := render.NewManager(render.Config{
		FFmpegPath: "/nonexistent/ffmpeg",
		ExportsDir: dir,
		Frames:     stubFrames{},
		Store:      repo,
		Logger:     logger,
	})
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	cfg := ServerConfig{
		Port:           0,
		DemoService:    demo.NewService(repo, nil, logger),
		Repository:     repo,
		RenderManager:  manager,
		PlaybackServer: playback.NewServer(logger),
		Logger:         logger,
		StartTime:      time.Now(),
		DeviceID:       "test-device",
	}
	return NewRouter(cfg), repo
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v (%s)", err, rr.Body.String())
	}
	return body
}

func createDemoViaAPI(t *testing.T, router http.Handler) string {
	t.Helper()
	rr := doJSON(t, router, http.MethodPost, "/demos", CreateDemoRequest{
		Name: "API Demo", Width: 64, Height: 48, FrameRate: 10,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create demo status = %d: %s", rr.Code, rr.Body.String())
	}
	return decodeJSONBody(t, rr)["id"].(string)
}

func addTrackViaAPI(t *testing.T, router http.Handler, demoID, kind, target string) string {
	t.Helper()
	rr := doJSON(t, router, http.MethodPost, "/demos/"+demoID+"/tracks", timeline.Track{
		Type: kind, Name: kind, Visible: true, Volume: 1, TargetTrackID: target,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add %s track status = %d: %s", kind, rr.Code, rr.Body.String())
	}
	return decodeJSONBody(t, rr)["id"].(string)
}

func TestHealth_NoAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["device_id"] != "test-device" {
		t.Errorf("device_id = %v", body["device_id"])
	}
}

func TestAuth_Rejections(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "wrong token", header: "Bearer wrong-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/demos", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
		})
	}
}

func TestDemoCRUD(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)

	rr := doJSON(t, router, http.MethodGet, "/demos/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get demo status = %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["name"]; got != "API Demo" {
		t.Errorf("name = %v", got)
	}

	rr = doJSON(t, router, http.MethodGet, "/demos", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list demos status = %d", rr.Code)
	}
	var demos []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &demos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(demos) != 1 {
		t.Fatalf("got %d demos, want 1", len(demos))
	}

	rr = doJSON(t, router, http.MethodDelete, "/demos/"+id, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/demos/"+id, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestClipLifecycleAndResolve(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)
	trackID := addTrackViaAPI(t, router, id, timeline.TrackVideo, "")

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/clips", timeline.Clip{
		TrackID:    trackID,
		Name:       "clip",
		SourcePath: "/media/clip.mp4",
		SourceType: timeline.TrackVideo,
		StartMS:    0,
		DurationMS: 1000,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d: %s", rr.Code, rr.Body.String())
	}
	clipID := decodeJSONBody(t, rr)["id"].(string)

	// Overlap is rejected with a model error.
	rr = doJSON(t, router, http.MethodPost, "/demos/"+id+"/clips", timeline.Clip{
		TrackID:    trackID,
		SourcePath: "/media/other.mp4",
		SourceType: timeline.TrackVideo,
		StartMS:    500,
		DurationMS: 1000,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("overlapping clip status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/demos/"+id+"/resolve?t=500", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", rr.Code)
	}
	var layers []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &layers); err != nil {
		t.Fatalf("decode layers: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}
	if layers[0]["clip_id"] != clipID {
		t.Errorf("layer clip_id = %v", layers[0]["clip_id"])
	}

	rr = doJSON(t, router, http.MethodPost, "/demos/"+id+"/clips/"+clipID+"/move",
		MoveClipRequest{StartTimeMS: 2000})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("move status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, http.MethodGet, "/demos/"+id+"/resolve?t=500", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &layers); err != nil {
		t.Fatalf("decode layers: %v", err)
	}
	if len(layers) != 0 {
		t.Fatalf("got %d layers after move, want 0", len(layers))
	}

	rr = doJSON(t, router, http.MethodDelete, "/demos/"+id+"/clips/"+clipID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete clip status = %d", rr.Code)
	}
}

func TestZoomClipEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)
	videoID := addTrackViaAPI(t, router, id, timeline.TrackVideo, "")
	zoomTrackID := addTrackViaAPI(t, router, id, timeline.TrackZoom, videoID)

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/zoom-clips", timeline.ZoomClip{
		TrackID: zoomTrackID, StartMS: 0, DurationMS: 1000,
		Scale: 2, CenterX: 50, CenterY: 50,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add zoom clip status = %d: %s", rr.Code, rr.Body.String())
	}
	clipID := decodeJSONBody(t, rr)["id"].(string)

	rr = doJSON(t, router, http.MethodPut, "/demos/"+id+"/zoom-clips/"+clipID, timeline.ZoomClip{
		TrackID: zoomTrackID, StartMS: 2000, DurationMS: 500,
		Scale: 4, CenterX: 25, CenterY: 75,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update zoom clip status = %d: %s", rr.Code, rr.Body.String())
	}
	updated := decodeJSONBody(t, rr)
	if updated["zoom_scale"].(float64) != 4 || updated["start_time_ms"].(float64) != 2000 {
		t.Errorf("updated zoom clip = %v", updated)
	}

	rr = doJSON(t, router, http.MethodPut, "/demos/"+id+"/zoom-clips/no-such-clip", timeline.ZoomClip{
		TrackID: zoomTrackID, StartMS: 0, DurationMS: 500, Scale: 2,
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("update missing zoom clip status = %d, want 404", rr.Code)
	}

	rr = doJSON(t, router, http.MethodDelete, "/demos/"+id+"/zoom-clips/"+clipID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete zoom clip status = %d", rr.Code)
	}
}

func TestFullView(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)
	trackID := addTrackViaAPI(t, router, id, timeline.TrackVideo, "")

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/clips", timeline.Clip{
		TrackID: trackID, SourcePath: "/a.mp4", SourceType: timeline.TrackVideo, DurationMS: 1000,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/demos/"+id+"/full", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("full view status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	tracks, ok := body["tracks"].([]interface{})
	if !ok || len(tracks) != 1 {
		t.Fatalf("tracks = %v", body["tracks"])
	}
	track := tracks[0].(map[string]interface{})
	clips, ok := track["clips"].([]interface{})
	if !ok || len(clips) != 1 {
		t.Fatalf("track clips = %v", track["clips"])
	}
}

func TestBackgroundEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)

	rr := doJSON(t, router, http.MethodPut, "/demos/"+id+"/background", timeline.Background{
		Type: timeline.BackgroundColor, Color: "#102030",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set background status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, http.MethodPut, "/demos/"+id+"/background", timeline.Background{
		Type: "plaid",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad background type status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, http.MethodDelete, "/demos/"+id+"/background", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete background status = %d", rr.Code)
	}
}

func TestExportFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)
	trackID := addTrackViaAPI(t, router, id, timeline.TrackVideo, "")

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/clips", timeline.Clip{
		TrackID: trackID, SourcePath: "/missing.mp4", SourceType: timeline.TrackVideo, DurationMS: 200,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d", rr.Code)
	}

	// ffmpeg is not available in the test environment; the avi fallback
	// renders with the pure-Go encoder.
	rr = doJSON(t, router, http.MethodPost, "/demos/"+id+"/export", StartExportRequest{Format: render.FormatAVI})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start export status = %d: %s", rr.Code, rr.Body.String())
	}
	exportID := decodeJSONBody(t, rr)["export_id"].(string)

	deadline := time.Now().Add(10 * time.Second)
	var state string
	for time.Now().Before(deadline) {
		rr = doJSON(t, router, http.MethodGet, "/exports/"+exportID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("get export status = %d: %s", rr.Code, rr.Body.String())
		}
		state, _ = decodeJSONBody(t, rr)["state"].(string)
		if state == render.StateCompleted || state == render.StateFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if state != render.StateCompleted {
		t.Fatalf("export state = %q, want completed", state)
	}

	rr = doJSON(t, router, http.MethodGet, "/exports?demo_id="+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list exports status = %d", rr.Code)
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d export records, want 1", len(records))
	}
}

func TestExportEmptyTimeline(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/export", StartExportRequest{Format: render.FormatAVI})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty export status = %d, want 400", rr.Code)
	}
}

func TestCancelExport_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/exports/missing/cancel", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("cancel status = %d, want 404", rr.Code)
	}
}

func TestStatus_Idle(t *testing.T) {
	router, _ := newTestRouter(t)
	createDemoViaAPI(t, router)

	rr := doJSON(t, router, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	if body["demos_count"].(float64) != 1 {
		t.Errorf("demos_count = %v, want 1", body["demos_count"])
	}
}

func TestPlayback_ServesAsset(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createDemoViaAPI(t, router)

	mediaPath := filepath.Join(t.TempDir(), "clip.bin")
	if err := os.WriteFile(mediaPath, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := doJSON(t, router, http.MethodPost, "/demos/"+id+"/assets", ImportAssetRequest{Path: mediaPath})
	if rr.Code != http.StatusCreated {
		t.Fatalf("import asset status = %d: %s", rr.Code, rr.Body.String())
	}
	assetID := decodeJSONBody(t, rr)["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/playback/file?asset_id="+assetID, nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("playback status = %d, want 206", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Errorf("range body = %q, want 2345", rec.Body.String())
	}
}

func TestPlayback_UnknownAsset(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/playback/file?asset_id=missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
