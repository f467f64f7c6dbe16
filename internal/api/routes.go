package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/takastudio/taka-agent/internal/config"
	"github.com/takastudio/taka-agent/internal/demo"
	"github.com/takastudio/taka-agent/internal/render"
	"github.com/takastudio/taka-agent/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/demos", listDemosHandler(cfg))
		r.Post("/demos", createDemoHandler(cfg))
		r.Get("/demos/{id}", getDemoHandler(cfg))
		r.Put("/demos/{id}", updateDemoHandler(cfg))
		r.Delete("/demos/{id}", deleteDemoHandler(cfg))
		r.Get("/demos/{id}/full", fullDemoHandler(cfg))
		r.Get("/demos/{id}/resolve", resolveHandler(cfg))

		r.Put("/demos/{id}/background", setBackgroundHandler(cfg))
		r.Delete("/demos/{id}/background", deleteBackgroundHandler(cfg))

		r.Post("/demos/{id}/tracks", addTrackHandler(cfg))
		r.Post("/demos/{id}/tracks/reorder", reorderTracksHandler(cfg))
		r.Put("/demos/{id}/tracks/{trackID}", updateTrackHandler(cfg))
		r.Delete("/demos/{id}/tracks/{trackID}", deleteTrackHandler(cfg))

		r.Post("/demos/{id}/clips", addClipHandler(cfg))
		r.Put("/demos/{id}/clips/{clipID}", updateClipHandler(cfg))
		r.Post("/demos/{id}/clips/{clipID}/move", moveClipHandler(cfg))
		r.Post("/demos/{id}/clips/{clipID}/trim", trimClipHandler(cfg))
		r.Delete("/demos/{id}/clips/{clipID}", deleteClipHandler(cfg))

		r.Post("/demos/{id}/zoom-clips", addZoomClipHandler(cfg))
		r.Put("/demos/{id}/zoom-clips/{clipID}", updateZoomClipHandler(cfg))
		r.Delete("/demos/{id}/zoom-clips/{clipID}", deleteZoomClipHandler(cfg))
		r.Post("/demos/{id}/blur-clips", addBlurClipHandler(cfg))
		r.Put("/demos/{id}/blur-clips/{clipID}", updateBlurClipHandler(cfg))
		r.Delete("/demos/{id}/blur-clips/{clipID}", deleteBlurClipHandler(cfg))
		r.Post("/demos/{id}/pan-clips", addPanClipHandler(cfg))
		r.Put("/demos/{id}/pan-clips/{clipID}", updatePanClipHandler(cfg))
		r.Delete("/demos/{id}/pan-clips/{clipID}", deletePanClipHandler(cfg))
		r.Post("/demos/{id}/transform-clips", addTransformClipHandler(cfg))
		r.Put("/demos/{id}/transform-clips/{clipID}", updateTransformClipHandler(cfg))
		r.Delete("/demos/{id}/transform-clips/{clipID}", deleteTransformClipHandler(cfg))

		r.Post("/demos/{id}/assets", importAssetHandler(cfg))
		r.Put("/demos/{id}/assets/{assetID}", updateAssetHandler(cfg))
		r.Delete("/demos/{id}/assets/{assetID}", deleteAssetHandler(cfg))

		r.Post("/demos/{id}/edl", exportEDLHandler(cfg))
		r.Post("/demos/{id}/export", startExportHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
		r.Post("/exports/{id}/cancel", cancelExportHandler(cfg))

		r.Get("/playback/file", playbackHandler(cfg))
	})

	return r
}

// writeDomainError maps service and model errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, demo.ErrDemoNotFound),
		errors.Is(err, timeline.ErrNotFound),
		errors.Is(err, render.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, render.ErrExportBusy):
		WriteError(w, http.StatusConflict, err.Error(), "EXPORT_BUSY")
	case errors.Is(err, render.ErrEmptyTimeline):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		var merr *timeline.ModelError
		if errors.As(err, &merr) {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		demos, _ := cfg.DemoService.ListDemos(r.Context())

		resp := StatusResponse{State: "idle", DemosCount: len(demos)}
		for _, d := range demos {
			if job, ok := cfg.RenderManager.ActiveJob(d.ID); ok {
				p := job.Snapshot()
				resp.State = "rendering"
				resp.ActiveExport = &p
				break
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listDemosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		demos, err := cfg.DemoService.ListDemos(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list demos", "INTERNAL_ERROR")
			return
		}
		if demos == nil {
			demos = []*timeline.Demo{}
		}
		WriteJSON(w, http.StatusOK, demos)
	}
}

func createDemoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDemoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}

		d, err := cfg.DemoService.CreateDemo(r.Context(), req.Name, req.Format, req.Width, req.Height, req.FrameRate)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, d)
	}
}

func getDemoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := cfg.DemoService.GetDemo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, d)
	}
}

func updateDemoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d timeline.Demo
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		d.ID = chi.URLParam(r, "id")
		if err := cfg.DemoService.UpdateDemo(r.Context(), &d); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, d)
	}
}

func deleteDemoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.DemoService.DeleteDemo(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func fullDemoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := cfg.DemoService.FullView(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func resolveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := strconv.ParseInt(r.URL.Query().Get("t"), 10, 64)
		if err != nil || t < 0 {
			WriteError(w, http.StatusBadRequest, "t must be a non-negative millisecond instant", "BAD_REQUEST")
			return
		}

		tl, err := cfg.DemoService.Timeline(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		layers := tl.Resolve(t)
		if layers == nil {
			layers = []timeline.Layer{}
		}
		WriteJSON(w, http.StatusOK, layers)
	}
}

func setBackgroundHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var bg timeline.Background
		if err := json.NewDecoder(r.Body).Decode(&bg); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.SetBackground(r.Context(), chi.URLParam(r, "id"), &bg); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, bg)
	}
}

func deleteBackgroundHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.DemoService.SetBackground(r.Context(), chi.URLParam(r, "id"), nil); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t timeline.Track
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.AddTrack(r.Context(), chi.URLParam(r, "id"), &t); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, t)
	}
}

func reorderTracksHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReorderTracksRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.ReorderTracks(r.Context(), chi.URLParam(r, "id"), req.TrackIDs); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t timeline.Track
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		t.ID = chi.URLParam(r, "trackID")
		if err := cfg.DemoService.UpdateTrack(r.Context(), chi.URLParam(r, "id"), &t); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, t)
	}
}

func deleteTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.DemoService.RemoveTrack(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "trackID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c timeline.Clip
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.AddClip(r.Context(), chi.URLParam(r, "id"), &c); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, c)
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c timeline.Clip
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		c.ID = chi.URLParam(r, "clipID")
		if err := cfg.DemoService.UpdateClip(r.Context(), chi.URLParam(r, "id"), &c); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, c)
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		err := cfg.DemoService.MoveClip(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "clipID"), req.StartTimeMS)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func trimClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		err := cfg.DemoService.TrimClip(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "clipID"),
			req.InPointMS, req.DurationMS)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.DemoService.RemoveClip(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "clipID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addZoomClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var z timeline.ZoomClip
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.AddZoomClip(r.Context(), chi.URLParam(r, "id"), &z); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, z)
	}
}

func updateZoomClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var z timeline.ZoomClip
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		z.ID = chi.URLParam(r, "clipID")
		if err := cfg.DemoService.UpdateZoomClip(r.Context(), chi.URLParam(r, "id"), &z); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, z)
	}
}

func deleteZoomClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.DemoService.RemoveZoomClip(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "clipID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addBlurClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b timeline.BlurClip
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.AddBlurClip(r.Context(), chi.URLParam(r, "id"), &b); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, b)
	}
}

func updateBlurClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b timeline.BlurClip
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		b.ID = chi.URLParam(r, "clipID")
		if err := cfg.DemoService.UpdateBlurClip(r.Context(), chi.URLParam(r, "id"), &b); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, b)
	}
}

func deleteBlurClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.DemoService.RemoveBlurClip(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "clipID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addPanClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p timeline.PanClip
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.AddPanClip(r.Context(), chi.URLParam(r, "id"), &p); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	}
}

func updatePanClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p timeline.PanClip
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		p.ID = chi.URLParam(r, "clipID")
		if err := cfg.DemoService.UpdatePanClip(r.Context(), chi.URLParam(r, "id"), &p); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func deletePanClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.DemoService.RemovePanClip(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "clipID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addTransformClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tc timeline.TransformClip
		if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.DemoService.AddTransformClip(r.Context(), chi.URLParam(r, "id"), &tc); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, tc)
	}
}

func updateTransformClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tc timeline.TransformClip
		if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		tc.ID = chi.URLParam(r, "clipID")
		if err := cfg.DemoService.UpdateTransformClip(r.Context(), chi.URLParam(r, "id"), &tc); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tc)
	}
}

func deleteTransformClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.DemoService.RemoveTransformClip(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "clipID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportAssetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		a, err := cfg.DemoService.ImportAsset(r.Context(), chi.URLParam(r, "id"), req.Path)
		if err != nil {
			if errors.Is(err, demo.ErrDemoNotFound) {
				writeDomainError(w, err)
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, a)
	}
}

func updateAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a timeline.Asset
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		a.ID = chi.URLParam(r, "assetID")
		if err := cfg.DemoService.UpdateAsset(r.Context(), chi.URLParam(r, "id"), &a); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, a)
	}
}

func deleteAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.DemoService.RemoveAsset(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "assetID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := r.URL.Query().Get("asset_id")
		if assetID == "" {
			WriteError(w, http.StatusBadRequest, "asset_id is required", "BAD_REQUEST")
			return
		}

		asset, err := cfg.Repository.GetAsset(r.Context(), assetID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if asset == nil {
			WriteError(w, http.StatusNotFound, "asset not found", "NOT_FOUND")
			return
		}

		if err := cfg.PlaybackServer.ServeFile(w, r, asset.Path); err != nil {
			cfg.Logger.Error("playback error", "error", err, "asset_id", assetID)
		}
	}
}
