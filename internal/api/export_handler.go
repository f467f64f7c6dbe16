package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/takastudio/taka-agent/internal/export"
	"github.com/takastudio/taka-agent/internal/render"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		tl, err := cfg.DemoService.Timeline(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		projectName := export.SanitizeName(req.ProjectName, 120)
		if projectName == "" {
			projectName = export.SanitizeName(tl.Demo.Name, 120)
		}
		if projectName == "" {
			projectName = "taka_export"
		}

		clips := export.FromTimeline(tl)
		if len(clips) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "timeline has no exportable clips", "EMPTY_TIMELINE")
			return
		}

		edl := export.GenerateEDL(clips, projectName, float64(tl.Demo.FrameRate))
		outputPath := filepath.Join(req.OutputDir, projectName+".edl")
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, EDLResponse{
			Status:     "ok",
			OutputPath: outputPath,
			ClipCount:  len(clips),
		})
	}
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		tl, err := cfg.DemoService.Timeline(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		job, err := cfg.RenderManager.Start(r.Context(), tl, render.Options{
			Width:   req.Width,
			Height:  req.Height,
			FPS:     req.FPS,
			Format:  req.Format,
			Quality: req.Quality,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, StartExportResponse{ExportID: job.ID})
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := cfg.Repository.ListExports(r.Context(), r.URL.Query().Get("demo_id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}
		if records == nil {
			records = []*render.Record{}
		}
		WriteJSON(w, http.StatusOK, records)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// A live job gives real-time progress; finished jobs fall back to
		// their persisted record.
		if p, err := cfg.RenderManager.Progress(id); err == nil {
			WriteJSON(w, http.StatusOK, p)
			return
		}

		rec, err := cfg.Repository.GetExport(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if rec == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, rec)
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.RenderManager.Cancel(chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, p)
	}
}
