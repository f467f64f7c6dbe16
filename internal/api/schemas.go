package api

import (
	"github.com/takastudio/taka-agent/internal/render"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string           `json:"state"`
	DemosCount   int              `json:"demos_count"`
	ActiveExport *render.Progress `json:"active_export,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
}

type CreateDemoRequest struct {
	Name      string `json:"name"`
	Format    string `json:"format,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	FrameRate int    `json:"frame_rate,omitempty"`
}

type ReorderTracksRequest struct {
	TrackIDs []string `json:"track_ids"`
}

type MoveClipRequest struct {
	StartTimeMS int64 `json:"start_time_ms"`
}

type TrimClipRequest struct {
	InPointMS  int64 `json:"in_point_ms"`
	DurationMS int64 `json:"duration_ms"`
}

type ImportAssetRequest struct {
	Path string `json:"path"`
}

type StartExportRequest struct {
	Format  string  `json:"format,omitempty"`
	Quality string  `json:"quality,omitempty"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	FPS     float64 `json:"fps,omitempty"`
}

type StartExportResponse struct {
	ExportID string `json:"export_id"`
}

type EDLRequest struct {
	OutputDir   string `json:"output_dir"`
	ProjectName string `json:"project_name,omitempty"`
}

type EDLResponse struct {
	Status     string `json:"status"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
