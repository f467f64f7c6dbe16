package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/takastudio/taka-agent/internal/assets"
	"github.com/takastudio/taka-agent/internal/timeline"
)

var ErrDemoNotFound = errors.New("demo not found")

// DemoWithData is the bulk read shape the editor loads in one request:
// the demo with its background, every track carrying its own clips, and
// the asset library.
type DemoWithData struct {
	Demo       timeline.Demo        `json:"demo"`
	Background *timeline.Background `json:"background,omitempty"`
	Tracks     []*TrackWithClips    `json:"tracks"`
	Assets     []*timeline.Asset    `json:"assets"`
}

// TrackWithClips is a track plus the clips of its kind. Only the slice
// matching the track type is populated.
type TrackWithClips struct {
	timeline.Track
	Clips          []*timeline.Clip          `json:"clips,omitempty"`
	ZoomClips      []*timeline.ZoomClip      `json:"zoom_clips,omitempty"`
	BlurClips      []*timeline.BlurClip      `json:"blur_clips,omitempty"`
	PanClips       []*timeline.PanClip       `json:"pan_clips,omitempty"`
	TransformClips []*timeline.TransformClip `json:"transform_clips,omitempty"`
}

// Service is the demo editing surface: validated mutations that keep the
// database and the in-memory timeline model in agreement.
type Service struct {
	repo   Repository
	prober *assets.Prober // nil when ffprobe is unavailable
	logger *slog.Logger
}

func NewService(repo Repository, prober *assets.Prober, logger *slog.Logger) *Service {
	return &Service{repo: repo, prober: prober, logger: logger.With("component", "demo")}
}

// CreateDemo creates a demo with sensible canvas defaults.
func (s *Service) CreateDemo(ctx context.Context, name, format string, width, height, frameRate int) (*timeline.Demo, error) {
	if name == "" {
		return nil, fmt.Errorf("demo name is required")
	}
	if format == "" {
		format = "youtube"
	}
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}
	if frameRate <= 0 {
		frameRate = 60
	}
	d := &timeline.Demo{
		ID:        timeline.NewID(),
		Name:      name,
		Format:    format,
		Width:     width,
		Height:    height,
		FrameRate: frameRate,
	}
	if err := s.repo.CreateDemo(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("demo created", "demo_id", d.ID, "name", name)
	return d, nil
}

func (s *Service) GetDemo(ctx context.Context, id string) (*timeline.Demo, error) {
	d, err := s.repo.GetDemo(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDemoNotFound
	}
	return d, nil
}

func (s *Service) ListDemos(ctx context.Context) ([]*timeline.Demo, error) {
	return s.repo.ListDemos(ctx)
}

func (s *Service) UpdateDemo(ctx context.Context, d *timeline.Demo) error {
	if _, err := s.GetDemo(ctx, d.ID); err != nil {
		return err
	}
	return s.repo.UpdateDemo(ctx, d)
}

func (s *Service) DeleteDemo(ctx context.Context, id string) error {
	if _, err := s.GetDemo(ctx, id); err != nil {
		return err
	}
	s.logger.Info("demo deleted", "demo_id", id)
	return s.repo.DeleteDemo(ctx, id)
}

// Timeline loads the full demo as a live timeline. Rows that no longer
// validate against the model, e.g. an effect track whose target turned
// incompatible, are degraded rather than failing the whole load.
func (s *Service) Timeline(ctx context.Context, demoID string) (*timeline.Timeline, error) {
	d, err := s.GetDemo(ctx, demoID)
	if err != nil {
		return nil, err
	}
	tl := timeline.New(*d)

	bg, err := s.repo.GetBackground(ctx, demoID)
	if err != nil {
		return nil, err
	}
	tl.SetBackground(bg)

	tracks, err := s.repo.ListTracks(ctx, demoID)
	if err != nil {
		return nil, err
	}
	// Media tracks first so effect targets resolve regardless of sort
	// order.
	for _, pass := range []bool{true, false} {
		for _, t := range tracks {
			if t.IsMedia() != pass {
				continue
			}
			if err := tl.AddTrack(t); err != nil {
				s.logger.Warn("track failed validation on load, detaching target",
					"track_id", t.ID, "error", err)
				t.TargetTrackID = ""
				if err := tl.AddTrack(t); err != nil {
					return nil, fmt.Errorf("load track %s: %w", t.ID, err)
				}
			}
		}
	}

	clips, err := s.repo.ListClipsByDemo(ctx, demoID)
	if err != nil {
		return nil, err
	}
	for _, c := range clips {
		if err := tl.AddClip(c); err != nil {
			s.logger.Warn("skipping clip that failed validation on load",
				"clip_id", c.ID, "error", err)
		}
	}

	zooms, err := s.repo.ListZoomClipsByDemo(ctx, demoID)
	if err != nil {
		return nil, err
	}
	for _, z := range zooms {
		if err := tl.AddZoomClip(z); err != nil {
			s.logger.Warn("skipping zoom clip on load", "clip_id", z.ID, "error", err)
		}
	}
	blurs, err := s.repo.ListBlurClipsByDemo(ctx, demoID)
	if err != nil {
		return nil, err
	}
	for _, b := range blurs {
		if err := tl.AddBlurClip(b); err != nil {
			s.logger.Warn("skipping blur clip on load", "clip_id", b.ID, "error", err)
		}
	}
	pans, err := s.repo.ListPanClipsByDemo(ctx, demoID)
	if err != nil {
		return nil, err
	}
	for _, p := range pans {
		if err := tl.AddPanClip(p); err != nil {
			s.logger.Warn("skipping pan clip on load", "clip_id", p.ID, "error", err)
		}
	}
	transforms, err := s.repo.ListTransformClipsByDemo(ctx, demoID)
	if err != nil {
		return nil, err
	}
	for _, tc := range transforms {
		if err := tl.AddTransformClip(tc); err != nil {
			s.logger.Warn("skipping transform clip on load", "clip_id", tc.ID, "error", err)
		}
	}

	assetList, err := s.repo.ListAssets(ctx, demoID)
	if err != nil {
		return nil, err
	}
	for _, a := range assetList {
		tl.AddAsset(a)
	}
	return tl, nil
}

// FullView returns the bulk editor shape for one demo.
func (s *Service) FullView(ctx context.Context, demoID string) (*DemoWithData, error) {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return nil, err
	}

	view := &DemoWithData{
		Demo:       tl.Demo,
		Background: tl.Background,
		Assets:     tl.Assets,
		Tracks:     make([]*TrackWithClips, 0, len(tl.Tracks)),
	}
	for _, t := range tl.Tracks {
		tw := &TrackWithClips{Track: *t}
		switch {
		case t.IsMedia():
			tw.Clips = tl.Clips(t.ID)
		case t.Type == timeline.TrackZoom:
			tw.ZoomClips = tl.ZoomClips(t.ID)
		case t.Type == timeline.TrackBlur:
			tw.BlurClips = tl.BlurClips(t.ID)
		case t.Type == timeline.TrackPan:
			tw.PanClips = tl.PanClips(t.ID)
		case t.Type == timeline.TrackTransform:
			tw.TransformClips = tl.TransformClips(t.ID)
		}
		view.Tracks = append(view.Tracks, tw)
	}
	return view, nil
}

// SetBackground validates and persists the demo background.
func (s *Service) SetBackground(ctx context.Context, demoID string, bg *timeline.Background) error {
	if _, err := s.GetDemo(ctx, demoID); err != nil {
		return err
	}
	if bg == nil {
		return s.repo.DeleteBackground(ctx, demoID)
	}
	switch bg.Type {
	case timeline.BackgroundColor, timeline.BackgroundGradient, timeline.BackgroundPattern,
		timeline.BackgroundMedia, timeline.BackgroundBlur:
	default:
		return &timeline.ModelError{Op: "set background", ID: demoID, Err: timeline.ErrUnknownBackground}
	}
	return s.repo.UpsertBackground(ctx, demoID, bg)
}

// AddTrack validates the track against the live timeline and persists it.
func (s *Service) AddTrack(ctx context.Context, demoID string, t *timeline.Track) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = timeline.NewID()
	}
	t.DemoID = demoID
	if t.SortOrder == 0 {
		t.SortOrder = len(tl.Tracks)
	}
	if err := tl.AddTrack(t); err != nil {
		return err
	}
	return s.repo.CreateTrack(ctx, demoID, t)
}

func (s *Service) UpdateTrack(ctx context.Context, demoID string, t *timeline.Track) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	existing := tl.Track(t.ID)
	if existing == nil {
		return timeline.ErrNotFound
	}
	if t.TargetTrackID != existing.TargetTrackID {
		if err := tl.RetargetTrack(t.ID, t.TargetTrackID); err != nil {
			return err
		}
	}
	return s.repo.UpdateTrack(ctx, t)
}

func (s *Service) RemoveTrack(ctx context.Context, demoID, trackID string) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveTrack(trackID); err != nil {
		return err
	}
	// Tracks that targeted the removed one go inert; mirror that in the
	// database before the row disappears.
	for _, t := range tl.Tracks {
		if t.TargetTrackID == trackID {
			t.TargetTrackID = ""
			if err := s.repo.UpdateTrack(ctx, t); err != nil {
				return err
			}
		}
	}
	return s.repo.DeleteTrack(ctx, trackID)
}

// ReorderTracks applies a complete new ordering.
func (s *Service) ReorderTracks(ctx context.Context, demoID string, ids []string) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.ReorderTracks(ids); err != nil {
		return err
	}
	for _, t := range tl.Tracks {
		if err := s.repo.UpdateTrack(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// AddClip validates placement and persists the clip.
func (s *Service) AddClip(ctx context.Context, demoID string, c *timeline.Clip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = timeline.NewID()
	}
	if err := tl.AddClip(c); err != nil {
		return err
	}
	if err := s.repo.CreateClip(ctx, c); err != nil {
		return err
	}
	return s.syncDuration(ctx, tl)
}

func (s *Service) MoveClip(ctx context.Context, demoID, clipID string, startMS int64) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.MoveClip(clipID, startMS); err != nil {
		return err
	}
	if err := s.repo.UpdateClip(ctx, tl.Clip(clipID)); err != nil {
		return err
	}
	return s.syncDuration(ctx, tl)
}

func (s *Service) TrimClip(ctx context.Context, demoID, clipID string, inPointMS, durationMS int64) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.TrimClip(clipID, inPointMS, durationMS); err != nil {
		return err
	}
	if err := s.repo.UpdateClip(ctx, tl.Clip(clipID)); err != nil {
		return err
	}
	return s.syncDuration(ctx, tl)
}

// UpdateClip replaces a clip's full state, revalidating its placement.
func (s *Service) UpdateClip(ctx context.Context, demoID string, c *timeline.Clip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if tl.Clip(c.ID) == nil {
		return timeline.ErrNotFound
	}
	if err := tl.RemoveClip(c.ID); err != nil {
		return err
	}
	if err := tl.AddClip(c); err != nil {
		return err
	}
	if err := s.repo.UpdateClip(ctx, c); err != nil {
		return err
	}
	return s.syncDuration(ctx, tl)
}

func (s *Service) RemoveClip(ctx context.Context, demoID, clipID string) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveClip(clipID); err != nil {
		return err
	}
	if err := s.repo.DeleteClip(ctx, clipID); err != nil {
		return err
	}
	return s.syncDuration(ctx, tl)
}

func (s *Service) AddZoomClip(ctx context.Context, demoID string, z *timeline.ZoomClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if z.ID == "" {
		z.ID = timeline.NewID()
	}
	if err := tl.AddZoomClip(z); err != nil {
		return err
	}
	return s.repo.CreateZoomClip(ctx, z)
}

// UpdateZoomClip replaces a zoom clip's full state, revalidating its
// placement against the live timeline like UpdateClip does.
func (s *Service) UpdateZoomClip(ctx context.Context, demoID string, z *timeline.ZoomClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveZoomClip(z.ID); err != nil {
		return err
	}
	if err := tl.AddZoomClip(z); err != nil {
		return err
	}
	return s.repo.UpdateZoomClip(ctx, z)
}

func (s *Service) RemoveZoomClip(ctx context.Context, demoID, clipID string) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveZoomClip(clipID); err != nil {
		return err
	}
	return s.repo.DeleteZoomClip(ctx, clipID)
}

func (s *Service) AddBlurClip(ctx context.Context, demoID string, b *timeline.BlurClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = timeline.NewID()
	}
	if err := tl.AddBlurClip(b); err != nil {
		return err
	}
	return s.repo.CreateBlurClip(ctx, b)
}

func (s *Service) UpdateBlurClip(ctx context.Context, demoID string, b *timeline.BlurClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveBlurClip(b.ID); err != nil {
		return err
	}
	if err := tl.AddBlurClip(b); err != nil {
		return err
	}
	return s.repo.UpdateBlurClip(ctx, b)
}

func (s *Service) RemoveBlurClip(ctx context.Context, demoID, clipID string) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveBlurClip(clipID); err != nil {
		return err
	}
	return s.repo.DeleteBlurClip(ctx, clipID)
}

func (s *Service) AddPanClip(ctx context.Context, demoID string, p *timeline.PanClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = timeline.NewID()
	}
	if err := tl.AddPanClip(p); err != nil {
		return err
	}
	return s.repo.CreatePanClip(ctx, p)
}

func (s *Service) UpdatePanClip(ctx context.Context, demoID string, p *timeline.PanClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemovePanClip(p.ID); err != nil {
		return err
	}
	if err := tl.AddPanClip(p); err != nil {
		return err
	}
	return s.repo.UpdatePanClip(ctx, p)
}

func (s *Service) RemovePanClip(ctx context.Context, demoID, clipID string) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemovePanClip(clipID); err != nil {
		return err
	}
	return s.repo.DeletePanClip(ctx, clipID)
}

func (s *Service) AddTransformClip(ctx context.Context, demoID string, tc *timeline.TransformClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if tc.ID == "" {
		tc.ID = timeline.NewID()
	}
	if err := tl.AddTransformClip(tc); err != nil {
		return err
	}
	return s.repo.CreateTransformClip(ctx, tc)
}

func (s *Service) UpdateTransformClip(ctx context.Context, demoID string, tc *timeline.TransformClip) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveTransformClip(tc.ID); err != nil {
		return err
	}
	if err := tl.AddTransformClip(tc); err != nil {
		return err
	}
	return s.repo.UpdateTransformClip(ctx, tc)
}

func (s *Service) RemoveTransformClip(ctx context.Context, demoID, clipID string) error {
	tl, err := s.Timeline(ctx, demoID)
	if err != nil {
		return err
	}
	if err := tl.RemoveTransformClip(clipID); err != nil {
		return err
	}
	return s.repo.DeleteTransformClip(ctx, clipID)
}

// ImportAsset probes a media file and records it in the demo's library.
func (s *Service) ImportAsset(ctx context.Context, demoID, path string) (*timeline.Asset, error) {
	if _, err := s.GetDemo(ctx, demoID); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("file does not exist: %w", err)
	}

	a := &timeline.Asset{
		ID:       timeline.NewID(),
		DemoID:   demoID,
		Name:     filepath.Base(abs),
		Path:     abs,
		FileSize: info.Size(),
	}
	if s.prober != nil {
		probed, err := s.prober.Probe(ctx, abs)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", a.Name, err)
		}
		a.Type = probed.Kind
		if probed.DurationMS > 0 {
			d := probed.DurationMS
			a.DurationMS = &d
		}
		if probed.Width > 0 {
			w, h := probed.Width, probed.Height
			a.Width = &w
			a.Height = &h
		}
		hasAudio := probed.HasAudio
		a.HasAudio = &hasAudio
	} else {
		a.Type = guessAssetType(abs)
	}

	if err := s.repo.CreateAsset(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("asset imported", "demo_id", demoID, "asset_id", a.ID, "type", a.Type)
	return a, nil
}

// UpdateAsset edits an asset's metadata. The file path and detected type
// are pinned at import; blank values fall back to what is on record.
func (s *Service) UpdateAsset(ctx context.Context, demoID string, a *timeline.Asset) error {
	existing, err := s.repo.GetAsset(ctx, a.ID)
	if err != nil {
		return err
	}
	if existing == nil || existing.DemoID != demoID {
		return timeline.ErrNotFound
	}
	a.DemoID = existing.DemoID
	a.Path = existing.Path
	a.Type = existing.Type
	if a.Name == "" {
		a.Name = existing.Name
	}
	return s.repo.UpdateAsset(ctx, a)
}

func (s *Service) RemoveAsset(ctx context.Context, demoID, assetID string) error {
	if _, err := s.GetDemo(ctx, demoID); err != nil {
		return err
	}
	return s.repo.DeleteAsset(ctx, assetID)
}

// syncDuration writes back the recomputed content duration after a clip
// edit so list views stay accurate without hydrating.
func (s *Service) syncDuration(ctx context.Context, tl *timeline.Timeline) error {
	d := tl.Demo
	recomputed := tl.Duration()
	if recomputed == d.DurationMS {
		return nil
	}
	d.DurationMS = recomputed
	return s.repo.UpdateDemo(ctx, &d)
}

func guessAssetType(path string) string {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return timeline.TrackImage
	case ".mp3", ".wav", ".ogg", ".m4a":
		return timeline.TrackAudio
	default:
		return timeline.TrackVideo
	}
}
