// Package demo persists demo timelines and loads them back as live
// timeline values, and carries the service layer the HTTP API talks to.
package demo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/takastudio/taka-agent/internal/render"
	"github.com/takastudio/taka-agent/internal/timeline"
)

type Repository interface {
	CreateDemo(ctx context.Context, d *timeline.Demo) error
	GetDemo(ctx context.Context, id string) (*timeline.Demo, error)
	ListDemos(ctx context.Context) ([]*timeline.Demo, error)
	UpdateDemo(ctx context.Context, d *timeline.Demo) error
	DeleteDemo(ctx context.Context, id string) error

	UpsertBackground(ctx context.Context, demoID string, bg *timeline.Background) error
	GetBackground(ctx context.Context, demoID string) (*timeline.Background, error)
	DeleteBackground(ctx context.Context, demoID string) error

	CreateTrack(ctx context.Context, demoID string, t *timeline.Track) error
	ListTracks(ctx context.Context, demoID string) ([]*timeline.Track, error)
	UpdateTrack(ctx context.Context, t *timeline.Track) error
	DeleteTrack(ctx context.Context, id string) error

	CreateClip(ctx context.Context, c *timeline.Clip) error
	ListClipsByDemo(ctx context.Context, demoID string) ([]*timeline.Clip, error)
	UpdateClip(ctx context.Context, c *timeline.Clip) error
	DeleteClip(ctx context.Context, id string) error

	CreateZoomClip(ctx context.Context, z *timeline.ZoomClip) error
	ListZoomClipsByDemo(ctx context.Context, demoID string) ([]*timeline.ZoomClip, error)
	UpdateZoomClip(ctx context.Context, z *timeline.ZoomClip) error
	DeleteZoomClip(ctx context.Context, id string) error

	CreateBlurClip(ctx context.Context, b *timeline.BlurClip) error
	ListBlurClipsByDemo(ctx context.Context, demoID string) ([]*timeline.BlurClip, error)
	UpdateBlurClip(ctx context.Context, b *timeline.BlurClip) error
	DeleteBlurClip(ctx context.Context, id string) error

	CreatePanClip(ctx context.Context, p *timeline.PanClip) error
	ListPanClipsByDemo(ctx context.Context, demoID string) ([]*timeline.PanClip, error)
	UpdatePanClip(ctx context.Context, p *timeline.PanClip) error
	DeletePanClip(ctx context.Context, id string) error

	CreateTransformClip(ctx context.Context, tc *timeline.TransformClip) error
	ListTransformClipsByDemo(ctx context.Context, demoID string) ([]*timeline.TransformClip, error)
	UpdateTransformClip(ctx context.Context, tc *timeline.TransformClip) error
	DeleteTransformClip(ctx context.Context, id string) error

	CreateAsset(ctx context.Context, a *timeline.Asset) error
	GetAsset(ctx context.Context, id string) (*timeline.Asset, error)
	ListAssets(ctx context.Context, demoID string) ([]*timeline.Asset, error)
	UpdateAsset(ctx context.Context, a *timeline.Asset) error
	DeleteAsset(ctx context.Context, id string) error

	SaveExport(ctx context.Context, rec render.Record) error
	GetExport(ctx context.Context, id string) (*render.Record, error)
	ListExports(ctx context.Context, demoID string) ([]*render.Record, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// demos

func (r *SQLiteRepository) CreateDemo(ctx context.Context, d *timeline.Demo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO demos (id, name, format, width, height, frame_rate, duration_ms, export_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, d.ID, d.Name, d.Format, d.Width, d.Height, d.FrameRate, d.DurationMS, nullString(d.ExportPath))
	return err
}

func (r *SQLiteRepository) GetDemo(ctx context.Context, id string) (*timeline.Demo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, format, width, height, frame_rate, duration_ms, export_path
		FROM demos WHERE id = ?
	`, id)
	return scanDemo(row)
}

func (r *SQLiteRepository) ListDemos(ctx context.Context) ([]*timeline.Demo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, format, width, height, frame_rate, duration_ms, export_path
		FROM demos ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var demos []*timeline.Demo
	for rows.Next() {
		d, err := scanDemo(rows)
		if err != nil {
			return nil, err
		}
		demos = append(demos, d)
	}
	return demos, rows.Err()
}

func (r *SQLiteRepository) UpdateDemo(ctx context.Context, d *timeline.Demo) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE demos SET name = ?, format = ?, width = ?, height = ?, frame_rate = ?,
			duration_ms = ?, export_path = ?, updated_at = datetime('now')
		WHERE id = ?
	`, d.Name, d.Format, d.Width, d.Height, d.FrameRate, d.DurationMS, nullString(d.ExportPath), d.ID)
	return err
}

func (r *SQLiteRepository) DeleteDemo(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demos WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDemo(row scanner) (*timeline.Demo, error) {
	var d timeline.Demo
	var exportPath sql.NullString
	err := row.Scan(&d.ID, &d.Name, &d.Format, &d.Width, &d.Height, &d.FrameRate, &d.DurationMS, &exportPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.ExportPath = exportPath.String
	return &d, nil
}

// backgrounds

func (r *SQLiteRepository) UpsertBackground(ctx context.Context, demoID string, bg *timeline.Background) error {
	stops, err := json.Marshal(bg.GradientStops)
	if err != nil {
		return err
	}
	if bg.ID == "" {
		bg.ID = timeline.NewID()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO demo_backgrounds (id, demo_id, background_type, color, gradient_stops,
			gradient_direction, gradient_angle, pattern_type, pattern_color, pattern_scale,
			media_path, media_scale, media_position_x, media_position_y, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
		ON CONFLICT(demo_id) DO UPDATE SET
			background_type = excluded.background_type,
			color = excluded.color,
			gradient_stops = excluded.gradient_stops,
			gradient_direction = excluded.gradient_direction,
			gradient_angle = excluded.gradient_angle,
			pattern_type = excluded.pattern_type,
			pattern_color = excluded.pattern_color,
			pattern_scale = excluded.pattern_scale,
			media_path = excluded.media_path,
			media_scale = excluded.media_scale,
			media_position_x = excluded.media_position_x,
			media_position_y = excluded.media_position_y,
			updated_at = datetime('now')
	`, bg.ID, demoID, bg.Type, nullString(bg.Color), string(stops),
		nullString(bg.GradientDirection), bg.GradientAngle,
		nullString(bg.PatternType), nullString(bg.PatternColor), bg.PatternScale,
		nullString(bg.MediaPath), bg.MediaScale, bg.MediaPositionX, bg.MediaPositionY)
	return err
}

func (r *SQLiteRepository) GetBackground(ctx context.Context, demoID string) (*timeline.Background, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, background_type, color, gradient_stops, gradient_direction, gradient_angle,
			pattern_type, pattern_color, pattern_scale,
			media_path, media_scale, media_position_x, media_position_y
		FROM demo_backgrounds WHERE demo_id = ?
	`, demoID)

	var bg timeline.Background
	var color, stops, direction, patternType, patternColor, mediaPath sql.NullString
	var angle, patternScale, mediaScale, mediaX, mediaY sql.NullFloat64
	err := row.Scan(&bg.ID, &bg.Type, &color, &stops, &direction, &angle,
		&patternType, &patternColor, &patternScale,
		&mediaPath, &mediaScale, &mediaX, &mediaY)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bg.Color = color.String
	bg.GradientDirection = direction.String
	bg.GradientAngle = angle.Float64
	bg.PatternType = patternType.String
	bg.PatternColor = patternColor.String
	bg.PatternScale = patternScale.Float64
	bg.MediaPath = mediaPath.String
	bg.MediaScale = mediaScale.Float64
	bg.MediaPositionX = mediaX.Float64
	bg.MediaPositionY = mediaY.Float64
	if stops.String != "" {
		if err := json.Unmarshal([]byte(stops.String), &bg.GradientStops); err != nil {
			return nil, err
		}
	}
	return &bg, nil
}

func (r *SQLiteRepository) DeleteBackground(ctx context.Context, demoID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_backgrounds WHERE demo_id = ?`, demoID)
	return err
}

// tracks

func (r *SQLiteRepository) CreateTrack(ctx context.Context, demoID string, t *timeline.Track) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO demo_tracks (id, demo_id, track_type, name, locked, visible, muted, volume,
			sort_order, target_track_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, t.ID, demoID, t.Type, t.Name, boolToInt(t.Locked), boolToInt(t.Visible),
		boolToInt(t.Muted), t.Volume, t.SortOrder, nullString(t.TargetTrackID))
	return err
}

func (r *SQLiteRepository) ListTracks(ctx context.Context, demoID string) ([]*timeline.Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, demo_id, track_type, name, locked, visible, muted, volume, sort_order, target_track_id
		FROM demo_tracks WHERE demo_id = ? ORDER BY sort_order, created_at
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*timeline.Track
	for rows.Next() {
		var t timeline.Track
		var locked, visible, muted int
		var target sql.NullString
		if err := rows.Scan(&t.ID, &t.DemoID, &t.Type, &t.Name, &locked, &visible, &muted,
			&t.Volume, &t.SortOrder, &target); err != nil {
			return nil, err
		}
		t.Locked = locked == 1
		t.Visible = visible == 1
		t.Muted = muted == 1
		t.TargetTrackID = target.String
		tracks = append(tracks, &t)
	}
	return tracks, rows.Err()
}

func (r *SQLiteRepository) UpdateTrack(ctx context.Context, t *timeline.Track) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE demo_tracks SET name = ?, locked = ?, visible = ?, muted = ?, volume = ?,
			sort_order = ?, target_track_id = ?, updated_at = datetime('now')
		WHERE id = ?
	`, t.Name, boolToInt(t.Locked), boolToInt(t.Visible), boolToInt(t.Muted),
		t.Volume, t.SortOrder, nullString(t.TargetTrackID), t.ID)
	return err
}

func (r *SQLiteRepository) DeleteTrack(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_tracks WHERE id = ?`, id)
	return err
}

// media clips

func (r *SQLiteRepository) CreateClip(ctx context.Context, c *timeline.Clip) error {
	shadowEnabled := 0
	var shadowBlur, shadowX, shadowY sql.NullFloat64
	var shadowColor sql.NullString
	if c.Shadow != nil {
		shadowEnabled = 1
		shadowBlur = sql.NullFloat64{Float64: c.Shadow.Blur, Valid: true}
		shadowX = sql.NullFloat64{Float64: c.Shadow.OffsetX, Valid: true}
		shadowY = sql.NullFloat64{Float64: c.Shadow.OffsetY, Valid: true}
		shadowColor = nullString(c.Shadow.Color)
	}
	var borderWidth sql.NullFloat64
	var borderColor sql.NullString
	if c.Border != nil {
		borderWidth = sql.NullFloat64{Float64: c.Border.Width, Valid: true}
		borderColor = nullString(c.Border.Color)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO demo_clips (id, track_id, name, source_path, source_type, source_duration_ms,
			start_time_ms, duration_ms, in_point_ms, out_point_ms, speed, freeze,
			position_x, position_y, scale, rotation,
			crop_top, crop_bottom, crop_left, crop_right, corner_radius, opacity,
			shadow_enabled, shadow_blur, shadow_offset_x, shadow_offset_y, shadow_color,
			border_width, border_color,
			volume, muted, fade_in_ms, fade_out_ms,
			entrance_type, entrance_duration_ms, exit_type, exit_duration_ms,
			linked_clip_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, c.ID, c.TrackID, c.Name, c.SourcePath, c.SourceType, nullInt64(c.SourceDurationMS),
		c.StartMS, c.DurationMS, c.InPointMS, nullInt64Ptr(c.OutPointMS), c.Speed, boolToInt(c.Freeze),
		c.PositionX, c.PositionY, c.Scale, c.Rotation,
		c.Crop.Top, c.Crop.Bottom, c.Crop.Left, c.Crop.Right, c.CornerRadius, c.Opacity,
		shadowEnabled, shadowBlur, shadowX, shadowY, shadowColor,
		borderWidth, borderColor,
		c.Volume, boolToInt(c.Muted), c.FadeInMS, c.FadeOutMS,
		nullString(c.EntranceType), c.EntranceMS, nullString(c.ExitType), c.ExitMS,
		nullString(c.LinkedClipID))
	return err
}

const clipColumns = `c.id, c.track_id, c.name, c.source_path, c.source_type, c.source_duration_ms,
	c.start_time_ms, c.duration_ms, c.in_point_ms, c.out_point_ms, c.speed, c.freeze,
	c.position_x, c.position_y, c.scale, c.rotation,
	c.crop_top, c.crop_bottom, c.crop_left, c.crop_right, c.corner_radius, c.opacity,
	c.shadow_enabled, c.shadow_blur, c.shadow_offset_x, c.shadow_offset_y, c.shadow_color,
	c.border_width, c.border_color,
	c.volume, c.muted, c.fade_in_ms, c.fade_out_ms,
	c.entrance_type, c.entrance_duration_ms, c.exit_type, c.exit_duration_ms, c.linked_clip_id`

func (r *SQLiteRepository) ListClipsByDemo(ctx context.Context, demoID string) ([]*timeline.Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clipColumns+`
		FROM demo_clips c JOIN demo_tracks t ON c.track_id = t.id
		WHERE t.demo_id = ? ORDER BY c.start_time_ms
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*timeline.Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func scanClip(row scanner) (*timeline.Clip, error) {
	var c timeline.Clip
	var sourceDur, outPoint sql.NullInt64
	var freeze, muted, shadowEnabled int
	var shadowBlur, shadowX, shadowY, borderWidth sql.NullFloat64
	var shadowColor, borderColor, entrance, exit, linked sql.NullString

	err := row.Scan(&c.ID, &c.TrackID, &c.Name, &c.SourcePath, &c.SourceType, &sourceDur,
		&c.StartMS, &c.DurationMS, &c.InPointMS, &outPoint, &c.Speed, &freeze,
		&c.PositionX, &c.PositionY, &c.Scale, &c.Rotation,
		&c.Crop.Top, &c.Crop.Bottom, &c.Crop.Left, &c.Crop.Right, &c.CornerRadius, &c.Opacity,
		&shadowEnabled, &shadowBlur, &shadowX, &shadowY, &shadowColor,
		&borderWidth, &borderColor,
		&c.Volume, &muted, &c.FadeInMS, &c.FadeOutMS,
		&entrance, &c.EntranceMS, &exit, &c.ExitMS, &linked)
	if err != nil {
		return nil, err
	}

	c.SourceDurationMS = sourceDur.Int64
	if outPoint.Valid {
		v := outPoint.Int64
		c.OutPointMS = &v
	}
	c.Freeze = freeze == 1
	c.Muted = muted == 1
	if shadowEnabled == 1 {
		c.Shadow = &timeline.Shadow{
			Blur:    shadowBlur.Float64,
			OffsetX: shadowX.Float64,
			OffsetY: shadowY.Float64,
			Color:   shadowColor.String,
		}
	}
	if borderWidth.Valid {
		c.Border = &timeline.Border{Width: borderWidth.Float64, Color: borderColor.String}
	}
	c.EntranceType = entrance.String
	c.ExitType = exit.String
	c.LinkedClipID = linked.String
	return &c, nil
}

func (r *SQLiteRepository) UpdateClip(ctx context.Context, c *timeline.Clip) error {
	shadowEnabled := 0
	var shadowBlur, shadowX, shadowY sql.NullFloat64
	var shadowColor sql.NullString
	if c.Shadow != nil {
		shadowEnabled = 1
		shadowBlur = sql.NullFloat64{Float64: c.Shadow.Blur, Valid: true}
		shadowX = sql.NullFloat64{Float64: c.Shadow.OffsetX, Valid: true}
		shadowY = sql.NullFloat64{Float64: c.Shadow.OffsetY, Valid: true}
		shadowColor = nullString(c.Shadow.Color)
	}
	var borderWidth sql.NullFloat64
	var borderColor sql.NullString
	if c.Border != nil {
		borderWidth = sql.NullFloat64{Float64: c.Border.Width, Valid: true}
		borderColor = nullString(c.Border.Color)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE demo_clips SET
			name = ?, source_path = ?, source_type = ?, source_duration_ms = ?,
			start_time_ms = ?, duration_ms = ?, in_point_ms = ?, out_point_ms = ?,
			speed = ?, freeze = ?,
			position_x = ?, position_y = ?, scale = ?, rotation = ?,
			crop_top = ?, crop_bottom = ?, crop_left = ?, crop_right = ?,
			corner_radius = ?, opacity = ?,
			shadow_enabled = ?, shadow_blur = ?, shadow_offset_x = ?, shadow_offset_y = ?, shadow_color = ?,
			border_width = ?, border_color = ?,
			volume = ?, muted = ?, fade_in_ms = ?, fade_out_ms = ?,
			entrance_type = ?, entrance_duration_ms = ?, exit_type = ?, exit_duration_ms = ?,
			linked_clip_id = ?, updated_at = datetime('now')
		WHERE id = ?
	`, c.Name, c.SourcePath, c.SourceType, nullInt64(c.SourceDurationMS),
		c.StartMS, c.DurationMS, c.InPointMS, nullInt64Ptr(c.OutPointMS),
		c.Speed, boolToInt(c.Freeze),
		c.PositionX, c.PositionY, c.Scale, c.Rotation,
		c.Crop.Top, c.Crop.Bottom, c.Crop.Left, c.Crop.Right,
		c.CornerRadius, c.Opacity,
		shadowEnabled, shadowBlur, shadowX, shadowY, shadowColor,
		borderWidth, borderColor,
		c.Volume, boolToInt(c.Muted), c.FadeInMS, c.FadeOutMS,
		nullString(c.EntranceType), c.EntranceMS, nullString(c.ExitType), c.ExitMS,
		nullString(c.LinkedClipID), c.ID)
	return err
}

func (r *SQLiteRepository) DeleteClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_clips WHERE id = ?`, id)
	return err
}

// zoom clips

func (r *SQLiteRepository) CreateZoomClip(ctx context.Context, z *timeline.ZoomClip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO demo_zoom_clips (id, track_id, name, start_time_ms, duration_ms,
			zoom_scale, zoom_center_x, zoom_center_y, ease_in_duration_ms, ease_out_duration_ms,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, z.ID, z.TrackID, z.Name, z.StartMS, z.DurationMS,
		z.Scale, z.CenterX, z.CenterY, z.EaseInMS, z.EaseOutMS)
	return err
}

func (r *SQLiteRepository) ListZoomClipsByDemo(ctx context.Context, demoID string) ([]*timeline.ZoomClip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT z.id, z.track_id, z.name, z.start_time_ms, z.duration_ms,
			z.zoom_scale, z.zoom_center_x, z.zoom_center_y, z.ease_in_duration_ms, z.ease_out_duration_ms
		FROM demo_zoom_clips z JOIN demo_tracks t ON z.track_id = t.id
		WHERE t.demo_id = ? ORDER BY z.start_time_ms
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*timeline.ZoomClip
	for rows.Next() {
		var z timeline.ZoomClip
		if err := rows.Scan(&z.ID, &z.TrackID, &z.Name, &z.StartMS, &z.DurationMS,
			&z.Scale, &z.CenterX, &z.CenterY, &z.EaseInMS, &z.EaseOutMS); err != nil {
			return nil, err
		}
		clips = append(clips, &z)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) UpdateZoomClip(ctx context.Context, z *timeline.ZoomClip) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE demo_zoom_clips
		SET name = ?, start_time_ms = ?, duration_ms = ?,
			zoom_scale = ?, zoom_center_x = ?, zoom_center_y = ?,
			ease_in_duration_ms = ?, ease_out_duration_ms = ?,
			updated_at = datetime('now')
		WHERE id = ?
	`, z.Name, z.StartMS, z.DurationMS,
		z.Scale, z.CenterX, z.CenterY, z.EaseInMS, z.EaseOutMS, z.ID)
	return err
}

func (r *SQLiteRepository) DeleteZoomClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_zoom_clips WHERE id = ?`, id)
	return err
}

// blur clips

func (r *SQLiteRepository) CreateBlurClip(ctx context.Context, b *timeline.BlurClip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO demo_blur_clips (id, track_id, name, start_time_ms, duration_ms,
			blur_intensity, region_x, region_y, region_width, region_height,
			corner_radius, blur_inside, ease_in_duration_ms, ease_out_duration_ms,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, b.ID, b.TrackID, b.Name, b.StartMS, b.DurationMS,
		b.Intensity, b.Region.X, b.Region.Y, b.Region.Width, b.Region.Height,
		b.CornerRadius, boolToInt(b.Inside), b.EaseInMS, b.EaseOutMS)
	return err
}

func (r *SQLiteRepository) ListBlurClipsByDemo(ctx context.Context, demoID string) ([]*timeline.BlurClip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.track_id, b.name, b.start_time_ms, b.duration_ms,
			b.blur_intensity, b.region_x, b.region_y, b.region_width, b.region_height,
			b.corner_radius, b.blur_inside, b.ease_in_duration_ms, b.ease_out_duration_ms
		FROM demo_blur_clips b JOIN demo_tracks t ON b.track_id = t.id
		WHERE t.demo_id = ? ORDER BY b.start_time_ms
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*timeline.BlurClip
	for rows.Next() {
		var b timeline.BlurClip
		var inside int
		if err := rows.Scan(&b.ID, &b.TrackID, &b.Name, &b.StartMS, &b.DurationMS,
			&b.Intensity, &b.Region.X, &b.Region.Y, &b.Region.Width, &b.Region.Height,
			&b.CornerRadius, &inside, &b.EaseInMS, &b.EaseOutMS); err != nil {
			return nil, err
		}
		b.Inside = inside == 1
		clips = append(clips, &b)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) UpdateBlurClip(ctx context.Context, b *timeline.BlurClip) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE demo_blur_clips
		SET name = ?, start_time_ms = ?, duration_ms = ?,
			blur_intensity = ?, region_x = ?, region_y = ?, region_width = ?, region_height = ?,
			corner_radius = ?, blur_inside = ?,
			ease_in_duration_ms = ?, ease_out_duration_ms = ?,
			updated_at = datetime('now')
		WHERE id = ?
	`, b.Name, b.StartMS, b.DurationMS,
		b.Intensity, b.Region.X, b.Region.Y, b.Region.Width, b.Region.Height,
		b.CornerRadius, boolToInt(b.Inside), b.EaseInMS, b.EaseOutMS, b.ID)
	return err
}

func (r *SQLiteRepository) DeleteBlurClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_blur_clips WHERE id = ?`, id)
	return err
}

// pan clips

func (r *SQLiteRepository) CreatePanClip(ctx context.Context, p *timeline.PanClip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO demo_pan_clips (id, track_id, name, start_time_ms, duration_ms,
			start_x, start_y, end_x, end_y, ease_in_duration_ms, ease_out_duration_ms,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, p.ID, p.TrackID, p.Name, p.StartMS, p.DurationMS,
		p.StartX, p.StartY, p.EndX, p.EndY, p.EaseInMS, p.EaseOutMS)
	return err
}

func (r *SQLiteRepository) ListPanClipsByDemo(ctx context.Context, demoID string) ([]*timeline.PanClip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.track_id, p.name, p.start_time_ms, p.duration_ms,
			p.start_x, p.start_y, p.end_x, p.end_y, p.ease_in_duration_ms, p.ease_out_duration_ms
		FROM demo_pan_clips p JOIN demo_tracks t ON p.track_id = t.id
		WHERE t.demo_id = ? ORDER BY p.start_time_ms
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*timeline.PanClip
	for rows.Next() {
		var p timeline.PanClip
		if err := rows.Scan(&p.ID, &p.TrackID, &p.Name, &p.StartMS, &p.DurationMS,
			&p.StartX, &p.StartY, &p.EndX, &p.EndY, &p.EaseInMS, &p.EaseOutMS); err != nil {
			return nil, err
		}
		clips = append(clips, &p)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) UpdatePanClip(ctx context.Context, p *timeline.PanClip) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE demo_pan_clips
		SET name = ?, start_time_ms = ?, duration_ms = ?,
			start_x = ?, start_y = ?, end_x = ?, end_y = ?,
			ease_in_duration_ms = ?, ease_out_duration_ms = ?,
			updated_at = datetime('now')
		WHERE id = ?
	`, p.Name, p.StartMS, p.DurationMS,
		p.StartX, p.StartY, p.EndX, p.EndY, p.EaseInMS, p.EaseOutMS, p.ID)
	return err
}

func (r *SQLiteRepository) DeletePanClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_pan_clips WHERE id = ?`, id)
	return err
}

// transform clips and keyframes

func (r *SQLiteRepository) CreateTransformClip(ctx context.Context, tc *timeline.TransformClip) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO demo_transform_clips (id, track_id, name, start_time_ms, duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, tc.ID, tc.TrackID, tc.Name, tc.StartMS, tc.DurationMS)
	if err != nil {
		return err
	}
	for _, kf := range tc.Keyframes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO demo_transform_keyframes (id, clip_id, time_ms,
				position_x, position_y, scale_x, scale_y, rotation, opacity, easing)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, timeline.NewID(), tc.ID, kf.TimeMS,
			nullFloatPtr(kf.PositionX), nullFloatPtr(kf.PositionY),
			nullFloatPtr(kf.ScaleX), nullFloatPtr(kf.ScaleY),
			nullFloatPtr(kf.Rotation), nullFloatPtr(kf.Opacity), string(kf.Easing))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListTransformClipsByDemo(ctx context.Context, demoID string) ([]*timeline.TransformClip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tc.id, tc.track_id, tc.name, tc.start_time_ms, tc.duration_ms
		FROM demo_transform_clips tc JOIN demo_tracks t ON tc.track_id = t.id
		WHERE t.demo_id = ? ORDER BY tc.start_time_ms
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*timeline.TransformClip
	byID := make(map[string]*timeline.TransformClip)
	for rows.Next() {
		var tc timeline.TransformClip
		if err := rows.Scan(&tc.ID, &tc.TrackID, &tc.Name, &tc.StartMS, &tc.DurationMS); err != nil {
			return nil, err
		}
		clips = append(clips, &tc)
		byID[tc.ID] = &tc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, nil
	}

	kfRows, err := r.db.QueryContext(ctx, `
		SELECT k.clip_id, k.time_ms, k.position_x, k.position_y, k.scale_x, k.scale_y,
			k.rotation, k.opacity, k.easing
		FROM demo_transform_keyframes k
		JOIN demo_transform_clips tc ON k.clip_id = tc.id
		JOIN demo_tracks t ON tc.track_id = t.id
		WHERE t.demo_id = ? ORDER BY k.clip_id, k.time_ms
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer kfRows.Close()

	for kfRows.Next() {
		var clipID, easing string
		var kf timeline.Keyframe
		var px, py, sx, sy, rot, op sql.NullFloat64
		if err := kfRows.Scan(&clipID, &kf.TimeMS, &px, &py, &sx, &sy, &rot, &op, &easing); err != nil {
			return nil, err
		}
		kf.PositionX = floatPtr(px)
		kf.PositionY = floatPtr(py)
		kf.ScaleX = floatPtr(sx)
		kf.ScaleY = floatPtr(sy)
		kf.Rotation = floatPtr(rot)
		kf.Opacity = floatPtr(op)
		kf.Easing = timeline.Curve(easing)
		if tc, ok := byID[clipID]; ok {
			tc.Keyframes = append(tc.Keyframes, kf)
		}
	}
	return clips, kfRows.Err()
}

// UpdateTransformClip rewrites the clip row and replaces its keyframe set
// wholesale; keyframes have no identity of their own outside their clip.
func (r *SQLiteRepository) UpdateTransformClip(ctx context.Context, tc *timeline.TransformClip) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE demo_transform_clips
		SET name = ?, start_time_ms = ?, duration_ms = ?, updated_at = datetime('now')
		WHERE id = ?
	`, tc.Name, tc.StartMS, tc.DurationMS, tc.ID)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM demo_transform_keyframes WHERE clip_id = ?`, tc.ID); err != nil {
		return err
	}
	for _, kf := range tc.Keyframes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO demo_transform_keyframes (id, clip_id, time_ms,
				position_x, position_y, scale_x, scale_y, rotation, opacity, easing)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, timeline.NewID(), tc.ID, kf.TimeMS,
			nullFloatPtr(kf.PositionX), nullFloatPtr(kf.PositionY),
			nullFloatPtr(kf.ScaleX), nullFloatPtr(kf.ScaleY),
			nullFloatPtr(kf.Rotation), nullFloatPtr(kf.Opacity), string(kf.Easing))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) DeleteTransformClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_transform_clips WHERE id = ?`, id)
	return err
}

// assets

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a *timeline.Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO demo_assets (id, demo_id, name, file_path, asset_type,
			duration_ms, width, height, has_audio, thumbnail_path, file_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`, a.ID, a.DemoID, a.Name, a.Path, a.Type,
		nullInt64Ptr(a.DurationMS), nullIntPtr(a.Width), nullIntPtr(a.Height),
		nullBoolPtr(a.HasAudio), nullString(a.ThumbnailPath), nullInt64(a.FileSize))
	return err
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, id string) (*timeline.Asset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, demo_id, name, file_path, asset_type, duration_ms, width, height,
			has_audio, thumbnail_path, file_size
		FROM demo_assets WHERE id = ?
	`, id)

	var a timeline.Asset
	var dur sql.NullInt64
	var w, h sql.NullInt64
	var hasAudio sql.NullInt64
	var thumb sql.NullString
	var size sql.NullInt64
	err := row.Scan(&a.ID, &a.DemoID, &a.Name, &a.Path, &a.Type,
		&dur, &w, &h, &hasAudio, &thumb, &size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dur.Valid {
		v := dur.Int64
		a.DurationMS = &v
	}
	if w.Valid {
		v := int(w.Int64)
		a.Width = &v
	}
	if h.Valid {
		v := int(h.Int64)
		a.Height = &v
	}
	if hasAudio.Valid {
		v := hasAudio.Int64 == 1
		a.HasAudio = &v
	}
	a.ThumbnailPath = thumb.String
	a.FileSize = size.Int64
	return &a, nil
}

func (r *SQLiteRepository) ListAssets(ctx context.Context, demoID string) ([]*timeline.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, demo_id, name, file_path, asset_type, duration_ms, width, height,
			has_audio, thumbnail_path, file_size
		FROM demo_assets WHERE demo_id = ? ORDER BY created_at
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*timeline.Asset
	for rows.Next() {
		var a timeline.Asset
		var dur sql.NullInt64
		var w, h sql.NullInt64
		var hasAudio sql.NullInt64
		var thumb sql.NullString
		var size sql.NullInt64
		if err := rows.Scan(&a.ID, &a.DemoID, &a.Name, &a.Path, &a.Type,
			&dur, &w, &h, &hasAudio, &thumb, &size); err != nil {
			return nil, err
		}
		if dur.Valid {
			v := dur.Int64
			a.DurationMS = &v
		}
		if w.Valid {
			v := int(w.Int64)
			a.Width = &v
		}
		if h.Valid {
			v := int(h.Int64)
			a.Height = &v
		}
		if hasAudio.Valid {
			v := hasAudio.Int64 == 1
			a.HasAudio = &v
		}
		a.ThumbnailPath = thumb.String
		a.FileSize = size.Int64
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) UpdateAsset(ctx context.Context, a *timeline.Asset) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE demo_assets
		SET name = ?, file_path = ?, asset_type = ?,
			duration_ms = ?, width = ?, height = ?, has_audio = ?,
			thumbnail_path = ?, file_size = ?
		WHERE id = ?
	`, a.Name, a.Path, a.Type,
		nullInt64Ptr(a.DurationMS), nullIntPtr(a.Width), nullIntPtr(a.Height),
		nullBoolPtr(a.HasAudio), nullString(a.ThumbnailPath), nullInt64(a.FileSize), a.ID)
	return err
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM demo_assets WHERE id = ?`, id)
	return err
}

// export jobs

func (r *SQLiteRepository) SaveExport(ctx context.Context, rec render.Record) error {
	var finished sql.NullString
	if !rec.FinishedAt.IsZero() {
		finished = sql.NullString{String: rec.FinishedAt.UTC().Format(time.RFC3339), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, demo_id, status, frame, total_frames, output_path, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			frame = excluded.frame,
			total_frames = excluded.total_frames,
			output_path = excluded.output_path,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, rec.ID, rec.DemoID, rec.State, rec.Frame, rec.TotalFrames,
		nullString(rec.OutputPath), nullString(rec.Error),
		rec.StartedAt.UTC().Format(time.RFC3339), finished)
	return err
}

func (r *SQLiteRepository) GetExport(ctx context.Context, id string) (*render.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, demo_id, status, frame, total_frames, output_path, error, started_at, finished_at
		FROM exports WHERE id = ?
	`, id)
	rec, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *SQLiteRepository) ListExports(ctx context.Context, demoID string) ([]*render.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, demo_id, status, frame, total_frames, output_path, error, started_at, finished_at
		FROM exports WHERE demo_id = ? ORDER BY started_at DESC
	`, demoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*render.Record
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanExport(row scanner) (*render.Record, error) {
	var rec render.Record
	var output, errMsg, finished sql.NullString
	var started string
	err := row.Scan(&rec.ID, &rec.DemoID, &rec.State, &rec.Frame, &rec.TotalFrames,
		&output, &errMsg, &started, &finished)
	if err != nil {
		return nil, err
	}
	rec.OutputPath = output.String
	rec.Error = errMsg.String
	rec.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished.String)
	}
	return &rec, nil
}

// scan helpers

// config

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullIntPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBoolPtr(v *bool) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	n := int64(0)
	if *v {
		n = 1
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

func nullFloatPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
