package timeline

import (
	"sort"

	"github.com/google/uuid"
)

// Track and source kinds.
const (
	TrackBackground = "background"
	TrackVideo      = "video"
	TrackImage      = "image"
	TrackAudio      = "audio"
	TrackZoom       = "zoom"
	TrackPan        = "pan"
	TrackBlur       = "blur"
	TrackTransform  = "transform"
)

// Background variant kinds.
const (
	BackgroundColor    = "color"
	BackgroundGradient = "gradient"
	BackgroundPattern  = "pattern"
	BackgroundMedia    = "media"
	BackgroundBlur     = "blur"
)

// Entrance/exit transition kinds.
const (
	TransitionNone  = ""
	TransitionFade  = "fade"
	TransitionSlide = "slide"
	TransitionScale = "scale"
)

// Demo is the project: canvas geometry, frame rate and output settings.
// DurationMS is the last explicit duration; the effective duration is
// recomputed from clip extents, see Timeline.Duration.
type Demo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Format     string `json:"format"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FrameRate  int    `json:"frame_rate"`
	DurationMS int64  `json:"duration_ms"`
	ExportPath string `json:"export_path,omitempty"`
}

// GradientStop is one colour stop of a gradient background.
type GradientStop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// Background is a tagged variant: only the fields of the active Type are
// meaningful, everything else is carried but ignored.
type Background struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Color string `json:"color,omitempty"`

	GradientStops     []GradientStop `json:"gradient_stops,omitempty"`
	GradientDirection string         `json:"gradient_direction,omitempty"`
	GradientAngle     float64        `json:"gradient_angle,omitempty"`

	PatternType  string  `json:"pattern_type,omitempty"`
	PatternColor string  `json:"pattern_color,omitempty"`
	PatternScale float64 `json:"pattern_scale,omitempty"`

	MediaPath      string  `json:"media_path,omitempty"`
	MediaScale     float64 `json:"media_scale,omitempty"`
	MediaPositionX float64 `json:"media_position_x,omitempty"`
	MediaPositionY float64 `json:"media_position_y,omitempty"`

	BlurRadius float64 `json:"blur_radius,omitempty"`
}

// Track is an ordered lane on the timeline. Media tracks (video, image,
// audio) hold Clips; effect tracks (zoom, pan, blur, transform) hold the
// corresponding effect clips and name the media track they modulate via
// TargetTrackID.
type Track struct {
	ID            string  `json:"id"`
	DemoID        string  `json:"demo_id"`
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	Locked        bool    `json:"locked"`
	Visible       bool    `json:"visible"`
	Muted         bool    `json:"muted"`
	Volume        float64 `json:"volume"`
	SortOrder     int     `json:"sort_order"`
	TargetTrackID string  `json:"target_track_id,omitempty"`
}

// IsMedia reports whether the track holds media clips.
func (t *Track) IsMedia() bool {
	switch t.Type {
	case TrackVideo, TrackImage, TrackAudio:
		return true
	}
	return false
}

// IsEffect reports whether the track holds effect clips.
func (t *Track) IsEffect() bool {
	switch t.Type {
	case TrackZoom, TrackPan, TrackBlur, TrackTransform:
		return true
	}
	return false
}

// canTarget reports whether an effect track of this type may modulate a
// media track of the given type. Visual effects only apply to visual media.
func canTarget(effectType, mediaType string) bool {
	switch effectType {
	case TrackZoom, TrackPan, TrackBlur, TrackTransform:
		return mediaType == TrackVideo || mediaType == TrackImage
	}
	return false
}

// Crop holds edge insets in canvas pixels.
type Crop struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Shadow is an optional drop shadow on a clip.
type Shadow struct {
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Color   string  `json:"color"`
}

// Border is an optional border stroke on a clip.
type Border struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

// Clip is a placed, trimmed instance of a media asset on a media track.
// Its timeline interval is [StartMS, StartMS+DurationMS).
type Clip struct {
	ID               string `json:"id"`
	TrackID          string `json:"track_id"`
	Name             string `json:"name"`
	SourcePath       string `json:"source_path"`
	SourceType       string `json:"source_type"`
	SourceDurationMS int64  `json:"source_duration_ms,omitempty"`

	StartMS    int64  `json:"start_time_ms"`
	DurationMS int64  `json:"duration_ms"`
	InPointMS  int64  `json:"in_point_ms"`
	OutPointMS *int64 `json:"out_point_ms,omitempty"`
	Speed      float64 `json:"speed"`
	Freeze     bool    `json:"freeze"`

	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
	Scale     float64 `json:"scale"`
	Rotation  float64 `json:"rotation"`
	Crop      Crop    `json:"crop"`

	CornerRadius float64 `json:"corner_radius"`
	Opacity      float64 `json:"opacity"`
	Shadow       *Shadow `json:"shadow,omitempty"`
	Border       *Border `json:"border,omitempty"`

	Volume    float64 `json:"volume"`
	Muted     bool    `json:"muted"`
	FadeInMS  int64   `json:"fade_in_ms"`
	FadeOutMS int64   `json:"fade_out_ms"`

	EntranceType string `json:"entrance_type,omitempty"`
	EntranceMS   int64  `json:"entrance_duration_ms,omitempty"`
	ExitType     string `json:"exit_type,omitempty"`
	ExitMS       int64  `json:"exit_duration_ms,omitempty"`

	LinkedClipID string `json:"linked_clip_id,omitempty"`
}

// EndMS returns the exclusive end of the clip's timeline interval.
func (c *Clip) EndMS() int64 {
	return c.StartMS + c.DurationMS
}

// contains reports whether t falls inside [StartMS, EndMS).
func (c *Clip) contains(t int64) bool {
	return t >= c.StartMS && t < c.EndMS()
}

// ZoomClip scales the target track toward a centre point for its interval,
// ramped by the ease-in/ease-out envelope. Centre coordinates are percent
// of the canvas (50,50 is the middle).
type ZoomClip struct {
	ID         string  `json:"id"`
	TrackID    string  `json:"track_id"`
	Name       string  `json:"name"`
	StartMS    int64   `json:"start_time_ms"`
	DurationMS int64   `json:"duration_ms"`
	Scale      float64 `json:"zoom_scale"`
	CenterX    float64 `json:"zoom_center_x"`
	CenterY    float64 `json:"zoom_center_y"`
	EaseInMS   int64   `json:"ease_in_duration_ms"`
	EaseOutMS  int64   `json:"ease_out_duration_ms"`
}

func (z *ZoomClip) EndMS() int64 { return z.StartMS + z.DurationMS }

// BlurRegion is the blurred rectangle of a BlurClip in canvas pixels.
type BlurRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BlurClip blurs a region of the target track. Inside selects whether the
// blur applies inside the region or to everything outside it.
type BlurClip struct {
	ID           string     `json:"id"`
	TrackID      string     `json:"track_id"`
	Name         string     `json:"name"`
	StartMS      int64      `json:"start_time_ms"`
	DurationMS   int64      `json:"duration_ms"`
	Intensity    float64    `json:"blur_intensity"`
	Region       BlurRegion `json:"region"`
	CornerRadius float64    `json:"corner_radius"`
	Inside       bool       `json:"blur_inside"`
	EaseInMS     int64      `json:"ease_in_duration_ms"`
	EaseOutMS    int64      `json:"ease_out_duration_ms"`
}

func (b *BlurClip) EndMS() int64 { return b.StartMS + b.DurationMS }

// PanClip moves the view across the target track from a start point to an
// end point (percent coordinates, 50,50 neutral) over its interval.
type PanClip struct {
	ID         string  `json:"id"`
	TrackID    string  `json:"track_id"`
	Name       string  `json:"name"`
	StartMS    int64   `json:"start_time_ms"`
	DurationMS int64   `json:"duration_ms"`
	StartX     float64 `json:"start_x"`
	StartY     float64 `json:"start_y"`
	EndX       float64 `json:"end_x"`
	EndY       float64 `json:"end_y"`
	EaseInMS   int64   `json:"ease_in_duration_ms"`
	EaseOutMS  int64   `json:"ease_out_duration_ms"`
}

func (p *PanClip) EndMS() int64 { return p.StartMS + p.DurationMS }

// Keyframe is one control point of a TransformClip. TimeMS is relative to
// the clip start. A nil field means "inherit": the value is taken from the
// nearest earlier keyframe that sets it, or a fixed default. Easing governs
// interpolation from this keyframe to the next one.
type Keyframe struct {
	TimeMS    int64    `json:"time_ms"`
	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`
	ScaleX    *float64 `json:"scale_x,omitempty"`
	ScaleY    *float64 `json:"scale_y,omitempty"`
	Rotation  *float64 `json:"rotation,omitempty"`
	Opacity   *float64 `json:"opacity,omitempty"`
	Easing    Curve    `json:"easing,omitempty"`
}

// TransformClip overrides the target track's transform with keyframed
// values for its interval.
type TransformClip struct {
	ID         string     `json:"id"`
	TrackID    string     `json:"track_id"`
	Name       string     `json:"name"`
	StartMS    int64      `json:"start_time_ms"`
	DurationMS int64      `json:"duration_ms"`
	Keyframes  []Keyframe `json:"keyframes"`
}

func (tc *TransformClip) EndMS() int64 { return tc.StartMS + tc.DurationMS }

// Asset is an imported media file with cached probe metadata. Read-only
// from the resolver's point of view.
type Asset struct {
	ID            string `json:"id"`
	DemoID        string `json:"demo_id"`
	Name          string `json:"name"`
	Path          string `json:"file_path"`
	Type          string `json:"asset_type"`
	DurationMS    *int64 `json:"duration_ms,omitempty"`
	Width         *int   `json:"width,omitempty"`
	Height        *int   `json:"height,omitempty"`
	HasAudio      *bool  `json:"has_audio,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

// Timeline is the in-memory editing model for one demo: the entity graph
// plus its structural invariants. It is a cache of the persisted form;
// mutations here are synchronous and local, saving is the caller's job.
type Timeline struct {
	Demo       Demo
	Background *Background
	Tracks     []*Track
	Assets     []*Asset

	clips      map[string][]*Clip          // media track id -> clips sorted by StartMS
	zooms      map[string][]*ZoomClip      // effect track id -> clips sorted by StartMS
	blurs      map[string][]*BlurClip
	pans       map[string][]*PanClip
	transforms map[string][]*TransformClip
}

// New creates an empty timeline for the given demo.
func New(demo Demo) *Timeline {
	return &Timeline{
		Demo:       demo,
		clips:      make(map[string][]*Clip),
		zooms:      make(map[string][]*ZoomClip),
		blurs:      make(map[string][]*BlurClip),
		pans:       make(map[string][]*PanClip),
		transforms: make(map[string][]*TransformClip),
	}
}

// SetBackground replaces the demo's background (nil clears it).
func (tl *Timeline) SetBackground(bg *Background) {
	tl.Background = bg
}

// Track returns the track with the given id, or nil.
func (tl *Timeline) Track(id string) *Track {
	for _, t := range tl.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AddTrack inserts a track, validating its type and, for effect tracks
// with a target set, that the target exists and is of a compatible kind.
// Tracks are kept ordered by SortOrder.
func (tl *Timeline) AddTrack(t *Track) error {
	switch t.Type {
	case TrackBackground, TrackVideo, TrackImage, TrackAudio,
		TrackZoom, TrackPan, TrackBlur, TrackTransform:
	default:
		return &ModelError{Op: "add track", ID: t.ID, Err: ErrUnknownTrackType}
	}
	if tl.Track(t.ID) != nil {
		return &ModelError{Op: "add track", ID: t.ID, Err: ErrDuplicateID}
	}
	if t.IsEffect() && t.TargetTrackID != "" {
		if err := tl.checkTarget(t.Type, t.TargetTrackID); err != nil {
			return &ModelError{Op: "add track", ID: t.ID, Err: err}
		}
	}
	tl.Tracks = append(tl.Tracks, t)
	tl.sortTracks()
	return nil
}

// RetargetTrack points an effect track at a new media track.
func (tl *Timeline) RetargetTrack(trackID, targetID string) error {
	t := tl.Track(trackID)
	if t == nil {
		return &ModelError{Op: "retarget track", ID: trackID, Err: ErrNotFound}
	}
	if !t.IsEffect() {
		return &ModelError{Op: "retarget track", ID: trackID, Err: ErrNotEffectTrack}
	}
	if targetID != "" {
		if err := tl.checkTarget(t.Type, targetID); err != nil {
			return &ModelError{Op: "retarget track", ID: trackID, Err: err}
		}
	}
	t.TargetTrackID = targetID
	return nil
}

func (tl *Timeline) checkTarget(effectType, targetID string) error {
	target := tl.Track(targetID)
	if target == nil {
		return ErrDanglingTarget
	}
	if !canTarget(effectType, target.Type) {
		return ErrIncompatibleTarget
	}
	return nil
}

// RemoveTrack deletes a track and everything on it. Effect tracks that
// targeted it are left in place and become inert.
func (tl *Timeline) RemoveTrack(id string) error {
	idx := -1
	for i, t := range tl.Tracks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &ModelError{Op: "remove track", ID: id, Err: ErrNotFound}
	}
	tl.Tracks = append(tl.Tracks[:idx], tl.Tracks[idx+1:]...)
	delete(tl.clips, id)
	delete(tl.zooms, id)
	delete(tl.blurs, id)
	delete(tl.pans, id)
	delete(tl.transforms, id)
	return nil
}

// ReorderTracks applies a new sort order given the full list of track ids.
func (tl *Timeline) ReorderTracks(ids []string) error {
	if len(ids) != len(tl.Tracks) {
		return &ModelError{Op: "reorder tracks", Err: ErrBadReorder}
	}
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	for _, t := range tl.Tracks {
		pos, ok := order[t.ID]
		if !ok {
			return &ModelError{Op: "reorder tracks", ID: t.ID, Err: ErrBadReorder}
		}
		t.SortOrder = pos
	}
	tl.sortTracks()
	return nil
}

func (tl *Timeline) sortTracks() {
	sort.SliceStable(tl.Tracks, func(i, j int) bool {
		return tl.Tracks[i].SortOrder < tl.Tracks[j].SortOrder
	})
}

// AddClip places a clip on a media track, rejecting placements that
// overlap an existing clip on the same track. Linked clips live on
// different tracks by construction, so same-track overlap is always an
// error.
func (tl *Timeline) AddClip(c *Clip) error {
	track := tl.Track(c.TrackID)
	if track == nil {
		return &ModelError{Op: "add clip", ID: c.ID, Err: ErrNotFound}
	}
	if !track.IsMedia() {
		return &ModelError{Op: "add clip", ID: c.ID, Err: ErrNotMediaTrack}
	}
	if c.DurationMS <= 0 || c.StartMS < 0 {
		return &ModelError{Op: "add clip", ID: c.ID, Err: ErrBadInterval}
	}
	if tl.overlaps(c.TrackID, c.StartMS, c.DurationMS, c.ID) {
		return &ModelError{Op: "add clip", ID: c.ID, Err: ErrClipOverlap}
	}
	normalizeClip(c)
	tl.clips[c.TrackID] = insertSorted(tl.clips[c.TrackID], c, func(x *Clip) int64 { return x.StartMS })
	return nil
}

// MoveClip changes a clip's timeline placement, revalidating overlap.
func (tl *Timeline) MoveClip(clipID string, startMS int64) error {
	c := tl.Clip(clipID)
	if c == nil {
		return &ModelError{Op: "move clip", ID: clipID, Err: ErrNotFound}
	}
	if startMS < 0 {
		return &ModelError{Op: "move clip", ID: clipID, Err: ErrBadInterval}
	}
	if tl.overlaps(c.TrackID, startMS, c.DurationMS, c.ID) {
		return &ModelError{Op: "move clip", ID: clipID, Err: ErrClipOverlap}
	}
	c.StartMS = startMS
	tl.resortClips(c.TrackID)
	return nil
}

// TrimClip changes a clip's trim and duration, revalidating overlap.
func (tl *Timeline) TrimClip(clipID string, inPointMS, durationMS int64) error {
	c := tl.Clip(clipID)
	if c == nil {
		return &ModelError{Op: "trim clip", ID: clipID, Err: ErrNotFound}
	}
	if durationMS <= 0 || inPointMS < 0 {
		return &ModelError{Op: "trim clip", ID: clipID, Err: ErrBadInterval}
	}
	if tl.overlaps(c.TrackID, c.StartMS, durationMS, c.ID) {
		return &ModelError{Op: "trim clip", ID: clipID, Err: ErrClipOverlap}
	}
	c.InPointMS = inPointMS
	c.DurationMS = durationMS
	return nil
}

// RemoveClip deletes a clip from its track.
func (tl *Timeline) RemoveClip(clipID string) error {
	for trackID, clips := range tl.clips {
		for i, c := range clips {
			if c.ID == clipID {
				tl.clips[trackID] = append(clips[:i], clips[i+1:]...)
				return nil
			}
		}
	}
	return &ModelError{Op: "remove clip", ID: clipID, Err: ErrNotFound}
}

// Clip returns the clip with the given id, or nil.
func (tl *Timeline) Clip(id string) *Clip {
	for _, clips := range tl.clips {
		for _, c := range clips {
			if c.ID == id {
				return c
			}
		}
	}
	return nil
}

// Clips returns the clips on a media track, ordered by start time.
func (tl *Timeline) Clips(trackID string) []*Clip {
	return tl.clips[trackID]
}

// ZoomClips returns the zoom clips on an effect track, ordered by start time.
func (tl *Timeline) ZoomClips(trackID string) []*ZoomClip {
	return tl.zooms[trackID]
}

// BlurClips returns the blur clips on an effect track, ordered by start time.
func (tl *Timeline) BlurClips(trackID string) []*BlurClip {
	return tl.blurs[trackID]
}

// PanClips returns the pan clips on an effect track, ordered by start time.
func (tl *Timeline) PanClips(trackID string) []*PanClip {
	return tl.pans[trackID]
}

// TransformClips returns the transform clips on an effect track, ordered by
// start time.
func (tl *Timeline) TransformClips(trackID string) []*TransformClip {
	return tl.transforms[trackID]
}

func (tl *Timeline) overlaps(trackID string, startMS, durationMS int64, excludeID string) bool {
	end := startMS + durationMS
	for _, other := range tl.clips[trackID] {
		if other.ID == excludeID {
			continue
		}
		if startMS < other.EndMS() && other.StartMS < end {
			return true
		}
	}
	return false
}

func (tl *Timeline) resortClips(trackID string) {
	sort.SliceStable(tl.clips[trackID], func(i, j int) bool {
		return tl.clips[trackID][i].StartMS < tl.clips[trackID][j].StartMS
	})
}

// normalizeClip fills the defaults the resolver assumes.
func normalizeClip(c *Clip) {
	if c.Scale == 0 {
		c.Scale = 1
	}
	if c.Opacity == 0 {
		c.Opacity = 1
	}
	if c.Speed == 0 {
		c.Speed = 1
	}
	if c.Volume == 0 {
		c.Volume = 1
	}
}

// effectTrack validates the destination of an effect clip insertion.
func (tl *Timeline) effectTrack(trackID, wantType, op, id string) (*Track, error) {
	track := tl.Track(trackID)
	if track == nil {
		return nil, &ModelError{Op: op, ID: id, Err: ErrNotFound}
	}
	if track.Type != wantType {
		return nil, &ModelError{Op: op, ID: id, Err: ErrWrongTrackKind}
	}
	return track, nil
}

// AddZoomClip places a zoom effect clip on a zoom track.
func (tl *Timeline) AddZoomClip(z *ZoomClip) error {
	if _, err := tl.effectTrack(z.TrackID, TrackZoom, "add zoom clip", z.ID); err != nil {
		return err
	}
	if z.DurationMS <= 0 {
		return &ModelError{Op: "add zoom clip", ID: z.ID, Err: ErrBadInterval}
	}
	if z.Scale == 0 {
		z.Scale = 1.5
	}
	tl.zooms[z.TrackID] = insertSorted(tl.zooms[z.TrackID], z, func(x *ZoomClip) int64 { return x.StartMS })
	return nil
}

// AddBlurClip places a blur effect clip on a blur track.
func (tl *Timeline) AddBlurClip(b *BlurClip) error {
	if _, err := tl.effectTrack(b.TrackID, TrackBlur, "add blur clip", b.ID); err != nil {
		return err
	}
	if b.DurationMS <= 0 {
		return &ModelError{Op: "add blur clip", ID: b.ID, Err: ErrBadInterval}
	}
	tl.blurs[b.TrackID] = insertSorted(tl.blurs[b.TrackID], b, func(x *BlurClip) int64 { return x.StartMS })
	return nil
}

// AddPanClip places a pan effect clip on a pan track.
func (tl *Timeline) AddPanClip(p *PanClip) error {
	if _, err := tl.effectTrack(p.TrackID, TrackPan, "add pan clip", p.ID); err != nil {
		return err
	}
	if p.DurationMS <= 0 {
		return &ModelError{Op: "add pan clip", ID: p.ID, Err: ErrBadInterval}
	}
	tl.pans[p.TrackID] = insertSorted(tl.pans[p.TrackID], p, func(x *PanClip) int64 { return x.StartMS })
	return nil
}

// AddTransformClip places a keyframed transform clip on a transform track.
// Keyframes are kept sorted by their clip-local time.
func (tl *Timeline) AddTransformClip(tc *TransformClip) error {
	if _, err := tl.effectTrack(tc.TrackID, TrackTransform, "add transform clip", tc.ID); err != nil {
		return err
	}
	if tc.DurationMS <= 0 {
		return &ModelError{Op: "add transform clip", ID: tc.ID, Err: ErrBadInterval}
	}
	sort.SliceStable(tc.Keyframes, func(i, j int) bool {
		return tc.Keyframes[i].TimeMS < tc.Keyframes[j].TimeMS
	})
	tl.transforms[tc.TrackID] = insertSorted(tl.transforms[tc.TrackID], tc, func(x *TransformClip) int64 { return x.StartMS })
	return nil
}

// RemoveZoomClip deletes a zoom clip.
func (tl *Timeline) RemoveZoomClip(id string) error {
	for trackID, zs := range tl.zooms {
		for i, z := range zs {
			if z.ID == id {
				tl.zooms[trackID] = append(zs[:i], zs[i+1:]...)
				return nil
			}
		}
	}
	return &ModelError{Op: "remove zoom clip", ID: id, Err: ErrNotFound}
}

// RemoveBlurClip deletes a blur clip.
func (tl *Timeline) RemoveBlurClip(id string) error {
	for trackID, bs := range tl.blurs {
		for i, b := range bs {
			if b.ID == id {
				tl.blurs[trackID] = append(bs[:i], bs[i+1:]...)
				return nil
			}
		}
	}
	return &ModelError{Op: "remove blur clip", ID: id, Err: ErrNotFound}
}

// RemovePanClip deletes a pan clip.
func (tl *Timeline) RemovePanClip(id string) error {
	for trackID, ps := range tl.pans {
		for i, p := range ps {
			if p.ID == id {
				tl.pans[trackID] = append(ps[:i], ps[i+1:]...)
				return nil
			}
		}
	}
	return &ModelError{Op: "remove pan clip", ID: id, Err: ErrNotFound}
}

// RemoveTransformClip deletes a transform clip.
func (tl *Timeline) RemoveTransformClip(id string) error {
	for trackID, ts := range tl.transforms {
		for i, tc := range ts {
			if tc.ID == id {
				tl.transforms[trackID] = append(ts[:i], ts[i+1:]...)
				return nil
			}
		}
	}
	return &ModelError{Op: "remove transform clip", ID: id, Err: ErrNotFound}
}

// AddAsset records an imported asset.
func (tl *Timeline) AddAsset(a *Asset) {
	tl.Assets = append(tl.Assets, a)
}

// Duration returns the effective demo duration: the maximum clip or effect
// clip end across all tracks, or the last explicit duration if the
// timeline is empty. Never negative.
func (tl *Timeline) Duration() int64 {
	var maxEnd int64 = -1
	for _, clips := range tl.clips {
		for _, c := range clips {
			if end := c.EndMS(); end > maxEnd {
				maxEnd = end
			}
		}
	}
	for _, zs := range tl.zooms {
		for _, z := range zs {
			if end := z.EndMS(); end > maxEnd {
				maxEnd = end
			}
		}
	}
	for _, bs := range tl.blurs {
		for _, b := range bs {
			if end := b.EndMS(); end > maxEnd {
				maxEnd = end
			}
		}
	}
	for _, ps := range tl.pans {
		for _, p := range ps {
			if end := p.EndMS(); end > maxEnd {
				maxEnd = end
			}
		}
	}
	for _, ts := range tl.transforms {
		for _, tc := range ts {
			if end := tc.EndMS(); end > maxEnd {
				maxEnd = end
			}
		}
	}
	if maxEnd < 0 {
		if tl.Demo.DurationMS < 0 {
			return 0
		}
		return tl.Demo.DurationMS
	}
	return maxEnd
}

// Clone returns a deep copy of the timeline. Export jobs snapshot the
// model with Clone so concurrent edits never touch an in-flight render.
func (tl *Timeline) Clone() *Timeline {
	out := New(tl.Demo)
	if tl.Background != nil {
		bg := *tl.Background
		bg.GradientStops = append([]GradientStop(nil), tl.Background.GradientStops...)
		out.Background = &bg
	}
	for _, t := range tl.Tracks {
		tc := *t
		out.Tracks = append(out.Tracks, &tc)
	}
	for _, a := range tl.Assets {
		ac := *a
		out.Assets = append(out.Assets, &ac)
	}
	for id, clips := range tl.clips {
		for _, c := range clips {
			cc := *c
			if c.OutPointMS != nil {
				v := *c.OutPointMS
				cc.OutPointMS = &v
			}
			if c.Shadow != nil {
				s := *c.Shadow
				cc.Shadow = &s
			}
			if c.Border != nil {
				b := *c.Border
				cc.Border = &b
			}
			out.clips[id] = append(out.clips[id], &cc)
		}
	}
	for id, zs := range tl.zooms {
		for _, z := range zs {
			zc := *z
			out.zooms[id] = append(out.zooms[id], &zc)
		}
	}
	for id, bs := range tl.blurs {
		for _, b := range bs {
			bc := *b
			out.blurs[id] = append(out.blurs[id], &bc)
		}
	}
	for id, ps := range tl.pans {
		for _, p := range ps {
			pc := *p
			out.pans[id] = append(out.pans[id], &pc)
		}
	}
	for id, ts := range tl.transforms {
		for _, tc := range ts {
			tcc := *tc
			tcc.Keyframes = cloneKeyframes(tc.Keyframes)
			out.transforms[id] = append(out.transforms[id], &tcc)
		}
	}
	return out
}

func cloneKeyframes(kfs []Keyframe) []Keyframe {
	out := make([]Keyframe, len(kfs))
	for i, kf := range kfs {
		out[i] = Keyframe{
			TimeMS:    kf.TimeMS,
			PositionX: clonePtr(kf.PositionX),
			PositionY: clonePtr(kf.PositionY),
			ScaleX:    clonePtr(kf.ScaleX),
			ScaleY:    clonePtr(kf.ScaleY),
			Rotation:  clonePtr(kf.Rotation),
			Opacity:   clonePtr(kf.Opacity),
			Easing:    kf.Easing,
		}
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// insertSorted inserts item into a slice kept ordered by key.
func insertSorted[T any](s []*T, item *T, key func(*T) int64) []*T {
	i := sort.Search(len(s), func(i int) bool { return key(s[i]) > key(item) })
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = item
	return s
}
