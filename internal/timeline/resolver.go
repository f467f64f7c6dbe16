package timeline

// Transform is a resolved 2D placement: canvas-pixel translation, per-axis
// scale and rotation in degrees about the layer centre.
type Transform struct {
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
	ScaleX    float64 `json:"scale_x"`
	ScaleY    float64 `json:"scale_y"`
	Rotation  float64 `json:"rotation"`
}

// ZoomState is the effective zoom on a layer: scale factor and centre in
// percent of the canvas.
type ZoomState struct {
	Scale   float64 `json:"scale"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
}

// BlurState is the effective blur on a layer.
type BlurState struct {
	Intensity    float64    `json:"intensity"`
	Region       BlurRegion `json:"region"`
	CornerRadius float64    `json:"corner_radius"`
	Inside       bool       `json:"inside"`
}

// Layer is one resolved, composite-ready clip state at a query instant.
// Layers are ordered back-to-front by track sort order.
type Layer struct {
	ClipID  string `json:"clip_id"`
	TrackID string `json:"track_id"`

	SourcePath   string `json:"source_path"`
	SourceType   string `json:"source_type"`
	SourceTimeMS int64  `json:"source_time_ms"`
	Placeholder  bool   `json:"placeholder,omitempty"`

	Transform    Transform `json:"transform"`
	Opacity      float64   `json:"opacity"`
	Crop         Crop      `json:"crop"`
	CornerRadius float64   `json:"corner_radius,omitempty"`
	Shadow       *Shadow   `json:"shadow,omitempty"`
	Border       *Border   `json:"border,omitempty"`

	Zoom *ZoomState `json:"zoom,omitempty"`
	Blur *BlurState `json:"blur,omitempty"`

	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted,omitempty"`
}

// Resolve maps the timeline at instant t (milliseconds) to the ordered
// layer list the compositor paints back-to-front. It is pure: same model
// and same t always produce field-for-field identical output.
//
// Per media track at most one clip is active (the non-overlap invariant).
// Invisible tracks are omitted entirely; locked and muted tracks are still
// resolved because those flags gate editing and audio, not compositing.
// Effect tracks with a dangling or type-incompatible target are inert.
// Effects apply in a fixed order: pan, then zoom, then blur, then
// transform; transform keyframes override position/scale/rotation outright
// rather than blending. When several effect tracks of the same kind target
// one media track, the first in sort order wins.
func (tl *Timeline) Resolve(t int64) []Layer {
	var layers []Layer
	for _, track := range tl.Tracks {
		if !track.IsMedia() || !track.Visible {
			continue
		}
		clip := tl.activeClip(track.ID, t)
		if clip == nil {
			continue
		}
		layer := tl.resolveClip(track, clip, t)
		layers = append(layers, layer)
	}
	return layers
}

// activeClip finds the clip on a media track whose interval contains t.
func (tl *Timeline) activeClip(trackID string, t int64) *Clip {
	for _, c := range tl.clips[trackID] {
		if c.contains(t) {
			return c
		}
		if c.StartMS > t {
			break
		}
	}
	return nil
}

func (tl *Timeline) resolveClip(track *Track, clip *Clip, t int64) Layer {
	local := t - clip.StartMS

	layer := Layer{
		ClipID:       clip.ID,
		TrackID:      track.ID,
		SourcePath:   clip.SourcePath,
		SourceType:   clip.SourceType,
		SourceTimeMS: sourceTime(clip, local),
		Placeholder:  clip.SourcePath == "",
		Transform: Transform{
			PositionX: clip.PositionX,
			PositionY: clip.PositionY,
			ScaleX:    clip.Scale,
			ScaleY:    clip.Scale,
			Rotation:  clip.Rotation,
		},
		Opacity:      clip.Opacity,
		Crop:         clip.Crop,
		CornerRadius: clip.CornerRadius,
		Shadow:       clip.Shadow,
		Border:       clip.Border,
		Volume:       clip.Volume * track.Volume,
		Muted:        clip.Muted || track.Muted,
	}

	// Fixed combination order: pan, zoom, blur, transform.
	if pan := tl.activePan(track.ID, t); pan != nil {
		applyPan(&layer, pan, t, tl.Demo)
	}
	if zoom := tl.activeZoom(track.ID, t); zoom != nil {
		applyZoom(&layer, zoom, t)
	}
	if blur := tl.activeBlur(track.ID, t); blur != nil {
		applyBlur(&layer, blur, t)
	}
	if tc := tl.activeTransform(track.ID, t); tc != nil {
		applyTransform(&layer, tc, t)
	}

	if clip.FadeInMS > 0 || clip.FadeOutMS > 0 {
		layer.Volume *= Envelope(local, clip.DurationMS, clip.FadeInMS, clip.FadeOutMS)
	}

	applyTransitions(&layer, clip, local)
	return layer
}

// sourceTime maps a clip-local timeline offset to the source-media sample
// instant, honouring playback speed, the in point and freeze-frame.
func sourceTime(clip *Clip, local int64) int64 {
	if clip.Freeze {
		return clip.InPointMS
	}
	src := clip.InPointMS + int64(float64(local)*clip.Speed)
	if clip.OutPointMS != nil && src > *clip.OutPointMS {
		src = *clip.OutPointMS
	}
	return src
}

// effectTargets iterates visible effect tracks of one type, in sort order,
// whose target resolves to the given media track.
func (tl *Timeline) effectTracks(effectType, mediaTrackID string) []*Track {
	var out []*Track
	for _, et := range tl.Tracks {
		if et.Type != effectType || !et.Visible {
			continue
		}
		if et.TargetTrackID != mediaTrackID {
			continue
		}
		target := tl.Track(et.TargetTrackID)
		if target == nil || !canTarget(et.Type, target.Type) {
			continue // inert, never an error
		}
		out = append(out, et)
	}
	return out
}

func (tl *Timeline) activePan(mediaTrackID string, t int64) *PanClip {
	for _, et := range tl.effectTracks(TrackPan, mediaTrackID) {
		for _, p := range tl.pans[et.ID] {
			if t >= p.StartMS && t < p.EndMS() {
				return p
			}
		}
	}
	return nil
}

func (tl *Timeline) activeZoom(mediaTrackID string, t int64) *ZoomClip {
	for _, et := range tl.effectTracks(TrackZoom, mediaTrackID) {
		for _, z := range tl.zooms[et.ID] {
			if t >= z.StartMS && t < z.EndMS() {
				return z
			}
		}
	}
	return nil
}

func (tl *Timeline) activeBlur(mediaTrackID string, t int64) *BlurClip {
	for _, et := range tl.effectTracks(TrackBlur, mediaTrackID) {
		for _, b := range tl.blurs[et.ID] {
			if t >= b.StartMS && t < b.EndMS() {
				return b
			}
		}
	}
	return nil
}

func (tl *Timeline) activeTransform(mediaTrackID string, t int64) *TransformClip {
	for _, et := range tl.effectTracks(TrackTransform, mediaTrackID) {
		for _, tc := range tl.transforms[et.ID] {
			if t >= tc.StartMS && t < tc.EndMS() {
				return tc
			}
		}
	}
	return nil
}

// applyPan offsets the layer position along the pan path scaled by the
// envelope, so the pan eases in from and back out to the clip's own
// placement. Pan points are percent of the canvas with 50,50 neutral.
func applyPan(layer *Layer, p *PanClip, t int64, demo Demo) {
	intensity := Envelope(t-p.StartMS, p.DurationMS, p.EaseInMS, p.EaseOutMS)
	if intensity == 0 {
		return
	}
	progress := float64(t-p.StartMS) / float64(p.DurationMS)
	x := lerp(p.StartX, p.EndX, progress)
	y := lerp(p.StartY, p.EndY, progress)
	offsetX := (x - 50) / 100 * float64(demo.Width)
	offsetY := (y - 50) / 100 * float64(demo.Height)
	layer.Transform.PositionX += offsetX * intensity
	layer.Transform.PositionY += offsetY * intensity
}

// applyZoom blends the zoom scale between 1 (off) and the configured
// target using the envelope as the blend factor.
func applyZoom(layer *Layer, z *ZoomClip, t int64) {
	intensity := Envelope(t-z.StartMS, z.DurationMS, z.EaseInMS, z.EaseOutMS)
	scale := lerp(1, z.Scale, intensity)
	layer.Zoom = &ZoomState{
		Scale:   scale,
		CenterX: z.CenterX,
		CenterY: z.CenterY,
	}
}

// applyBlur blends the blur intensity between 0 (off) and the configured
// target using the envelope as the blend factor.
func applyBlur(layer *Layer, b *BlurClip, t int64) {
	intensity := Envelope(t-b.StartMS, b.DurationMS, b.EaseInMS, b.EaseOutMS)
	layer.Blur = &BlurState{
		Intensity:    b.Intensity * intensity,
		Region:       b.Region,
		CornerRadius: b.CornerRadius,
		Inside:       b.Inside,
	}
}

// Keyframe defaults when no earlier keyframe sets a field.
const (
	defaultPosition = 0.0
	defaultScale    = 1.0
	defaultRotation = 0.0
	defaultOpacity  = 1.0
)

// applyTransform evaluates the transform clip's keyframes at t and
// overrides the layer's position, scale and rotation. Keyframe opacity
// multiplies into the composited opacity.
func applyTransform(layer *Layer, tc *TransformClip, t int64) {
	if len(tc.Keyframes) == 0 {
		return
	}
	local := t - tc.StartMS
	v := evalKeyframes(tc.Keyframes, local)
	layer.Transform.PositionX = v.posX
	layer.Transform.PositionY = v.posY
	layer.Transform.ScaleX = v.scaleX
	layer.Transform.ScaleY = v.scaleY
	layer.Transform.Rotation = v.rotation
	layer.Opacity *= v.opacity
}

type keyframeValues struct {
	posX, posY, scaleX, scaleY, rotation, opacity float64
}

// evalKeyframes interpolates every field independently at the clip-local
// instant. Outside the keyframe span the value clamps to the first/last
// keyframe. Interpolation uses the earlier keyframe's easing. A field that
// is nil on a keyframe inherits the nearest earlier non-nil value, or the
// documented default when no keyframe ever set it.
func evalKeyframes(kfs []Keyframe, local int64) keyframeValues {
	// Find the last keyframe at or before local.
	i := -1
	for j := range kfs {
		if kfs[j].TimeMS <= local {
			i = j
		} else {
			break
		}
	}

	switch {
	case i < 0:
		// Before the first keyframe: clamp to it.
		return effectiveValues(kfs, 0)
	case i == len(kfs)-1 || kfs[i].TimeMS == local:
		// After the last keyframe, or exactly on one: no interpolation,
		// so resolving at a keyframe's own time returns its explicit
		// values with no floating drift.
		return effectiveValues(kfs, i)
	}

	a := effectiveValues(kfs, i)
	b := effectiveValues(kfs, i+1)
	span := kfs[i+1].TimeMS - kfs[i].TimeMS
	u := Ease(kfs[i].Easing, float64(local-kfs[i].TimeMS)/float64(span))
	return keyframeValues{
		posX:     lerp(a.posX, b.posX, u),
		posY:     lerp(a.posY, b.posY, u),
		scaleX:   lerp(a.scaleX, b.scaleX, u),
		scaleY:   lerp(a.scaleY, b.scaleY, u),
		rotation: lerp(a.rotation, b.rotation, u),
		opacity:  lerp(a.opacity, b.opacity, u),
	}
}

// effectiveValues resolves every field of keyframe i, walking backward
// through the list for inherited fields.
func effectiveValues(kfs []Keyframe, i int) keyframeValues {
	return keyframeValues{
		posX:     inherit(kfs, i, func(k *Keyframe) *float64 { return k.PositionX }, defaultPosition),
		posY:     inherit(kfs, i, func(k *Keyframe) *float64 { return k.PositionY }, defaultPosition),
		scaleX:   inherit(kfs, i, func(k *Keyframe) *float64 { return k.ScaleX }, defaultScale),
		scaleY:   inherit(kfs, i, func(k *Keyframe) *float64 { return k.ScaleY }, defaultScale),
		rotation: inherit(kfs, i, func(k *Keyframe) *float64 { return k.Rotation }, defaultRotation),
		opacity:  inherit(kfs, i, func(k *Keyframe) *float64 { return k.Opacity }, defaultOpacity),
	}
}

func inherit(kfs []Keyframe, i int, field func(*Keyframe) *float64, def float64) float64 {
	for j := i; j >= 0; j-- {
		if v := field(&kfs[j]); v != nil {
			return *v
		}
	}
	return def
}

// applyTransitions folds the clip's entrance and exit transitions into the
// layer. Progress is computed with the same ramp math as the effect
// envelope over the clip's own interval: the entrance ramps 0 to 1 over
// its duration at the clip start, the exit ramps 1 to 0 at the end.
func applyTransitions(layer *Layer, clip *Clip, local int64) {
	if clip.EntranceType != TransitionNone && clip.EntranceMS > 0 && local < clip.EntranceMS {
		p := float64(local) / float64(clip.EntranceMS)
		applyTransition(layer, clip.EntranceType, p)
	}
	exitStart := clip.DurationMS - clip.ExitMS
	if clip.ExitType != TransitionNone && clip.ExitMS > 0 && local > exitStart {
		p := float64(clip.DurationMS-local) / float64(clip.ExitMS)
		applyTransition(layer, clip.ExitType, p)
	}
}

// applyTransition applies a transition at progress p in [0,1], where 1 is
// fully settled. Fade touches opacity only; scale and slide decay a scale
// or position offset to zero as p reaches 1.
func applyTransition(layer *Layer, kind string, p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	switch kind {
	case TransitionFade:
		layer.Opacity *= p
	case TransitionScale:
		layer.Transform.ScaleX *= p
		layer.Transform.ScaleY *= p
	case TransitionSlide:
		layer.Transform.PositionX += slideDistance * (1 - p)
	}
}

// slideDistance is the canvas-pixel offset a slide transition starts from.
const slideDistance = 120.0
