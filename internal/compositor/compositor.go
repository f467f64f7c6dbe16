// Package compositor turns resolved timeline layers into rasterized
// frames. It has no timeline awareness beyond the layer structs: the
// contract is layers + canvas in, pixels out.
package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/takastudio/taka-agent/internal/timeline"
)

// FrameSource supplies decoded pixels for a media reference at a source
// instant. Implementations cache aggressively; the compositor calls this
// once per layer per frame.
type FrameSource interface {
	Frame(path, kind string, atMS int64) (image.Image, error)
}

// Compositor paints one frame at a time onto a reusable canvas.
type Compositor struct {
	width, height int
	background    *timeline.Background
	source        FrameSource
	logger        *slog.Logger

	missing map[string]bool // sources already reported unavailable
}

// New creates a compositor for a fixed canvas size and background.
func New(width, height int, background *timeline.Background, source FrameSource, logger *slog.Logger) *Compositor {
	return &Compositor{
		width:      width,
		height:     height,
		background: background,
		source:     source,
		logger:     logger,
		missing:    make(map[string]bool),
	}
}

// RenderFrame paints the background and then every layer back-to-front,
// returning the finished frame. Layers whose pixels cannot be fetched are
// painted as transparent placeholders so one bad asset never blanks the
// whole frame.
func (c *Compositor) RenderFrame(layers []timeline.Layer) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	c.paintBackground(canvas)
	for _, layer := range layers {
		if layer.SourceType == timeline.TrackAudio {
			continue
		}
		c.paintLayer(canvas, layer)
	}
	return canvas
}

func (c *Compositor) paintLayer(canvas *image.RGBA, layer timeline.Layer) {
	if layer.Placeholder {
		return
	}
	frame, err := c.source.Frame(layer.SourcePath, layer.SourceType, layer.SourceTimeMS)
	if err != nil || frame == nil {
		if !c.missing[layer.SourcePath] {
			c.missing[layer.SourcePath] = true
			c.logger.Warn("layer source unavailable, rendering placeholder",
				"path", layer.SourcePath, "error", err)
		}
		return
	}

	src := prepareSource(frame, layer)
	if src.Bounds().Empty() {
		return
	}
	aff := c.affineFor(src.Bounds(), layer)

	if layer.Shadow != nil {
		c.paintShadow(canvas, src.Bounds(), layer, aff)
	}

	off := image.NewRGBA(canvas.Bounds())
	xdraw.CatmullRom.Transform(off, aff, src, src.Bounds(), xdraw.Over, nil)

	if layer.Blur != nil && layer.Blur.Intensity > 0 {
		applyRegionBlur(off, layer.Blur)
	}

	alpha := clampAlpha(layer.Opacity)
	if alpha == 0 {
		return
	}
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(canvas, canvas.Bounds(), off, image.Point{}, mask, image.Point{}, draw.Over)
}

// affineFor builds the source-to-canvas transform for a layer: fit the
// source into the canvas, apply the layer scale and rotation about the
// layer centre, offset by the layer position, then apply any zoom about
// the zoom centre.
func (c *Compositor) affineFor(srcBounds image.Rectangle, layer timeline.Layer) f64.Aff3 {
	sw := float64(srcBounds.Dx())
	sh := float64(srcBounds.Dy())
	w := float64(c.width)
	h := float64(c.height)

	fit := math.Min(w/sw, h/sh)
	sx := fit * layer.Transform.ScaleX
	sy := fit * layer.Transform.ScaleY

	theta := layer.Transform.Rotation * math.Pi / 180
	cos := math.Cos(theta)
	sin := math.Sin(theta)

	// dst = R*S*(p - srcCentre) + canvasCentre + position
	a := sx * cos
	b := -sy * sin
	d := sx * sin
	e := sy * cos

	scx := sw / 2
	scy := sh / 2
	tx := w/2 + layer.Transform.PositionX - (a*scx + b*scy)
	ty := h/2 + layer.Transform.PositionY - (d*scx + e*scy)

	if layer.Zoom != nil && layer.Zoom.Scale != 1 {
		z := layer.Zoom.Scale
		zx := layer.Zoom.CenterX / 100 * w
		zy := layer.Zoom.CenterY / 100 * h
		a, b, d, e = z*a, z*b, z*d, z*e
		tx = z*tx + (1-z)*zx
		ty = z*ty + (1-z)*zy
	}

	return f64.Aff3{a, b, tx, d, e, ty}
}

// paintShadow draws a blurred silhouette of the layer's rounded rectangle
// under the layer, using the same transform offset by the shadow.
func (c *Compositor) paintShadow(canvas *image.RGBA, srcBounds image.Rectangle, layer timeline.Layer, aff f64.Aff3) {
	sh := layer.Shadow
	col := parseColor(sh.Color, color.RGBA{0, 0, 0, 160})

	silhouette := image.NewRGBA(srcBounds)
	fillRoundedRect(silhouette, srcBounds, layer.CornerRadius, col)

	off := image.NewRGBA(canvas.Bounds())
	shAff := aff
	shAff[2] += sh.OffsetX
	shAff[5] += sh.OffsetY
	xdraw.ApproxBiLinear.Transform(off, shAff, silhouette, srcBounds, xdraw.Over, nil)

	if sh.Blur > 0 {
		boxBlur(off, off.Bounds(), int(sh.Blur/2)+1)
	}
	draw.Draw(canvas, canvas.Bounds(), off, image.Point{}, draw.Over)
}

// prepareSource crops the frame, rounds its corners and strokes the
// border, returning a premultiplied RGBA ready for the affine pass.
func prepareSource(frame image.Image, layer timeline.Layer) *image.RGBA {
	b := frame.Bounds()
	crop := image.Rect(
		b.Min.X+int(layer.Crop.Left),
		b.Min.Y+int(layer.Crop.Top),
		b.Max.X-int(layer.Crop.Right),
		b.Max.Y-int(layer.Crop.Bottom),
	).Intersect(b)
	if crop.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}

	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), frame, crop.Min, draw.Src)

	if layer.CornerRadius > 0 {
		maskCorners(out, layer.CornerRadius)
	}
	if layer.Border != nil && layer.Border.Width > 0 {
		strokeBorder(out, layer.Border)
	}
	return out
}

func clampAlpha(opacity float64) uint8 {
	if opacity <= 0 {
		return 0
	}
	if opacity >= 1 {
		return 255
	}
	return uint8(math.Round(opacity * 255))
}
