package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/takastudio/taka-agent/internal/timeline"
)

var fallbackBackground = color.RGBA{R: 0x1e, G: 0x1e, B: 0x22, A: 0xff}

// paintBackground fills the canvas per the demo background variant. An
// absent or unrecognized background falls back to a flat dark fill so
// exported frames are never transparent.
func (c *Compositor) paintBackground(canvas *image.RGBA) {
	bg := c.background
	if bg == nil {
		fill(canvas, fallbackBackground)
		return
	}
	switch bg.Type {
	case timeline.BackgroundColor:
		fill(canvas, parseColor(bg.Color, fallbackBackground))
	case timeline.BackgroundGradient:
		c.paintGradient(canvas, bg)
	case timeline.BackgroundPattern:
		c.paintPattern(canvas, bg)
	case timeline.BackgroundMedia:
		c.paintMediaBackground(canvas, bg)
	case timeline.BackgroundBlur:
		// Desktop backdrop blur has no meaning in an offline export.
		fill(canvas, fallbackBackground)
	default:
		fill(canvas, fallbackBackground)
	}
}

func (c *Compositor) paintGradient(canvas *image.RGBA, bg *timeline.Background) {
	stops := bg.GradientStops
	if len(stops) == 0 {
		fill(canvas, fallbackBackground)
		return
	}
	if len(stops) == 1 {
		fill(canvas, parseColor(stops[0].Color, fallbackBackground))
		return
	}

	angle := bg.GradientAngle
	switch bg.GradientDirection {
	case "horizontal":
		angle = 90
	case "vertical":
		angle = 180
	}
	theta := (angle - 90) * math.Pi / 180
	dx := math.Cos(theta)
	dy := math.Sin(theta)

	b := canvas.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())
	// Project every pixel onto the gradient axis, normalized to [0,1].
	span := math.Abs(dx)*w + math.Abs(dy)*h
	if span == 0 {
		span = 1
	}
	ox := 0.0
	oy := 0.0
	if dx < 0 {
		ox = w
	}
	if dy < 0 {
		oy = h
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			t := ((float64(x-b.Min.X)-ox)*dx + (float64(y-b.Min.Y)-oy)*dy) / span
			canvas.SetRGBA(x, y, gradientAt(stops, t))
		}
	}
}

func gradientAt(stops []timeline.GradientStop, t float64) color.RGBA {
	if t <= stops[0].Offset {
		return parseColor(stops[0].Color, fallbackBackground)
	}
	last := stops[len(stops)-1]
	if t >= last.Offset {
		return parseColor(last.Color, fallbackBackground)
	}
	for i := 1; i < len(stops); i++ {
		if t <= stops[i].Offset {
			lo := stops[i-1]
			hi := stops[i]
			span := hi.Offset - lo.Offset
			u := 0.0
			if span > 0 {
				u = (t - lo.Offset) / span
			}
			return mixColor(
				parseColor(lo.Color, fallbackBackground),
				parseColor(hi.Color, fallbackBackground),
				u,
			)
		}
	}
	return parseColor(last.Color, fallbackBackground)
}

// paintPattern draws a dot or grid pattern over a solid base.
func (c *Compositor) paintPattern(canvas *image.RGBA, bg *timeline.Background) {
	base := parseColor(bg.Color, fallbackBackground)
	accent := parseColor(bg.PatternColor, color.RGBA{0xff, 0xff, 0xff, 0x30})
	fill(canvas, base)

	cell := int(bg.PatternScale * 40)
	if cell < 8 {
		cell = 40
	}
	b := canvas.Bounds()
	switch bg.PatternType {
	case "grid":
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if x%cell == 0 || y%cell == 0 {
					canvas.SetRGBA(x, y, overColor(canvas.RGBAAt(x, y), accent))
				}
			}
		}
	default: // dots
		r := cell / 10
		if r < 1 {
			r = 1
		}
		for cy := b.Min.Y + cell/2; cy < b.Max.Y; cy += cell {
			for cx := b.Min.X + cell/2; cx < b.Max.X; cx += cell {
				fillCircle(canvas, cx, cy, r, accent)
			}
		}
	}
}

// paintMediaBackground covers the canvas with an image or video frame,
// scaled to cover and nudged by the configured offsets.
func (c *Compositor) paintMediaBackground(canvas *image.RGBA, bg *timeline.Background) {
	fill(canvas, fallbackBackground)
	if bg.MediaPath == "" {
		return
	}
	frame, err := c.source.Frame(bg.MediaPath, timeline.TrackImage, 0)
	if err != nil || frame == nil {
		if !c.missing[bg.MediaPath] {
			c.missing[bg.MediaPath] = true
			c.logger.Warn("background media unavailable", "path", bg.MediaPath, "error", err)
		}
		return
	}

	sb := frame.Bounds()
	cb := canvas.Bounds()
	cover := math.Max(
		float64(cb.Dx())/float64(sb.Dx()),
		float64(cb.Dy())/float64(sb.Dy()),
	)
	scale := cover
	if bg.MediaScale > 0 {
		scale = cover * bg.MediaScale
	}
	dw := int(float64(sb.Dx()) * scale)
	dh := int(float64(sb.Dy()) * scale)
	x0 := cb.Min.X + (cb.Dx()-dw)/2 + int(bg.MediaPositionX)
	y0 := cb.Min.Y + (cb.Dy()-dh)/2 + int(bg.MediaPositionY)
	dst := image.Rect(x0, y0, x0+dw, y0+dh)
	xdraw.ApproxBiLinear.Scale(canvas, dst, frame, sb, xdraw.Over, nil)
}

func fill(dst *image.RGBA, col color.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}
