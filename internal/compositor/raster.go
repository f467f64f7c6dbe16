package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/takastudio/taka-agent/internal/timeline"
)

// parseColor decodes a #RGB, #RRGGBB or #RRGGBBAA hex string, returning
// the fallback when the string is malformed.
func parseColor(s string, fallback color.RGBA) color.RGBA {
	if len(s) == 0 || s[0] != '#' {
		return fallback
	}
	hex := s[1:]
	var r, g, b, a uint8 = 0, 0, 0, 0xff
	switch len(hex) {
	case 3:
		rr, ok1 := hexNibble(hex[0])
		gg, ok2 := hexNibble(hex[1])
		bb, ok3 := hexNibble(hex[2])
		if !ok1 || !ok2 || !ok3 {
			return fallback
		}
		r, g, b = rr*17, gg*17, bb*17
	case 8:
		aa, ok := hexByte(hex[6:8])
		if !ok {
			return fallback
		}
		a = aa
		fallthrough
	case 6:
		rr, ok1 := hexByte(hex[0:2])
		gg, ok2 := hexByte(hex[2:4])
		bb, ok3 := hexByte(hex[4:6])
		if !ok1 || !ok2 || !ok3 {
			return fallback
		}
		r, g, b = rr, gg, bb
	default:
		return fallback
	}
	return color.RGBA{R: r, G: g, B: b, A: a}
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func hexByte(s string) (uint8, bool) {
	hi, ok1 := hexNibble(s[0])
	lo, ok2 := hexNibble(s[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func mixColor(a, b color.RGBA, u float64) color.RGBA {
	if u <= 0 {
		return a
	}
	if u >= 1 {
		return b
	}
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*u))
	}
	return color.RGBA{
		R: mix(a.R, b.R),
		G: mix(a.G, b.G),
		B: mix(a.B, b.B),
		A: mix(a.A, b.A),
	}
}

// overColor composites src over dst with straight alpha.
func overColor(dst, src color.RGBA) color.RGBA {
	sa := float64(src.A) / 255
	da := float64(dst.A) / 255
	oa := sa + da*(1-sa)
	if oa == 0 {
		return color.RGBA{}
	}
	blend := func(s, d uint8) uint8 {
		v := (float64(s)*sa + float64(d)*da*(1-sa)) / oa
		return uint8(math.Round(v))
	}
	return color.RGBA{
		R: blend(src.R, dst.R),
		G: blend(src.G, dst.G),
		B: blend(src.B, dst.B),
		A: uint8(math.Round(oa * 255)),
	}
}

func fillCircle(dst *image.RGBA, cx, cy, r int, col color.RGBA) {
	b := dst.Bounds()
	r2 := r * r
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
				continue
			}
			dx := x - cx
			dy := y - cy
			if dx*dx+dy*dy <= r2 {
				dst.SetRGBA(x, y, overColor(dst.RGBAAt(x, y), col))
			}
		}
	}
}

// fillRoundedRect fills rect with col, clipping the four corners to the
// given radius.
func fillRoundedRect(dst *image.RGBA, rect image.Rectangle, radius float64, col color.RGBA) {
	r := int(radius)
	max := rect.Dx() / 2
	if rect.Dy()/2 < max {
		max = rect.Dy() / 2
	}
	if r > max {
		r = max
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if insideRounded(rect, x, y, r) {
				dst.SetRGBA(x, y, col)
			}
		}
	}
}

// maskCorners zeroes pixels outside the rounded-rect outline of img.
func maskCorners(img *image.RGBA, radius float64) {
	b := img.Bounds()
	r := int(radius)
	max := b.Dx() / 2
	if b.Dy()/2 < max {
		max = b.Dy() / 2
	}
	if r > max {
		r = max
	}
	if r <= 0 {
		return
	}
	// Only the four corner squares can change.
	zones := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+r, b.Min.Y+r),
		image.Rect(b.Max.X-r, b.Min.Y, b.Max.X, b.Min.Y+r),
		image.Rect(b.Min.X, b.Max.Y-r, b.Min.X+r, b.Max.Y),
		image.Rect(b.Max.X-r, b.Max.Y-r, b.Max.X, b.Max.Y),
	}
	for _, z := range zones {
		for y := z.Min.Y; y < z.Max.Y; y++ {
			for x := z.Min.X; x < z.Max.X; x++ {
				if !insideRounded(b, x, y, r) {
					img.SetRGBA(x, y, color.RGBA{})
				}
			}
		}
	}
}

func insideRounded(rect image.Rectangle, x, y, r int) bool {
	if r <= 0 {
		return true
	}
	cx, cy := 0, 0
	switch {
	case x < rect.Min.X+r && y < rect.Min.Y+r:
		cx, cy = rect.Min.X+r, rect.Min.Y+r
	case x >= rect.Max.X-r && y < rect.Min.Y+r:
		cx, cy = rect.Max.X-r-1, rect.Min.Y+r
	case x < rect.Min.X+r && y >= rect.Max.Y-r:
		cx, cy = rect.Min.X+r, rect.Max.Y-r-1
	case x >= rect.Max.X-r && y >= rect.Max.Y-r:
		cx, cy = rect.Max.X-r-1, rect.Max.Y-r-1
	default:
		return true
	}
	dx := x - cx
	dy := y - cy
	return dx*dx+dy*dy <= r*r
}

// strokeBorder draws the border stroke along the image edges.
func strokeBorder(img *image.RGBA, border *timeline.Border) {
	col := parseColor(border.Color, color.RGBA{0xff, 0xff, 0xff, 0xff})
	w := int(border.Width)
	if w < 1 {
		w = 1
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if x-b.Min.X < w || b.Max.X-1-x < w || y-b.Min.Y < w || b.Max.Y-1-y < w {
				if img.RGBAAt(x, y).A > 0 {
					img.SetRGBA(x, y, col)
				}
			}
		}
	}
}

// applyRegionBlur box-blurs the layer's blur region in canvas space. When
// Inside is false everything outside the region is blurred instead, which
// is how a privacy spotlight is expressed.
func applyRegionBlur(img *image.RGBA, blur *timeline.BlurState) {
	radius := int(math.Round(blur.Intensity * 12))
	if radius < 1 {
		return
	}
	region := image.Rect(
		int(blur.Region.X),
		int(blur.Region.Y),
		int(blur.Region.X+blur.Region.Width),
		int(blur.Region.Y+blur.Region.Height),
	).Intersect(img.Bounds())

	if blur.Inside {
		if region.Empty() {
			return
		}
		boxBlur(img, region, radius)
		return
	}

	// Outside: blur a copy of the whole frame, then restore the region.
	keep := image.NewRGBA(region)
	copyRegion(keep, img, region)
	boxBlur(img, img.Bounds(), radius)
	copyRegion(img, keep, region)
}

func copyRegion(dst, src *image.RGBA, region image.Rectangle) {
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			dst.SetRGBA(x, y, src.RGBAAt(x, y))
		}
	}
}

// boxBlur runs a two-pass separable box blur over region in place.
func boxBlur(img *image.RGBA, region image.Rectangle, radius int) {
	region = region.Intersect(img.Bounds())
	if region.Empty() || radius < 1 {
		return
	}
	tmp := image.NewRGBA(region)

	// Horizontal pass into tmp.
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			var r, g, b, a, n int
			for k := -radius; k <= radius; k++ {
				xx := x + k
				if xx < region.Min.X || xx >= region.Max.X {
					continue
				}
				p := img.RGBAAt(xx, y)
				r += int(p.R)
				g += int(p.G)
				b += int(p.B)
				a += int(p.A)
				n++
			}
			tmp.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: uint8(a / n),
			})
		}
	}

	// Vertical pass back into img.
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			var r, g, b, a, n int
			for k := -radius; k <= radius; k++ {
				yy := y + k
				if yy < region.Min.Y || yy >= region.Max.Y {
					continue
				}
				p := tmp.RGBAAt(x, yy)
				r += int(p.R)
				g += int(p.G)
				b += int(p.B)
				a += int(p.A)
				n++
			}
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: uint8(a / n),
			})
		}
	}
}
