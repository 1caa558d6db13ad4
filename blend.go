package watermark

import (
	"image"
)

// blendOver composites src onto dst with its origin at at, using the
// non-premultiplied "over" operator:
//
//	outA = sA + dA(1-sA)
//	outC = (sC*sA + dC*dA*(1-sA)) / outA
//
// All arithmetic is integer on a 255*255 scale with rounding. Pixels of src
// falling outside dst are clipped.
func blendOver(dst, src *image.NRGBA, at image.Point) {
	r := src.Rect.Sub(src.Rect.Min).Add(at).Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	sp := r.Min.Sub(at).Add(src.Rect.Min)
	for y := range r.Dy() {
		di := dst.PixOffset(r.Min.X, r.Min.Y+y)
		si := src.PixOffset(sp.X, sp.Y+y)
		for range r.Dx() {
			blendPixel(dst.Pix[di:di+4:di+4], src.Pix[si:si+4:si+4])
			di += 4
			si += 4
		}
	}
}

func blendPixel(d, s []uint8) {
	sa := uint32(s[3])
	switch sa {
	case 0:
		return
	case 255:
		copy(d, s)
		return
	}
	da := uint32(d[3])
	// Both weights carry a 255*255 scale.
	sw := sa * 255
	dw := da * (255 - sa)
	outA := sw + dw
	if outA == 0 {
		d[0], d[1], d[2], d[3] = 0, 0, 0, 0
		return
	}
	for c := range 3 {
		v := uint32(s[c])*sw + uint32(d[c])*dw
		d[c] = uint8((v + outA/2) / outA)
	}
	d[3] = uint8((outA + 127) / 255)
}

// composite blends the finished overlay onto the canvas in a single pass.
func composite(canvas, overlay *image.NRGBA) {
	blendOver(canvas, overlay, overlay.Rect.Min)
}

// scaleAlpha returns a copy of src whose alpha is rewritten by scale. When
// tint is non-nil every visible pixel takes its RGB.
func scaleAlpha(src *image.NRGBA, scale func(uint8) uint8, tint *[3]uint8) *image.NRGBA {
	out := image.NewNRGBA(src.Rect)
	for y := range src.Rect.Dy() {
		si := y * src.Stride
		oi := y * out.Stride
		for x := range src.Rect.Dx() {
			s := src.Pix[si+x*4 : si+x*4+4 : si+x*4+4]
			if s[3] == 0 {
				continue
			}
			o := out.Pix[oi+x*4 : oi+x*4+4 : oi+x*4+4]
			if tint != nil {
				o[0], o[1], o[2] = tint[0], tint[1], tint[2]
			} else {
				o[0], o[1], o[2] = s[0], s[1], s[2]
			}
			o[3] = scale(s[3])
		}
	}
	return out
}
