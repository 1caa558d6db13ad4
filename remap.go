package watermark

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// RemapMode is the direction a logo is pushed towards.
type RemapMode int

const (
	// RemapToWhite replaces dark visible pixels with white.
	RemapToWhite RemapMode = iota
	// RemapToBlack replaces light visible pixels with black.
	RemapToBlack
)

func (m RemapMode) String() string {
	if m == RemapToBlack {
		return "to-black"
	}
	return "to-white"
}

// Channel sum at the midpoint: mean(R,G,B) < 128 <=> R+G+B < 384.
const luminanceThresholdSum = 3 * 128

// scheme is the colour triple chosen once per pass.
type scheme struct {
	text    color.NRGBA
	outline color.NRGBA
	remap   RemapMode
}

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

// schemeFor maps a concrete mode to its colours. ColorAuto must be resolved first.
func schemeFor(m ColorMode) scheme {
	if m == ColorBlack {
		return scheme{text: black, outline: white, remap: RemapToBlack}
	}
	return scheme{text: white, outline: black, remap: RemapToWhite}
}

// RemapLogo returns a copy of src where visible pixels on the wrong side of
// the luminance midpoint are replaced by the target colour. Fully transparent
// pixels and every alpha value are copied verbatim. The result starts at (0,0).
func RemapLogo(src image.Image, mode RemapMode) *image.NRGBA {
	out := imaging.Clone(src)
	pix := out.Pix
	for y := range out.Rect.Dy() {
		row := y * out.Stride
		for x := range out.Rect.Dx() {
			i := row + x*4
			if pix[i+3] == 0 {
				continue
			}
			sum := int(pix[i]) + int(pix[i+1]) + int(pix[i+2])
			switch mode {
			case RemapToWhite:
				if sum < luminanceThresholdSum {
					pix[i], pix[i+1], pix[i+2] = 255, 255, 255
				}
			case RemapToBlack:
				if sum >= luminanceThresholdSum {
					pix[i], pix[i+1], pix[i+2] = 0, 0, 0
				}
			}
		}
	}
	return out
}
