package watermark

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Font size as a share of the shorter canvas side.
const fontSizeRatio = 0.04

var copyrightReplacer = strings.NewReplacer("(c)", "©", "(C)", "©")

// normalizeText turns the "(c)" shorthand into the copyright sign.
func normalizeText(s string) string {
	return copyrightReplacer.Replace(s)
}

// GlyphMetrics is the ink box of the rendered watermark text.
type GlyphMetrics struct {
	Width, Height int
	// bearing is the ink box origin relative to the pen dot.
	bearing image.Point
}

// Size returns the ink box dimensions.
func (m GlyphMetrics) Size() image.Point {
	return image.Pt(m.Width, m.Height)
}

func measureText(face font.Face, text string) GlyphMetrics {
	b, _ := font.BoundString(face, text)
	minX, minY := b.Min.X.Floor(), b.Min.Y.Floor()
	return GlyphMetrics{
		Width:   b.Max.X.Ceil() - minX,
		Height:  b.Max.Y.Ceil() - minY,
		bearing: image.Pt(minX, minY),
	}
}

// drawText renders text so its ink box starts at at.
func drawText(dst draw.Image, face font.Face, text string, m GlyphMetrics, at image.Point, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(at.X-m.bearing.X, at.Y-m.bearing.Y),
	}
	d.DrawString(text)
}

func fontSizeFor(canvas image.Point) int {
	return int(fontSizeRatio * float64(min(canvas.X, canvas.Y)))
}

// loadFont parses a TrueType/OpenType file, or the embedded Go Bold when path is empty.
func loadFont(path string) (*opentype.Font, error) {
	data := gobold.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font: %w", err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return f, nil
}

// newFace returns a face of the given pixel size. It reports true when the
// bitmap fallback had to be used.
func newFace(f *opentype.Font, size int) (font.Face, bool) {
	if f == nil || size < 1 {
		return basicfont.Face7x13, true
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13, true
	}
	return face, false
}
