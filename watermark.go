// Package watermark stamps scattered, semi-transparent text and an optional
// corner logo onto raster images.
//
// All marks are drawn onto a transparent overlay first; the overlay is then
// composited onto a copy of the source exactly once, so overlapping marks do
// not darken the base image cumulatively.
package watermark

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF format
	_ "image/jpeg" // register JPEG format
	_ "image/png"  // register PNG format
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	_ "golang.org/x/image/webp" // register WebP format
)

const (
	// Logo width limit as a share of canvas width.
	logoMaxWidthRatio = 0.15
	// Logo inset from the canvas edges as a share of the shorter side.
	logoPaddingRatio = 0.02
)

// Unit offsets of the four outline passes.
var diagonalOffsets = [4]image.Point{{1, 1}, {-1, -1}, {1, -1}, {-1, 1}}

// Options tune a Watermarker beyond its Config.
type Options struct {
	// FontPath is a TrueType/OpenType file. Empty selects the embedded Go Bold.
	FontPath string

	// Logo overrides Config.LogoPath with an already decoded bitmap.
	Logo image.Image

	// ResolveColor picks the mode for ColorAuto. Nil resolves to ColorWhite.
	ResolveColor func(image.Image) ColorMode

	// Logger receives soft warnings. The zero value is replaced by a no-op logger.
	Logger *zerolog.Logger
}

// Watermarker applies one Config to any number of images. It holds only
// read-only state and is safe for concurrent use.
type Watermarker struct {
	cfg     Config
	font    *opentype.Font
	fontErr error
	logo    image.Image
	logoErr error
	resolve func(image.Image) ColorMode
	log     zerolog.Logger
}

// Result is the outcome of one Apply call.
type Result struct {
	// Image is a new canvas with the overlay composited in. Same size as the source.
	Image *image.NRGBA

	// Color is the concrete mode used for this image.
	Color ColorMode

	// Glyph is the measured ink box of the watermark text.
	Glyph GlyphMetrics

	// Placement holds the text origins and the number placed with overlap.
	Placement Placement

	// FontFallback is set when the built-in bitmap face was used.
	FontFallback bool

	// Logo is where the main logo was pasted; empty when there was no logo pass.
	Logo image.Rectangle

	// LogoErr explains a skipped logo pass. It never fails the image.
	LogoErr error
}

// New validates cfg and prepares the font and logo.
func New(cfg Config, opts Options) (*Watermarker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Watermarker{
		cfg:     cfg,
		resolve: opts.ResolveColor,
		log:     zerolog.Nop(),
	}
	if opts.Logger != nil {
		w.log = *opts.Logger
	}

	w.font, w.fontErr = loadFont(opts.FontPath)
	if w.fontErr != nil && opts.FontPath != "" {
		w.log.Warn().Err(w.fontErr).Str("font", opts.FontPath).Msg("font unavailable, using embedded face")
		w.font, w.fontErr = loadFont("")
	}
	if w.fontErr != nil {
		w.log.Warn().Err(w.fontErr).Msg("no outline font, using built-in bitmap face")
	}

	switch {
	case opts.Logo != nil:
		w.logo = opts.Logo
	case cfg.LogoPath != "":
		logo, err := imaging.Open(cfg.LogoPath)
		if err != nil {
			w.logoErr = fmt.Errorf("%w: %s: %v", ErrLogo, cfg.LogoPath, err)
			w.log.Warn().Err(err).Str("logo", cfg.LogoPath).Msg("logo skipped")
		} else {
			w.logo = logo
		}
	}
	if w.logo != nil && w.logo.Bounds().Empty() {
		w.logoErr = fmt.Errorf("%w: empty bitmap", ErrLogo)
		w.logo = nil
	}
	return w, nil
}

// Config returns the configuration the Watermarker was built with.
func (w *Watermarker) Config() Config {
	return w.cfg
}

// TextAlpha converts a percentage into the fill alpha and the outline alpha.
// Percentages outside 0-100 are clamped.
func TextAlpha(opacity int) (fill, outline uint8) {
	a := 255 * min(max(opacity, 0), 100) / 100
	return uint8(a), uint8(a / 2)
}

// logoAlpha scales one logo pixel's alpha by opacity percent.
func logoAlpha(a uint8, opacity int) (fill, outline uint8) {
	v := int(a) * opacity
	return uint8((v + 50) / 100), uint8(v / 200)
}

// Apply watermarks a copy of base. src drives placement; nil seeds a fresh
// generator for this call only. base is never modified and on error no
// image is returned.
func (w *Watermarker) Apply(base image.Image, src rand.Source) (*Result, error) {
	if base == nil || base.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	canvas := imaging.Clone(base)
	size := canvas.Rect.Size()

	res := &Result{Color: w.cfg.Color, LogoErr: w.logoErr}
	if res.Color == ColorAuto {
		res.Color = ColorWhite
		if w.resolve != nil {
			res.Color = w.resolve(canvas)
		}
	}
	sch := schemeFor(res.Color)

	var face font.Face
	face, res.FontFallback = newFace(w.font, fontSizeFor(size))
	defer face.Close()
	text := normalizeText(w.cfg.Text)
	res.Glyph = measureText(face, text)
	res.Placement = NewPlanner(src).Plan(size, res.Glyph.Size(), w.cfg.Count)

	overlay := image.NewNRGBA(canvas.Rect)
	w.drawTextPass(overlay, face, text, res.Glyph, res.Placement.Positions, sch)
	if w.logo != nil {
		res.Logo = w.drawLogoPass(overlay, sch)
	}
	composite(canvas, overlay)
	res.Image = canvas

	if res.Placement.Overlaps > 0 {
		w.log.Warn().
			Int("overlaps", res.Placement.Overlaps).
			Int("count", w.cfg.Count).
			Msg("watermarks placed with potential overlap (limited space)")
	}
	if res.FontFallback {
		w.log.Warn().Int("size", fontSizeFor(size)).Msg("using built-in bitmap face")
	}
	w.log.Debug().
		Stringer("color", res.Color).
		Int("glyph_w", res.Glyph.Width).
		Int("glyph_h", res.Glyph.Height).
		Bool("logo", !res.Logo.Empty()).
		Msg("watermark applied")
	return res, nil
}

// drawTextPass draws, per position, four diagonal outline copies at half
// alpha and then the fill on top.
func (w *Watermarker) drawTextPass(overlay *image.NRGBA, face font.Face, text string, m GlyphMetrics, positions []image.Point, sch scheme) {
	fillA, outlineA := TextAlpha(w.cfg.TextOpacity)
	fill := sch.text
	fill.A = fillA
	outline := sch.outline
	outline.A = outlineA
	for _, p := range positions {
		for _, off := range diagonalOffsets {
			drawText(overlay, face, text, m, p.Add(off), outline)
		}
		drawText(overlay, face, text, m, p, fill)
	}
}

// drawLogoPass downsizes, recolours and pastes the logo with its outline.
// It returns the main logo rectangle in canvas coordinates.
func (w *Watermarker) drawLogoPass(overlay *image.NRGBA, sch scheme) image.Rectangle {
	canvas := overlay.Rect.Size()
	logo := fitLogo(w.logo, canvas.X)
	if logo == nil {
		w.log.Warn().Int("width", canvas.X).Msg("canvas too narrow for a logo, logo skipped")
		return image.Rectangle{}
	}
	recolored := RemapLogo(logo, sch.remap)
	origin := logoOrigin(w.cfg.LogoPosition, canvas, recolored.Rect.Size())

	opacity := w.cfg.LogoOpacity
	tint := [3]uint8{sch.outline.R, sch.outline.G, sch.outline.B}
	outline := scaleAlpha(recolored, func(a uint8) uint8 {
		_, o := logoAlpha(a, opacity)
		return o
	}, &tint)
	for _, off := range diagonalOffsets {
		blendOver(overlay, outline, origin.Add(off))
	}
	fill := scaleAlpha(recolored, func(a uint8) uint8 {
		f, _ := logoAlpha(a, opacity)
		return f
	}, nil)
	blendOver(overlay, fill, origin)
	return recolored.Rect.Add(origin)
}

// fitLogo downscales the logo so it is at most 15% of the canvas width.
// It never upscales, and returns nil when not even one column fits.
func fitLogo(logo image.Image, canvasW int) image.Image {
	maxW := int(logoMaxWidthRatio * float64(canvasW))
	if maxW < 1 {
		return nil
	}
	b := logo.Bounds()
	if b.Dx() <= maxW {
		return logo
	}
	h := max(int(float64(b.Dy())*float64(maxW)/float64(b.Dx())), 1)
	return imaging.Resize(logo, maxW, h, imaging.Lanczos)
}

// logoOrigin is the top-left of a logo of size logo anchored to pos.
func logoOrigin(pos LogoPosition, canvas, logo image.Point) image.Point {
	pad := int(math.Round(logoPaddingRatio * float64(min(canvas.X, canvas.Y))))
	left, top := pad, pad
	right := canvas.X - logo.X - pad
	bottom := canvas.Y - logo.Y - pad
	switch pos {
	case BottomLeft:
		return image.Pt(left, bottom)
	case TopRight:
		return image.Pt(right, top)
	case TopLeft:
		return image.Pt(left, top)
	default:
		return image.Pt(right, bottom)
	}
}
