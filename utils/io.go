package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG format
	_ "image/png"  // register PNG format
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/webp" // register WebP format
)

var (
	ErrDecode            = errors.New("cannot decode image")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrMetadata marks a soft failure: the image was written without metadata.
	ErrMetadata = errors.New("metadata not embedded")
)

// DefaultJPEGQuality matches the quality the original tool saved with.
const DefaultJPEGQuality = 95

type SaveOptions struct {
	// Copyright is embedded when the format can carry it.
	Copyright string
	// JPEGQuality defaults to DefaultJPEGQuality.
	JPEGQuality int
}

func ReadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrDecode, filepath.Base(path), err)
	}
	return img, nil
}

// SupportsAlpha reports whether the encoder keeps an alpha channel.
func SupportsAlpha(f imaging.Format) bool {
	switch f {
	case imaging.PNG, imaging.TIFF, imaging.GIF:
		return true
	default:
		return false
	}
}

// Flatten returns an opaque copy of img. Colour channels are kept and alpha
// is discarded, not blended against a background.
func Flatten(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}

// EncodeImage encodes img in the given format, flattening it first when the
// format cannot carry alpha and embedding the copyright text when possible.
// A metadata failure still yields the plain encoding, with ErrMetadata.
func EncodeImage(img image.Image, f imaging.Format, opts SaveOptions) ([]byte, error) {
	if !SupportsAlpha(f) {
		img = Flatten(img)
	}
	q := opts.JPEGQuality
	if q <= 0 {
		q = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, imaging.JPEGQuality(q)); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", f, err)
	}
	data := buf.Bytes()
	if opts.Copyright == "" {
		return data, nil
	}
	var (
		tagged []byte
		err    error
	)
	switch f {
	case imaging.JPEG:
		tagged, err = embedJPEGCopyright(data, opts.Copyright)
	case imaging.PNG:
		tagged, err = embedPNGCopyright(data, opts.Copyright)
	default:
		err = fmt.Errorf("format %s has no copyright field", f)
	}
	if err != nil {
		return data, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	return tagged, nil
}

// SaveImage writes img to filename, choosing the format from the extension.
// errors.Is(err, ErrMetadata) means the file was written without metadata.
func SaveImage(img image.Image, filename string, opts SaveOptions) error {
	f, err := imaging.FormatFromFilename(filename)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	data, encErr := EncodeImage(img, f, opts)
	if data == nil {
		return encErr
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return err
	}
	return encErr
}

// OutputName is the file name written for input: "<name>_watermarked<ext>".
// Inputs without an encoder (WebP) are written as PNG.
func OutputName(input string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		ext = ".png"
	}
	return name + "_watermarked" + ext
}

// SavePalette writes the colours as a strip of square swatches.
func SavePalette(palette []colorful.Color, tileSize int, filename string) error {
	if len(palette) == 0 {
		return fmt.Errorf("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}
	img := image.NewNRGBA(image.Rect(0, 0, tileSize*len(palette), tileSize))
	for i, c := range palette {
		r, g, b := c.Clamped().RGB255()
		for y := range tileSize {
			for x := i * tileSize; x < (i+1)*tileSize; x++ {
				o := img.PixOffset(x, y)
				img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, b, 255
			}
		}
	}
	return SaveImage(img, filename, SaveOptions{})
}

// PaletteHex formats colours as "#rrggbb" strings, darkest first when the
// palette was sorted with SortPaletteByBrightness.
func PaletteHex(palette []colorful.Color) []string {
	out := make([]string, len(palette))
	for i, c := range palette {
		out[i] = c.Clamped().Hex()
	}
	return out
}

