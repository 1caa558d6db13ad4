package utils

import (
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/rs/zerolog/log"
	"github.com/setanarut/watermark"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
)

const (
	// Images whose weighted lightness is below this get white marks.
	lightnessThreshold = 0.5
	// Colours weighed by SuggestColorMode.
	suggestPaletteSize = 8
)

type weightedColor struct {
	Col    colorful.Color
	Weight float64
}

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

// relativeLuminance is the Rec. 709 luminance of linear RGB.
func relativeLuminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// SortPaletteByBrightness orders colors from darkest to brightest.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		ya, yb := relativeLuminance(a), relativeLuminance(b)
		if ya < yb {
			return -1
		}
		if ya > yb {
			return 1
		}
		return 0
	})
}

// SuggestColorMode picks white marks for dark or colourful images and black
// marks for light ones, from the population-weighted lightness of the
// image's diverse dominant colours.
func SuggestColorMode(img image.Image) watermark.ColorMode {
	return SuggestColorModeWith(img, PaletteMethodDominantColor)
}

// SuggestColorModeWith is SuggestColorMode with an explicit palette method.
// Candidates are thinned to a diverse set first so a large flat area counts
// once per distinct colour and keeps its population weight.
func SuggestColorModeWith(img image.Image, method PaletteMethod) watermark.ColorMode {
	if img == nil || img.Bounds().Empty() {
		return watermark.ColorWhite
	}
	picks := selectDiverse(weightedCandidates(img, 24, method), suggestPaletteSize)
	if len(picks) == 0 {
		return watermark.ColorWhite
	}
	sum, total := 0.0, 0.0
	for _, c := range picks {
		l, _, _ := c.Col.Lab()
		sum += l * c.Weight
		total += c.Weight
	}
	if total <= 0 || sum/total < lightnessThreshold {
		return watermark.ColorWhite
	}
	return watermark.ColorBlack
}

func weightedCandidates(img image.Image, n int, method PaletteMethod) []weightedColor {
	if method == PaletteMethodKMeans {
		if c := kmeansCandidates(img, n); len(c) != 0 {
			return c
		}
		log.Warn().Msg("kmeans returned empty palette, falling back to dominantcolor")
	}
	return dominantCandidates(img, n)
}

func dominantCandidates(img image.Image, n int) []weightedColor {
	candidates := dominantcolor.FindWeight(img, n)
	if len(candidates) == 0 {
		// Last resort: neutral grey keeps callers away from an empty palette.
		candidates = append(candidates, dominantcolor.Color{
			RGBA:   color.RGBA{R: 128, G: 128, B: 128, A: 255},
			Weight: 1.0,
		})
	}
	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		w := c.Weight
		if w <= 0 {
			w = 1e-6
		}
		weighted = append(weighted, weightedColor{Col: col.Clamped(), Weight: w})
	}
	return weighted
}

func kmeansCandidates(img image.Image, k int) []weightedColor {
	if k <= 0 {
		return nil
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// Subsample to keep kmeans tractable on large images.
	maxSamples := 12000
	step := 1
	if width*height > maxSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r16) / 65535.0,
				float64(g16) / 65535.0,
				float64(b16) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	cc, err := kmeans.New().Partition(dataset, min(k, len(dataset)))
	if err != nil || len(cc) == 0 {
		return nil
	}
	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		weighted = append(weighted, weightedColor{Col: col, Weight: float64(len(c.Observations))})
	}
	return weighted
}

// ExtractPalette returns up to k well separated dominant colours.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []colorful.Color {
	if k <= 0 {
		return nil
	}
	return SelectDiverseWeightedColors(weightedCandidates(img, max(24, k*8), method), k)
}

// SelectDiverseWeightedColors greedily picks k colours far apart in Lab,
// starting from the heaviest and favouring heavy candidates.
func SelectDiverseWeightedColors(cands []weightedColor, k int) []colorful.Color {
	picks := selectDiverse(cands, k)
	if picks == nil {
		return nil
	}
	out := make([]colorful.Color, len(picks))
	for i, p := range picks {
		out[i] = p.Col
	}
	return out
}

// selectDiverse is SelectDiverseWeightedColors keeping each pick's weight.
func selectDiverse(cands []weightedColor, k int) []weightedColor {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	type item struct {
		weightedColor
		lab [3]float64
	}
	items := make([]item, 0, len(cands))
	maxW := 0.0
	for _, c := range cands {
		col := c.Col.Clamped()
		l, a, b := col.Lab()
		w := max(c.Weight, 1e-6)
		maxW = max(maxW, w)
		items = append(items, item{weightedColor{Col: col, Weight: w}, [3]float64{l, a, b}})
	}
	k = min(k, len(items))

	picked := make([]int, 0, k)
	taken := make([]bool, len(items))

	heaviest := 0
	for i := 1; i < len(items); i++ {
		if items[i].Weight > items[heaviest].Weight {
			heaviest = i
		}
	}
	picked = append(picked, heaviest)
	taken[heaviest] = true

	for len(picked) < k {
		bestIdx := -1
		bestScore := -1.0
		for i := range items {
			if taken[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, s := range picked {
				d0 := items[i].lab[0] - items[s].lab[0]
				d1 := items[i].lab[1] - items[s].lab[1]
				d2 := items[i].lab[2] - items[s].lab[2]
				minD2 = min(minD2, d0*d0+d1*d1+d2*d2)
			}
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(items[i].Weight/maxW))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		taken[bestIdx] = true
		picked = append(picked, bestIdx)
	}

	out := make([]weightedColor, len(picked))
	for i, idx := range picked {
		out[i] = items[idx].weightedColor
	}
	return out
}
