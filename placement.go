package watermark

import (
	"image"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MaxPlacementAttempts is the number of candidates tried per instance
	// before the last one is accepted despite overlapping.
	MaxPlacementAttempts = 50

	// Bounding boxes are inflated by this share of the larger glyph side.
	placementPaddingRatio = 0.2
)

// Placement is the planner output: exactly the requested number of
// top-left glyph origins, in draw order.
type Placement struct {
	Positions []image.Point
	// Overlaps counts positions accepted after the retry budget ran out.
	Overlaps int
}

// Planner scatters glyph boxes over a canvas with a centre-weighted
// Beta(2,2) distribution. A Planner owns its random source and must not be
// shared between goroutines.
type Planner struct {
	dist distuv.Beta
}

// NewPlanner returns a planner drawing from src.
func NewPlanner(src rand.Source) *Planner {
	return &Planner{dist: distuv.Beta{Alpha: 2, Beta: 2, Src: src}}
}

// Plan places count glyphs of size glyph on a canvas of size canvas.
// When the glyph does not fit, the free range collapses to zero and every
// instance lands at (0,0).
func (p *Planner) Plan(canvas, glyph image.Point, count int) Placement {
	if count <= 0 {
		return Placement{}
	}
	spanX := max(canvas.X-glyph.X, 0)
	spanY := max(canvas.Y-glyph.Y, 0)
	pad := placementPadding(glyph)

	out := Placement{Positions: make([]image.Point, 0, count)}
	accepted := make([]image.Rectangle, 0, count)

	for range count {
		var pos image.Point
		var box image.Rectangle
		placed := false
		for range MaxPlacementAttempts {
			xr := p.dist.Rand()
			yr := p.dist.Rand()
			pos = image.Pt(int(math.Floor(xr*float64(spanX))), int(math.Floor(yr*float64(spanY))))
			box = placementBox(pos, glyph, pad)
			if !overlapsAny(box, accepted) {
				placed = true
				break
			}
		}
		if !placed {
			out.Overlaps++
		}
		out.Positions = append(out.Positions, pos)
		accepted = append(accepted, box)
	}
	return out
}

func placementPadding(glyph image.Point) int {
	return int(math.Round(placementPaddingRatio * float64(max(glyph.X, glyph.Y))))
}

// placementBox is the padded rectangle used for overlap tests only.
func placementBox(pos, glyph image.Point, pad int) image.Rectangle {
	return image.Rect(pos.X-pad, pos.Y-pad, pos.X+glyph.X+pad, pos.Y+glyph.Y+pad)
}

// boxesOverlap treats touching edges as overlapping, unlike image.Rectangle.Overlaps.
func boxesOverlap(a, b image.Rectangle) bool {
	return !(a.Max.X < b.Min.X || b.Max.X < a.Min.X || a.Max.Y < b.Min.Y || b.Max.Y < a.Min.Y)
}

func overlapsAny(box image.Rectangle, boxes []image.Rectangle) bool {
	for _, b := range boxes {
		if boxesOverlap(box, b) {
			return true
		}
	}
	return false
}
