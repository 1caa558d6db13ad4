package watermark

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"testing"
)

func TestBlendPixel(t *testing.T) {
	tests := []struct {
		name     string
		dst, src color.NRGBA
		want     color.NRGBA
	}{
		{"transparent source keeps destination", color.NRGBA{1, 2, 3, 200}, color.NRGBA{255, 255, 255, 0}, color.NRGBA{1, 2, 3, 200}},
		{"opaque source replaces", color.NRGBA{1, 2, 3, 200}, color.NRGBA{9, 8, 7, 255}, color.NRGBA{9, 8, 7, 255}},
		{"half red over opaque blue", color.NRGBA{0, 0, 255, 255}, color.NRGBA{255, 0, 0, 128}, color.NRGBA{128, 0, 127, 255}},
		{"onto transparent keeps source", color.NRGBA{0, 0, 0, 0}, color.NRGBA{10, 20, 30, 100}, color.NRGBA{10, 20, 30, 100}},
		{"white 20% over grey", color.NRGBA{100, 100, 100, 255}, color.NRGBA{255, 255, 255, 51}, color.NRGBA{131, 131, 131, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := []uint8{tt.dst.R, tt.dst.G, tt.dst.B, tt.dst.A}
			s := []uint8{tt.src.R, tt.src.G, tt.src.B, tt.src.A}
			blendPixel(d, s)
			got := color.NRGBA{d[0], d[1], d[2], d[3]}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// overFloat is the textbook operator on [0,1] values.
func overFloat(d, s color.NRGBA) (c [3]float64, a float64) {
	sa, da := float64(s.A)/255, float64(d.A)/255
	a = sa + da*(1-sa)
	if a == 0 {
		return c, 0
	}
	sc := [3]float64{float64(s.R), float64(s.G), float64(s.B)}
	dc := [3]float64{float64(d.R), float64(d.G), float64(d.B)}
	for i := range 3 {
		c[i] = (sc[i]*sa + dc[i]*da*(1-sa)) / a
	}
	return c, a * 255
}

func TestBlendPixelMatchesOverOperator(t *testing.T) {
	r := rand.New(rand.NewPCG(21, 4))
	for range 5000 {
		var d, s [4]uint8
		for i := range 4 {
			d[i] = uint8(r.IntN(256))
			s[i] = uint8(r.IntN(256))
		}
		dc := color.NRGBA{d[0], d[1], d[2], d[3]}
		sc := color.NRGBA{s[0], s[1], s[2], s[3]}
		if s[3] == 0 {
			continue
		}
		wantC, wantA := overFloat(dc, sc)
		blendPixel(d[:], s[:])
		if math.Abs(float64(d[3])-wantA) > 0.5+1e-9 {
			t.Fatalf("%v over %v: alpha %d, want %.2f", sc, dc, d[3], wantA)
		}
		for i := range 3 {
			if math.Abs(float64(d[i])-wantC[i]) > 0.5+1e-9 {
				t.Fatalf("%v over %v: channel %d = %d, want %.2f", sc, dc, i, d[i], wantC[i])
			}
		}
	}
}

func TestBlendOverClipsAndOffsets(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	blendOver(dst, src, image.Pt(-1, 2))

	for y := range 4 {
		for x := range 4 {
			want := uint8(0)
			if x <= 1 && y >= 2 {
				want = 255
			}
			if got := dst.NRGBAAt(x, y).A; got != want {
				t.Errorf("alpha at (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}

	// Entirely outside: no change, no panic.
	blendOver(dst, src, image.Pt(10, 10))
	blendOver(dst, src, image.Pt(-3, -3))
}

func TestScaleAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{10, 20, 30, 200})
	src.SetNRGBA(1, 0, color.NRGBA{40, 50, 60, 0})
	half := func(a uint8) uint8 { return a / 2 }

	kept := scaleAlpha(src, half, nil)
	if got := kept.NRGBAAt(0, 0); got != (color.NRGBA{10, 20, 30, 100}) {
		t.Errorf("untinted pixel = %v", got)
	}
	if got := kept.NRGBAAt(1, 0); got != (color.NRGBA{}) {
		t.Errorf("transparent pixel = %v, want zero", got)
	}

	tint := [3]uint8{255, 255, 255}
	tinted := scaleAlpha(src, half, &tint)
	if got := tinted.NRGBAAt(0, 0); got != (color.NRGBA{255, 255, 255, 100}) {
		t.Errorf("tinted pixel = %v", got)
	}
}
