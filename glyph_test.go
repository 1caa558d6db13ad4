package watermark

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font/basicfont"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"(c) Jane", "© Jane"},
		{"(C) 2024 (c)", "© 2024 ©"},
		{"no mark", "no mark"},
		{"(c", "(c"},
		{"© kept", "© kept"},
	}
	for _, tt := range tests {
		if got := normalizeText(tt.in); got != tt.want {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFontSizeFor(t *testing.T) {
	tests := []struct {
		canvas image.Point
		want   int
	}{
		{image.Pt(1000, 800), 32},
		{image.Pt(800, 1000), 32},
		{image.Pt(100, 100), 4},
		{image.Pt(24, 24), 0},
	}
	for _, tt := range tests {
		if got := fontSizeFor(tt.canvas); got != tt.want {
			t.Errorf("fontSizeFor(%v) = %d, want %d", tt.canvas, got, tt.want)
		}
	}
}

func TestNewFaceFallback(t *testing.T) {
	f, err := loadFont("")
	if err != nil {
		t.Fatalf("embedded font: %v", err)
	}
	if face, fallback := newFace(f, 24); fallback || face == basicfont.Face7x13 {
		t.Error("embedded font at size 24 should not fall back")
	}
	if face, fallback := newFace(f, 0); !fallback || face != basicfont.Face7x13 {
		t.Error("size 0 should use the bitmap face")
	}
	if _, fallback := newFace(nil, 24); !fallback {
		t.Error("nil font should use the bitmap face")
	}
}

func TestLoadFontErrors(t *testing.T) {
	if _, err := loadFont("testdata/missing.ttf"); err == nil {
		t.Error("missing font file should fail")
	}
	path := writeFile(t, "garbage.ttf", "not a font")
	if _, err := loadFont(path); err == nil {
		t.Error("garbage font file should fail")
	}
}

func TestDrawTextStaysInInkBox(t *testing.T) {
	f, err := loadFont("")
	if err != nil {
		t.Fatal(err)
	}
	face, _ := newFace(f, 28)
	defer face.Close()

	text := normalizeText("(c) Ink")
	m := measureText(face, text)
	if m.Width <= 0 || m.Height <= 0 {
		t.Fatalf("empty metrics %+v", m)
	}

	at := image.Pt(17, 23)
	dst := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	drawText(dst, face, text, m, at, color.NRGBA{255, 255, 255, 255})

	box := image.Rectangle{Min: at, Max: at.Add(m.Size())}
	var ink image.Rectangle
	for y := range dst.Rect.Dy() {
		for x := range dst.Rect.Dx() {
			if dst.NRGBAAt(x, y).A == 0 {
				continue
			}
			p := image.Pt(x, y)
			if !p.In(box.Inset(-1)) {
				t.Fatalf("ink at %v outside box %v", p, box)
			}
			ink = ink.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
		}
	}
	if ink.Empty() {
		t.Fatal("nothing drawn")
	}
	// Anti-aliasing may leave the outermost row or column blank.
	if ink.Min.X-box.Min.X > 2 || ink.Min.Y-box.Min.Y > 2 || box.Max.X-ink.Max.X > 2 || box.Max.Y-ink.Max.Y > 2 {
		t.Errorf("ink %v does not fill box %v", ink, box)
	}
}

func TestMeasureBitmapFace(t *testing.T) {
	m := measureText(basicfont.Face7x13, "abc")
	// Two 7px advances plus one 6px glyph box.
	if m.Width != 20 {
		t.Errorf("width = %d, want 20", m.Width)
	}
	if m.Height != 13 {
		t.Errorf("height = %d, want 13", m.Height)
	}
}
