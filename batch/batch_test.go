package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/setanarut/watermark"
)

func writeImage(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

func newWatermarker(t *testing.T) *watermark.Watermarker {
	t.Helper()
	cfg := watermark.DefaultConfig()
	cfg.Text = "(c) Test"
	cfg.Count = 3
	w, err := watermark.New(cfg, watermark.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// fixture creates two PNGs, one JPEG, one corrupt PNG, a text file and a
// directory named like an image.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 240, 160, color.NRGBA{20, 40, 60, 255})
	writeImage(t, filepath.Join(dir, "b.PNG"), 160, 240, color.NRGBA{200, 200, 200, 255})
	writeImage(t, filepath.Join(dir, "c.jpg"), 300, 200, color.NRGBA{90, 10, 10, 255})
	if err := os.WriteFile(filepath.Join(dir, "d.png"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestFindImages(t *testing.T) {
	dir := fixture(t)
	files, err := FindImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	want := []string{"a.png", "b.PNG", "c.jpg", "d.png"}
	if !slices.Equal(names, want) {
		t.Errorf("FindImages = %v, want %v", names, want)
	}

	if _, err := FindImages(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing folder should fail")
	}
}

func TestRun(t *testing.T) {
	in := fixture(t)
	out := filepath.Join(t.TempDir(), "marked")

	sum, err := Run(context.Background(), newWatermarker(t), in, out, Options{Workers: 2, Seed: 11})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 3 || sum.Failed != 1 {
		t.Fatalf("succeeded %d failed %d, want 3 and 1", sum.Succeeded, sum.Failed)
	}
	if sum.Seed != 11 {
		t.Errorf("seed = %d", sum.Seed)
	}
	for _, r := range sum.Results {
		switch filepath.Base(r.Input) {
		case "d.png":
			if r.OK() {
				t.Error("corrupt file reported as success")
			}
		default:
			if !r.OK() {
				t.Errorf("%s failed: %v", r.Input, r.Err)
				continue
			}
			src, err := imaging.Open(r.Input)
			if err != nil {
				t.Fatal(err)
			}
			dst, err := imaging.Open(r.Output)
			if err != nil {
				t.Fatalf("output %s unreadable: %v", r.Output, err)
			}
			if src.Bounds().Size() != dst.Bounds().Size() {
				t.Errorf("%s: size %v -> %v", r.Input, src.Bounds().Size(), dst.Bounds().Size())
			}
		}
	}
	for _, name := range []string{"a_watermarked.png", "b_watermarked.PNG", "c_watermarked.jpg"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
}

func TestRunReproducible(t *testing.T) {
	in := fixture(t)
	w := newWatermarker(t)
	outA := filepath.Join(t.TempDir(), "a")
	outB := filepath.Join(t.TempDir(), "b")

	if _, err := Run(context.Background(), w, in, outA, Options{Workers: 1, Seed: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(context.Background(), w, in, outB, Options{Workers: 4, Seed: 5}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a_watermarked.png", "b_watermarked.PNG", "c_watermarked.jpg"} {
		a, errA := os.ReadFile(filepath.Join(outA, name))
		b, errB := os.ReadFile(filepath.Join(outB, name))
		if errA != nil || errB != nil {
			t.Fatalf("%s: %v %v", name, errA, errB)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between runs with the same seed", name)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	in := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := Run(ctx, newWatermarker(t), in, t.TempDir(), Options{Seed: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if sum == nil {
		t.Fatal("nil summary")
	}
	if sum.Succeeded != 0 || sum.Failed != len(sum.Results) || len(sum.Results) != 4 {
		t.Errorf("summary = %d ok, %d failed of %d", sum.Succeeded, sum.Failed, len(sum.Results))
	}
	for _, r := range sum.Results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s: err = %v", r.Input, r.Err)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	_, err := Run(context.Background(), newWatermarker(t), filepath.Join(t.TempDir(), "nope"), t.TempDir(), Options{})
	if err == nil {
		t.Error("missing input folder should fail")
	}
}

func TestRunSoftFailures(t *testing.T) {
	in := t.TempDir()
	writeImage(t, filepath.Join(in, "only.png"), 120, 90, color.NRGBA{0, 0, 0, 255})
	cfg := watermark.DefaultConfig()
	cfg.Text = "x"
	cfg.Metadata = "© Someone"
	cfg.LogoPath = filepath.Join(in, "missing-logo.png")
	w, err := watermark.New(cfg, watermark.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := Run(context.Background(), w, in, t.TempDir(), Options{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Succeeded != 1 {
		t.Fatalf("results: %+v", sum.Results)
	}
	r := sum.Results[0]
	if r.MetadataErr != nil {
		t.Errorf("PNG metadata should embed: %v", r.MetadataErr)
	}
	if !errors.Is(r.LogoErr, watermark.ErrLogo) {
		t.Errorf("LogoErr = %v, want ErrLogo", r.LogoErr)
	}
}
