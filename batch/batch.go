// Package batch watermarks every image of a directory with a bounded pool
// of workers. One failing file never stops the others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/setanarut/watermark"
	"github.com/setanarut/watermark/utils"
	"golang.org/x/sync/errgroup"
)

// Extensions picked up by FindImages.
var Extensions = []string{".png", ".jpg", ".jpeg", ".webp"}

type Options struct {
	// Workers bounds concurrency. Zero means GOMAXPROCS.
	Workers int
	// Seed makes placements reproducible. Zero draws a random seed, which is logged.
	Seed uint64
	// JPEGQuality is passed to the encoder.
	JPEGQuality int
	Logger      *zerolog.Logger
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Input    string
	Output   string
	Overlaps int
	// LogoErr and MetadataErr are soft: the output was still written.
	LogoErr     error
	MetadataErr error
	Err         error
}

func (r FileResult) OK() bool {
	return r.Err == nil
}

type Summary struct {
	Results   []FileResult
	Succeeded int
	Failed    int
	Seed      uint64
}

// FindImages lists the supported images directly inside dir, sorted by name.
func FindImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// Run watermarks every image in inDir into outDir. The returned error is
// only for problems with the directories themselves or cancellation;
// per-file failures are reported in the Summary.
func Run(ctx context.Context, w *watermark.Watermarker, inDir, outDir string, opts Options) (*Summary, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	files, err := FindImages(inDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list input folder: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log.Info().Int("files", len(files)).Int("workers", workers).Uint64("seed", seed).Str("out", outDir).Msg("batch started")

	sum := &Summary{Results: make([]FileResult, len(files)), Seed: seed}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				sum.Results[i] = FileResult{Input: in, Err: err}
				return err
			}
			// Per-file stream: results do not depend on scheduling order.
			src := rand.NewPCG(seed, uint64(i))
			sum.Results[i] = processFile(w, in, outDir, src, opts.JPEGQuality)
			return nil
		})
	}
	waitErr := g.Wait()

	for i := range sum.Results {
		r := &sum.Results[i]
		if r.Input == "" {
			r.Input = files[i]
			r.Err = context.Cause(gctx)
		}
		l := log.With().Str("file", filepath.Base(r.Input)).Logger()
		switch {
		case r.OK():
			sum.Succeeded++
			ev := l.Info()
			if r.Overlaps > 0 || r.LogoErr != nil || r.MetadataErr != nil {
				ev = l.Warn()
			}
			ev.Str("output", filepath.Base(r.Output)).
				Int("overlaps", r.Overlaps).
				AnErr("logo", r.LogoErr).
				AnErr("metadata", r.MetadataErr).
				Msg("saved")
		default:
			sum.Failed++
			l.Error().Err(r.Err).Msg("failed")
		}
	}
	log.Info().Int("succeeded", sum.Succeeded).Int("failed", sum.Failed).Msg("batch complete")

	if waitErr != nil {
		return sum, waitErr
	}
	return sum, ctx.Err()
}

func processFile(w *watermark.Watermarker, in, outDir string, src rand.Source, quality int) FileResult {
	r := FileResult{Input: in}
	img, err := utils.ReadImage(in)
	if err != nil {
		r.Err = err
		return r
	}
	res, err := w.Apply(img, src)
	if err != nil {
		r.Err = fmt.Errorf("watermark %s: %w", filepath.Base(in), err)
		return r
	}
	r.Overlaps = res.Placement.Overlaps
	r.LogoErr = res.LogoErr

	out := filepath.Join(outDir, utils.OutputName(in))
	err = utils.SaveImage(res.Image, out, utils.SaveOptions{
		Copyright:   w.Config().Metadata,
		JPEGQuality: quality,
	})
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrMetadata):
		r.MetadataErr = err
	default:
		r.Err = err
		return r
	}
	r.Output = out
	return r
}
