// Command watermark stamps scattered text and an optional logo onto every
// image of a folder, or onto a single file.
//
// Usage:
//
//	watermark -text "(c) Jane Doe" -in designs/ -out marked/
//	watermark -config shop.yaml -in designs/ -out marked/ -workers 4
//	watermark -config shop.yaml -input art.png -output art_marked.png
//	watermark -suggest art.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/setanarut/watermark"
	"github.com/setanarut/watermark/batch"
	"github.com/setanarut/watermark/utils"
)

func main() {
	configFile := flag.String("config", "", "YAML template to start from")
	text := flag.String("text", "", "Watermark text; (c) becomes ©")
	count := flag.Int("count", 0, "Number of scattered watermarks")
	opacity := flag.Int("opacity", 0, "Text opacity percent (10-100)")
	colorMode := flag.String("color", "", "Watermark color: white, black or auto")
	logo := flag.String("logo", "", "Logo image, PNG with transparency recommended")
	logoPos := flag.String("logo-position", "", "bottom-right, bottom-left, top-right or top-left")
	logoOpacity := flag.Int("logo-opacity", 0, "Logo opacity percent (10-100)")
	metadata := flag.String("metadata", "", "Copyright text embedded in the output files")
	fontPath := flag.String("font", "", "TrueType/OpenType font file")

	inDir := flag.String("in", "", "Folder with images to watermark")
	outDir := flag.String("out", "", "Folder for watermarked images")
	input := flag.String("input", "", "Single image to watermark")
	output := flag.String("output", "", "Output path for -input")
	workers := flag.Int("workers", 0, "Parallel workers (0 = all CPUs)")
	seed := flag.Uint64("seed", 0, "Placement seed (0 = random)")
	quality := flag.Int("quality", utils.DefaultJPEGQuality, "JPEG quality")

	saveTemplate := flag.String("save-template", "", "Write the effective configuration to this YAML file")
	exportTemplate := flag.String("export-template", "", "Like -save-template but without the logo path")
	suggest := flag.String("suggest", "", "Print the suggested watermark color for an image and exit")

	debug := flag.Bool("debug", false, "Debug logging level")
	quiet := flag.Bool("quiet", false, "Only log warnings and errors")
	human := flag.Bool("human", false, "Human readable console logs")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(logLevel(*debug, *quiet))
	if *human {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if *suggest != "" {
		if err := suggestColor(*suggest); err != nil {
			log.Fatal().Err(err).Msg("suggest failed")
		}
		return
	}

	cfg := watermark.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = watermark.LoadConfig(*configFile); err != nil {
			log.Fatal().Err(err).Str("config", *configFile).Msg("cannot load template")
		}
		log.Debug().Str("config", *configFile).Msg("template loaded")
	}

	// Flags given explicitly override the template.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "text":
			cfg.Text = *text
		case "count":
			cfg.Count = *count
		case "opacity":
			cfg.TextOpacity = *opacity
		case "color":
			cfg.Color, flagErr = parseEnum(flagErr, watermark.ParseColorMode, *colorMode, cfg.Color)
		case "logo":
			cfg.LogoPath = *logo
		case "logo-position":
			cfg.LogoPosition, flagErr = parseEnum(flagErr, watermark.ParseLogoPosition, *logoPos, cfg.LogoPosition)
		case "logo-opacity":
			cfg.LogoOpacity = *logoOpacity
		case "metadata":
			cfg.Metadata = *metadata
		}
	})
	if flagErr != nil {
		log.Fatal().Err(flagErr).Msg("invalid flag")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if *saveTemplate != "" {
		if err := watermark.SaveConfig(cfg, *saveTemplate); err != nil {
			log.Fatal().Err(err).Msg("cannot save template")
		}
		log.Info().Str("template", *saveTemplate).Msg("template saved")
	}
	if *exportTemplate != "" {
		if err := watermark.ExportConfig(cfg, *exportTemplate); err != nil {
			log.Fatal().Err(err).Msg("cannot export template")
		}
		log.Info().Str("template", *exportTemplate).Msg("template exported (logo path removed for portability)")
	}

	logger := log.Logger
	w, err := watermark.New(cfg, watermark.Options{
		FontPath:     *fontPath,
		ResolveColor: utils.SuggestColorMode,
		Logger:       &logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot prepare watermark")
	}

	switch {
	case *input != "":
		if err := single(w, *input, *output, *seed, *quality); err != nil {
			log.Fatal().Err(err).Str("input", *input).Msg("failed")
		}
	case *inDir != "" && *outDir != "":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		sum, err := batch.Run(ctx, w, *inDir, *outDir, batch.Options{
			Workers:     *workers,
			Seed:        *seed,
			JPEGQuality: *quality,
			Logger:      &logger,
		})
		if err != nil {
			log.Error().Err(err).Msg("batch interrupted")
		}
		if sum != nil {
			fmt.Printf("BATCH COMPLETE: %d successful, %d failed\n", sum.Succeeded, sum.Failed)
			if sum.Failed > 0 {
				os.Exit(1)
			}
		}
	case *saveTemplate != "" || *exportTemplate != "":
	default:
		fmt.Fprintln(os.Stderr, "error: either -in and -out, or -input, is required")
		flag.Usage()
		os.Exit(2)
	}
}

// logLevel picks the global level; -debug wins over -quiet.
func logLevel(debug, quiet bool) zerolog.Level {
	switch {
	case debug:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func parseEnum[T any](prev error, parse func(string) (T, error), s string, cur T) (T, error) {
	v, err := parse(s)
	if err != nil {
		return cur, errors.Join(prev, err)
	}
	return v, prev
}

func single(w *watermark.Watermarker, input, output string, seed uint64, quality int) error {
	if output == "" {
		output = filepath.Join(filepath.Dir(input), utils.OutputName(input))
	}
	img, err := utils.ReadImage(input)
	if err != nil {
		return err
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	res, err := w.Apply(img, rand.NewPCG(seed, 0))
	if err != nil {
		return err
	}
	err = utils.SaveImage(res.Image, output, utils.SaveOptions{
		Copyright:   w.Config().Metadata,
		JPEGQuality: quality,
	})
	if errors.Is(err, utils.ErrMetadata) {
		log.Warn().Err(err).Msg("saved without metadata")
		err = nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("output", output).Uint64("seed", seed).Int("overlaps", res.Placement.Overlaps).Msg("saved")
	return nil
}

func suggestColor(path string) error {
	img, err := utils.ReadImage(path)
	if err != nil {
		return err
	}
	palette := utils.ExtractPalette(img, 5, utils.PaletteMethodKMeans)
	utils.SortPaletteByBrightness(palette)
	fmt.Printf("suggested color: %s\n", utils.SuggestColorMode(img))
	fmt.Printf("palette (dark to light): %s\n", strings.Join(utils.PaletteHex(palette), " "))
	return nil
}
