package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"segmenter/internal/config"
)

const defaultInput = "image.jpg"

type options struct {
	cfg    config.Config
	inputs []string
	// kFallback is set when a positional cluster count could not be parsed.
	kFallback string
}

// parseArgs resolves defaults, then the -config file, then explicit flags,
// then the positional `[image] [k]` pair.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("segmenter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: segmenter [flags] [image] [k]\n\n")
		fs.PrintDefaults()
	}

	def := config.Default()
	configPath := fs.String("config", "", "Path to a TOML config file")
	clusters := fs.Int("k", def.Clusters, "Number of colors")
	maxIter := fs.Int("max-iter", def.MaxIterations, "Maximum k-means iterations")
	threshold := fs.Float64("threshold", def.Threshold, "Relative error improvement that counts as converged")
	seed := fs.Uint64("seed", def.Seed, "Random seed (0 picks one from the clock)")
	normalize := fs.Bool("normalize", def.Normalize, "Scale channels to [0,1] before clustering")
	quality := fs.Int("quality", def.Quality, "JPEG output quality")
	format := fs.String("format", def.Format, "Output format: jpg, png, bmp or tiff")
	outDir := fs.String("out-dir", def.OutputDir, "Directory for output images (default: working directory)")
	palette := fs.Bool("palette", def.Palette, "Write a JSON palette report next to each output")
	workers := fs.Int("workers", def.Workers, "Images processed concurrently")
	glob := fs.String("glob", "", "Process every image matching this pattern")
	logLevel := fs.String("log-level", def.Log.Level, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", def.Log.Format, "Log encoding: console or json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := def
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "k":
			cfg.Clusters = *clusters
		case "max-iter":
			cfg.MaxIterations = *maxIter
		case "threshold":
			cfg.Threshold = *threshold
		case "seed":
			cfg.Seed = *seed
		case "normalize":
			cfg.Normalize = *normalize
		case "quality":
			cfg.Quality = *quality
		case "format":
			cfg.Format = *format
		case "out-dir":
			cfg.OutputDir = *outDir
		case "palette":
			cfg.Palette = *palette
		case "workers":
			cfg.Workers = *workers
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})

	opts := &options{cfg: cfg}
	rest := fs.Args()
	if len(rest) > 2 {
		return nil, fmt.Errorf("unexpected argument %q", rest[2])
	}
	if len(rest) == 2 {
		// unsigned: negative counts fall back like any other non-number
		k, err := strconv.ParseUint(rest[1], 10, strconv.IntSize-1)
		if err != nil {
			opts.kFallback = rest[1]
			k = config.DefaultClusters
		}
		opts.cfg.Clusters = int(k)
	}

	if *glob != "" {
		matches, err := filepath.Glob(*glob)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", *glob, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no images match %q", *glob)
		}
		opts.inputs = append(opts.inputs, matches...)
	}
	if len(rest) > 0 {
		opts.inputs = append([]string{rest[0]}, opts.inputs...)
	}
	if len(opts.inputs) == 0 {
		opts.inputs = []string{defaultInput}
	}
	opts.inputs = dedupe(opts.inputs)

	if err := opts.cfg.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// dedupe drops repeated inputs, comparing cleaned paths, and keeps first-seen order.
func dedupe(inputs []string) []string {
	seen := make(map[string]bool, len(inputs))
	out := inputs[:0:0]
	for _, in := range inputs {
		key := filepath.Clean(in)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, in)
	}
	return out
}

func isHelp(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
