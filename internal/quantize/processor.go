// Package quantize runs the decode, cluster, reconstruct and encode pipeline
// for one image at a time.
package quantize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"segmenter/internal/config"
	"segmenter/internal/imageproc"
	"segmenter/internal/kmeans"
	"segmenter/internal/worker"
)

// ErrOutputCollision is returned when two inputs map to the same output path.
var ErrOutputCollision = errors.New("output path collision")

// Job is one input image and where its result goes.
type Job struct {
	Input  string
	Output string
	Seed   uint64
}

// Report stores the outcome of a processed image.
type Report struct {
	Input      string                   `json:"input"`
	Output     string                   `json:"output"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	Clusters   int                      `json:"clusters"`
	Seed       uint64                   `json:"seed"`
	Iterations int                      `json:"iterations"`
	State      string                   `json:"state"`
	TotalError float64                  `json:"total_error"`
	Elapsed    float64                  `json:"elapsed_seconds"`
	Palette    []imageproc.PaletteColor `json:"palette"`
}

// Processor quantizes images according to a validated config.
type Processor struct {
	cfg    config.Config
	logger *zap.Logger
}

// NewProcessor creates a processor. A nil logger discards output.
func NewProcessor(cfg config.Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{cfg: cfg, logger: logger}
}

// Jobs builds one job per input. Job i uses seed+i so every image gets its
// own reproducible random stream regardless of scheduling. Two inputs that
// would write the same output file are rejected with ErrOutputCollision.
func (p *Processor) Jobs(inputs []string, seed uint64) ([]Job, error) {
	jobs := make([]Job, len(inputs))
	owners := make(map[string]string, len(inputs))
	for i, in := range inputs {
		out := imageproc.SegmentedName(in, p.cfg.OutputDir, p.cfg.Format)
		key := filepath.Clean(out)
		if prev, ok := owners[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s both write %s", ErrOutputCollision, prev, in, out)
		}
		owners[key] = in
		jobs[i] = Job{
			Input:  in,
			Output: out,
			Seed:   seed + uint64(i),
		}
	}
	return jobs, nil
}

// ProcessAll runs every job on the configured number of workers.
func (p *Processor) ProcessAll(ctx context.Context, jobs []Job) ([]*Report, error) {
	return worker.Run(ctx, p.cfg.Workers, jobs, p.Process)
}

// Process quantizes a single image and writes the result.
func (p *Processor) Process(ctx context.Context, job Job) (*Report, error) {
	start := time.Now()
	logger := p.logger.With(zap.String("input", job.Input))

	img, format, err := imageproc.Load(job.Input)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	logger.Info("loaded image",
		zap.String("format", format),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
	)

	scale := p.cfg.Scale()
	features, err := imageproc.FeatureMatrix(img, scale)
	if err != nil {
		return nil, fmt.Errorf("error building features for %s: %w", job.Input, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := kmeans.Run(kmeans.Config{
		Clusters:      p.cfg.Clusters,
		MaxIterations: p.cfg.MaxIterations,
		Threshold:     p.cfg.Threshold,
		Rand:          kmeans.NewRand(job.Seed),
		Logger:        logger,
	}, features)
	if err != nil {
		return nil, fmt.Errorf("error clustering %s: %w", job.Input, err)
	}
	logger.Info("clustering finished",
		zap.Stringer("state", res.State),
		zap.Int("iterations", res.Iterations),
		zap.Float64("total_error", res.Error),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := imageproc.Reconstruct(bounds.Dx(), bounds.Dy(), res.Centroids, res.Assignment, scale)
	if err != nil {
		return nil, fmt.Errorf("error reconstructing %s: %w", job.Input, err)
	}
	if dir := filepath.Dir(job.Output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating output directory: %w", err)
		}
	}
	if err := imageproc.Save(job.Output, out, p.cfg.Quality); err != nil {
		return nil, err
	}

	report := &Report{
		Input:      job.Input,
		Output:     job.Output,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Clusters:   p.cfg.Clusters,
		Seed:       job.Seed,
		Iterations: res.Iterations,
		State:      res.State.String(),
		TotalError: res.Error,
		Palette:    imageproc.AnalyzePalette(res.Centroids, res.Assignment, scale).Colors,
		Elapsed:    time.Since(start).Seconds(),
	}

	if p.cfg.Palette {
		if err := writeReport(PaletteName(job.Output), report); err != nil {
			return nil, err
		}
	}

	logger.Info("saved segmented image",
		zap.String("output", job.Output),
		zap.Float64("elapsed_seconds", report.Elapsed),
	)
	return report, nil
}

// PaletteName returns the JSON report path that sits next to output.
func PaletteName(output string) string {
	return filepath.Join(filepath.Dir(output), imageproc.Stem(output)+"_palette.json")
}

func writeReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling palette report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing palette report: %w", err)
	}
	return nil
}
