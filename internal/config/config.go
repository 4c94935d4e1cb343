// Package config holds the settings of a segmenter run.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"segmenter/internal/imageproc"
	"segmenter/internal/kmeans"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultClusters is the number of colors when none is given.
const DefaultClusters = 2

// Config is loaded from a TOML file and then overridden by flags.
type Config struct {
	Clusters      int     `toml:"clusters"`
	MaxIterations int     `toml:"max_iterations"`
	Threshold     float64 `toml:"threshold"`
	// Seed of the random stream; zero picks one from the clock.
	Seed uint64 `toml:"seed"`
	// Normalize scales channels to [0,1] before clustering.
	Normalize bool   `toml:"normalize"`
	Quality   int    `toml:"quality"`
	Format    string `toml:"format"`
	OutputDir string `toml:"output_dir"`
	Palette   bool   `toml:"palette"`
	Workers   int    `toml:"workers"`
	Log       Log    `toml:"log"`
}

// Log configures the logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the settings of a plain `segmenter image.jpg` run.
func Default() Config {
	return Config{
		Clusters:      DefaultClusters,
		MaxIterations: kmeans.DefaultMaxIterations,
		Threshold:     kmeans.DefaultThreshold,
		Quality:       imageproc.DefaultQuality,
		Format:        imageproc.DefaultExt,
		Workers:       1,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("error reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("%w: unknown keys %v in %s", ErrInvalidConfig, undecoded, path)
	}
	return cfg, nil
}

// Validate checks ranges and normalizes the output format.
func (c *Config) Validate() error {
	if c.Format != "" && !strings.HasPrefix(c.Format, ".") {
		c.Format = "." + c.Format
	}
	c.Format = strings.ToLower(c.Format)

	switch {
	case c.Clusters < 1:
		return fmt.Errorf("%w: clusters must be >= 1, got %d", ErrInvalidConfig, c.Clusters)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", ErrInvalidConfig, c.MaxIterations)
	case c.Threshold < 0 || math.IsNaN(c.Threshold):
		return fmt.Errorf("%w: threshold must be >= 0, got %v", ErrInvalidConfig, c.Threshold)
	case c.Quality < 1 || c.Quality > 100:
		return fmt.Errorf("%w: quality must be in [1,100], got %d", ErrInvalidConfig, c.Quality)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	case c.Format != "" && !imageproc.SupportedExt(c.Format):
		return fmt.Errorf("%w: unsupported output format %q", ErrInvalidConfig, c.Format)
	}
	return nil
}

// Scale is the factor applied to 8-bit channel values to build features.
func (c Config) Scale() float64 {
	if c.Normalize {
		return 1.0 / 255
	}
	return 1
}

// ResolveSeed returns the configured seed, or one derived from now when unset.
func (c Config) ResolveSeed(now time.Time) uint64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return uint64(now.UnixNano())
}
