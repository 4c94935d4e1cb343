package kmeans

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultMaxIterations caps the assignment/update cycles of a run.
	DefaultMaxIterations = 100
	// DefaultThreshold stops iterating once the relative error improvement drops to 1%.
	DefaultThreshold = 0.01
)

// State is the phase of a clustering run.
type State int

const (
	Initializing State = iota
	Iterating
	Converged
	MaxIterReached
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterReached:
		return "max_iterations"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config controls a clustering run.
type Config struct {
	Clusters      int
	MaxIterations int
	// Threshold is the relative improvement at or below which the run converges.
	Threshold float64
	Rand      Rand
	Logger    *zap.Logger
}

// DefaultConfig returns a config with the default iteration cap and threshold.
func DefaultConfig(clusters int, rng Rand) Config {
	return Config{
		Clusters:      clusters,
		MaxIterations: DefaultMaxIterations,
		Threshold:     DefaultThreshold,
		Rand:          rng,
	}
}

func (c Config) validate() error {
	switch {
	case c.Clusters < 1:
		return fmt.Errorf("%w: clusters must be >= 1, got %d", ErrInvalidArgument, c.Clusters)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations must be >= 1, got %d", ErrInvalidArgument, c.MaxIterations)
	case c.Threshold < 0 || math.IsNaN(c.Threshold):
		return fmt.Errorf("%w: threshold must be >= 0, got %v", ErrInvalidArgument, c.Threshold)
	case c.Rand == nil:
		return fmt.Errorf("%w: nil random source", ErrInvalidArgument)
	}
	return nil
}

// Iteration records one assignment/update cycle.
type Iteration struct {
	Error float64
	// Empty is the number of clusters reseeded by the update that followed.
	Empty int
}

// Result is the outcome of Run.
type Result struct {
	Centroids  *mat.Dense
	Assignment Assignment
	Error      float64
	Iterations int
	State      State
	History    []Iteration
}

// Run alternates Assign and Update until the relative improvement of the
// total error falls to cfg.Threshold or cfg.MaxIterations cycles have run.
// The first cycle always runs; the improvement test starts with the second.
// A total error of exactly zero counts as converged.
func Run(cfg Config, features mat.Matrix) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n, d := features.Dims()
	if n == 0 || d == 0 {
		return nil, fmt.Errorf("%w: empty feature matrix", ErrInvalidArgument)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	res := &Result{State: Initializing}
	centroids, err := InitializeCentroids(cfg.Rand, d, cfg.Clusters)
	if err != nil {
		return nil, err
	}
	res.State = Iterating

	var (
		assignment Assignment
		totalErr   float64
		prevErr    = math.Inf(1)
	)
	for iter := 0; ; {
		if iter >= cfg.MaxIterations {
			res.State = MaxIterReached
			break
		}

		assignment, totalErr, err = Assign(centroids, features)
		if err != nil {
			return nil, err
		}
		centroids, err = Update(cfg.Rand, assignment, features)
		if err != nil {
			return nil, err
		}
		iter++

		empty := assignment.Empty()
		res.History = append(res.History, Iteration{Error: totalErr, Empty: empty})
		logger.Debug("kmeans iteration",
			zap.Int("iteration", iter),
			zap.Float64("total_error", totalErr),
			zap.Int("reseeded", empty),
		)

		if iter > 1 && converged(prevErr, totalErr, cfg.Threshold) {
			res.State = Converged
			break
		}
		prevErr = totalErr
	}

	res.Centroids = centroids
	res.Assignment = assignment
	res.Error = totalErr
	res.Iterations = len(res.History)
	logger.Debug("kmeans finished",
		zap.Stringer("state", res.State),
		zap.Int("iterations", res.Iterations),
		zap.Float64("total_error", totalErr),
	)
	return res, nil
}

// RunClustering runs with the default threshold and returns only the final
// centroids and assignment.
func RunClustering(rng Rand, clusters, maxIterations int, features mat.Matrix) (*mat.Dense, Assignment, error) {
	cfg := DefaultConfig(clusters, rng)
	cfg.MaxIterations = maxIterations
	res, err := Run(cfg, features)
	if err != nil {
		return nil, nil, err
	}
	return res.Centroids, res.Assignment, nil
}

func converged(prev, cur, threshold float64) bool {
	if cur == 0 {
		return true
	}
	return (prev-cur)/cur <= threshold
}
