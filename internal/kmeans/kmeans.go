// Package kmeans clusters the rows of a feature matrix with Lloyd's algorithm.
//
// Features are an N×D matrix (one row per data point) and centroids are a
// D×K matrix (one centroid per column). All randomness comes from an
// explicit Rand so a fixed seed reproduces a run bit for bit.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidArgument is returned when inputs are rejected before any clustering work starts.
var ErrInvalidArgument = errors.New("kmeans: invalid argument")

// Rand is the random stream used for centroid seeding.
type Rand interface {
	Float64() float64
}

// NewRand returns a PCG-backed generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Assignment holds, for every cluster, the indices of the feature rows assigned to it.
type Assignment [][]int

// Sizes returns the number of rows in each cluster.
func (a Assignment) Sizes() []int {
	sizes := make([]int, len(a))
	for k, group := range a {
		sizes[k] = len(group)
	}
	return sizes
}

// Empty returns how many clusters have no rows.
func (a Assignment) Empty() int {
	n := 0
	for _, group := range a {
		if len(group) == 0 {
			n++
		}
	}
	return n
}

// InitializeCentroids draws a dims×clusters matrix with entries uniform in [0, 1).
func InitializeCentroids(rng Rand, dims, clusters int) (*mat.Dense, error) {
	if dims < 1 || clusters < 1 {
		return nil, fmt.Errorf("%w: centroid matrix must be at least 1x1, got %dx%d", ErrInvalidArgument, dims, clusters)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidArgument)
	}

	data := make([]float64, dims*clusters)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(dims, clusters, data), nil
}

// Assign puts every feature row into the cluster of its nearest centroid and
// returns the summed squared distance. On an exact tie the lowest centroid
// index wins.
func Assign(centroids, features mat.Matrix) (Assignment, float64, error) {
	n, d := features.Dims()
	cd, k := centroids.Dims()
	switch {
	case k == 0:
		return nil, 0, fmt.Errorf("%w: no centroids", ErrInvalidArgument)
	case n == 0 || d == 0:
		return nil, 0, fmt.Errorf("%w: empty feature matrix", ErrInvalidArgument)
	case cd != d:
		return nil, 0, fmt.Errorf("%w: centroids have %d dimensions, features have %d", ErrInvalidArgument, cd, d)
	}

	cols := columns(centroids)
	assignment := make(Assignment, k)
	row := make([]float64, d)
	diff := make([]float64, d)

	var total float64
	for i := 0; i < n; i++ {
		mat.Row(row, i, features)
		best, dist := nearest(cols, row, diff)
		assignment[best] = append(assignment[best], i)
		total += dist
	}
	return assignment, total, nil
}

// Update recomputes each centroid as the mean of its rows. A cluster without
// rows gets a fresh uniform [0, 1) vector drawn from rng.
func Update(rng Rand, assignment Assignment, features mat.Matrix) (*mat.Dense, error) {
	n, d := features.Dims()
	k := len(assignment)
	switch {
	case k == 0:
		return nil, fmt.Errorf("%w: no clusters", ErrInvalidArgument)
	case n == 0 || d == 0:
		return nil, fmt.Errorf("%w: empty feature matrix", ErrInvalidArgument)
	case rng == nil:
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidArgument)
	}

	centroids := mat.NewDense(d, k, nil)
	sum := make([]float64, d)
	row := make([]float64, d)
	for j, group := range assignment {
		if len(group) == 0 {
			for r := 0; r < d; r++ {
				centroids.Set(r, j, rng.Float64())
			}
			continue
		}

		for r := range sum {
			sum[r] = 0
		}
		for _, idx := range group {
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("%w: row index %d out of range [0,%d)", ErrInvalidArgument, idx, n)
			}
			mat.Row(row, idx, features)
			floats.Add(sum, row)
		}
		count := float64(len(group))
		for r, s := range sum {
			centroids.Set(r, j, s/count)
		}
	}
	return centroids, nil
}

func columns(m mat.Matrix) [][]float64 {
	_, k := m.Dims()
	cols := make([][]float64, k)
	for j := range cols {
		cols[j] = mat.Col(nil, j, m)
	}
	return cols
}

// nearest uses a strict comparison so the first minimum is kept.
func nearest(cols [][]float64, row, diff []float64) (int, float64) {
	best := 0
	bestDist := math.Inf(1)
	for j, c := range cols {
		floats.SubTo(diff, c, row)
		if dist := floats.Dot(diff, diff); dist < bestDist {
			best, bestDist = j, dist
		}
	}
	return best, bestDist
}
