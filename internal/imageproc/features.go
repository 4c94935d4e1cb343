package imageproc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"

	"segmenter/internal/kmeans"
)

// Channels is the feature width of a pixel: red, green, blue.
const Channels = 3

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("imageproc: image has no pixels")

// pixelIndex maps (x, y) to a feature row. Pixels are laid out column by
// column, so row x*height+y holds pixel (x, y).
func pixelIndex(x, y, height int) int {
	return x*height + y
}

// FeatureMatrix converts img into a (width*height)×3 matrix of 8-bit channel
// values multiplied by scale.
func FeatureMatrix(img image.Image, scale float64) (*mat.Dense, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}

	data := make([]float64, width*height*Channels)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := pixelIndex(x, y, height) * Channels
			data[i] = float64(c.R) * scale
			data[i+1] = float64(c.G) * scale
			data[i+2] = float64(c.B) * scale
		}
	}
	return mat.NewDense(width*height, Channels, data), nil
}

// Reconstruct paints every pixel with the centroid of the cluster it was
// assigned to. Centroid values are divided by scale before conversion.
func Reconstruct(width, height int, centroids mat.Matrix, assignment kmeans.Assignment, scale float64) (*image.RGBA, error) {
	dims, k := centroids.Dims()
	switch {
	case width <= 0 || height <= 0:
		return nil, ErrEmptyImage
	case dims != Channels:
		return nil, fmt.Errorf("centroids have %d channels, want %d", dims, Channels)
	case len(assignment) != k:
		return nil, fmt.Errorf("assignment has %d clusters, centroids have %d", len(assignment), k)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	total := width * height
	for cluster, rows := range assignment {
		c := CentroidColor(centroids, cluster, scale)
		for _, idx := range rows {
			if idx < 0 || idx >= total {
				return nil, fmt.Errorf("pixel index %d out of range for %dx%d image", idx, width, height)
			}
			img.SetRGBA(idx/height, idx%height, c)
		}
	}
	return img, nil
}

// CentroidColor returns column k of centroids as an opaque color.
func CentroidColor(centroids mat.Matrix, k int, scale float64) color.RGBA {
	return color.RGBA{
		R: toUint8(centroids.At(0, k) / scale),
		G: toUint8(centroids.At(1, k) / scale),
		B: toUint8(centroids.At(2, k) / scale),
		A: 0xff,
	}
}

// toUint8 truncates toward zero and saturates; NaN maps to 0.
func toUint8(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(v)
}
