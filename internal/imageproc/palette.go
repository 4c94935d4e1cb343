package imageproc

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"

	"segmenter/internal/kmeans"
)

// PaletteColor describes one cluster of a quantized image.
type PaletteColor struct {
	Cluster    int      `json:"cluster"`
	RGB        [3]uint8 `json:"rgb"`
	Hex        string   `json:"hex"`
	Pixels     int      `json:"pixels"`
	Proportion float64  `json:"proportion"`
	Hue        float64  `json:"hue"`
	Saturation float64  `json:"saturation"`
	Lightness  float64  `json:"lightness"`
}

// PaletteAnalysis lists the clusters ordered by proportion, largest first.
type PaletteAnalysis struct {
	Colors []PaletteColor `json:"colors"`
}

// AnalyzePalette summarizes the output colors of a clustering run.
// Clusters that ended up empty are reported with zero pixels.
func AnalyzePalette(centroids mat.Matrix, assignment kmeans.Assignment, scale float64) PaletteAnalysis {
	total := 0
	for _, rows := range assignment {
		total += len(rows)
	}

	colors := make([]PaletteColor, len(assignment))
	for k, rows := range assignment {
		c := CentroidColor(centroids, k, scale)
		col := colorful.Color{
			R: float64(c.R) / 255.0,
			G: float64(c.G) / 255.0,
			B: float64(c.B) / 255.0,
		}
		h, s, l := col.Hsl()

		var proportion float64
		if total > 0 {
			proportion = float64(len(rows)) / float64(total)
		}
		colors[k] = PaletteColor{
			Cluster:    k,
			RGB:        [3]uint8{c.R, c.G, c.B},
			Hex:        col.Hex(),
			Pixels:     len(rows),
			Proportion: proportion,
			Hue:        h,
			Saturation: s,
			Lightness:  l,
		}
	}

	// Stable so equal proportions keep cluster order
	sort.SliceStable(colors, func(i, j int) bool {
		return colors[i].Proportion > colors[j].Proportion
	})
	return PaletteAnalysis{Colors: colors}
}
