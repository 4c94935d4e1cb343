package quantize

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmenter/internal/config"
	"segmenter/internal/imageproc"
)

// writeStripes writes a w×h PNG whose left half is black and right half white.
func writeStripes(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			v := uint8(0)
			if x >= w/2 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, imageproc.Save(path, img, 0))
	return path
}

func testConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.Format = ".png"
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Normalize = true
	cfg.Seed = 17
	return cfg
}

func distinctColors(t *testing.T, path string) map[color.RGBA]int {
	t.Helper()
	img, _, err := imageproc.Load(path)
	require.NoError(t, err)

	seen := map[color.RGBA]int{}
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			seen[c]++
		}
	}
	return seen
}

func firstJob(t *testing.T, p *Processor, input string, seed uint64) Job {
	t.Helper()
	jobs, err := p.Jobs([]string{input}, seed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	input := writeStripes(t, dir, "stripes.png", 8, 4)

	cfg := testConfig(dir)
	cfg.Palette = true
	p := NewProcessor(cfg, nil)
	jobs, err := p.Jobs([]string{input}, cfg.Seed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, filepath.Join(dir, "out", "stripes_segmented.png"), jobs[0].Output)

	report, err := p.Process(context.Background(), jobs[0])
	require.NoError(t, err)
	assert.Equal(t, 8, report.Width)
	assert.Equal(t, 4, report.Height)
	assert.Equal(t, 2, report.Clusters)
	assert.GreaterOrEqual(t, report.Iterations, 1)
	assert.Contains(t, []string{"converged", "max_iterations"}, report.State)

	pixels := 0
	for _, c := range report.Palette {
		pixels += c.Pixels
	}
	assert.Equal(t, 32, pixels)

	colors := distinctColors(t, jobs[0].Output)
	assert.LessOrEqual(t, len(colors), 2)

	data, err := os.ReadFile(PaletteName(jobs[0].Output))
	require.NoError(t, err)
	var saved Report
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, report.Output, saved.Output)
	assert.Len(t, saved.Palette, 2)
}

func TestProcess_SingleClusterIsMean(t *testing.T) {
	dir := t.TempDir()
	input := writeStripes(t, dir, "stripes.png", 6, 6)

	cfg := testConfig(dir)
	cfg.Clusters = 1
	p := NewProcessor(cfg, nil)

	report, err := p.Process(context.Background(), firstJob(t, p, input, 3))
	require.NoError(t, err)
	assert.Equal(t, "converged", report.State)

	colors := distinctColors(t, report.Output)
	require.Len(t, colors, 1)
	for c, n := range colors {
		assert.Equal(t, 36, n)
		assert.InDelta(t, 127, c.R, 1)
		assert.Equal(t, c.R, c.G)
		assert.Equal(t, c.R, c.B)
	}
}

func TestProcess_Deterministic(t *testing.T) {
	dir := t.TempDir()
	input := writeStripes(t, dir, "stripes.png", 10, 5)
	cfg := testConfig(dir)
	cfg.Clusters = 3

	p := NewProcessor(cfg, nil)
	job := firstJob(t, p, input, 99)

	first, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	a, err := os.ReadFile(job.Output)
	require.NoError(t, err)

	second, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	b, err := os.ReadFile(job.Output)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, first.Palette, second.Palette)
	assert.Equal(t, first.TotalError, second.TotalError)
}

func TestProcess_MissingInput(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(testConfig(dir), nil)

	_, err := p.Process(context.Background(), Job{
		Input:  filepath.Join(dir, "missing.png"),
		Output: filepath.Join(dir, "out.png"),
	})
	assert.Error(t, err)
}

func TestProcess_Canceled(t *testing.T) {
	dir := t.TempDir()
	input := writeStripes(t, dir, "stripes.png", 4, 4)
	p := NewProcessor(testConfig(dir), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, firstJob(t, p, input, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessAll(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		writeStripes(t, dir, "a.png", 4, 4),
		writeStripes(t, dir, "b.png", 6, 2),
		writeStripes(t, dir, "c.png", 2, 2),
	}
	cfg := testConfig(dir)
	cfg.Workers = 2
	p := NewProcessor(cfg, nil)

	jobs, err := p.Jobs(inputs, 40)
	require.NoError(t, err)
	assert.Equal(t, []uint64{40, 41, 42}, []uint64{jobs[0].Seed, jobs[1].Seed, jobs[2].Seed})

	reports, err := p.ProcessAll(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, inputs[i], r.Input)
		assert.FileExists(t, r.Output)
	}
	assert.Equal(t, 6, reports[1].Width)
}

func TestJobs_OutputCollision(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(testConfig(dir), nil)

	jobs, err := p.Jobs([]string{filepath.Join("x", "a.png"), filepath.Join("y", "a.png")}, 1)
	assert.ErrorIs(t, err, ErrOutputCollision)
	assert.Nil(t, jobs)

	jobs, err = p.Jobs([]string{filepath.Join("x", "a.png"), filepath.Join("y", "b.png")}, 1)
	require.NoError(t, err)
	assert.NotEqual(t, jobs[0].Output, jobs[1].Output)
}

func TestPaletteName(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "x_segmented_palette.json"), PaletteName(filepath.Join("out", "x_segmented.jpg")))
}
