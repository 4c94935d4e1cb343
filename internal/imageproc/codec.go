package imageproc

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultExt is the output format used when none is requested.
const DefaultExt = ".jpg"

// DefaultQuality is the JPEG quality used when none is requested.
const DefaultQuality = 90

// Load decodes the image at path. The format is sniffed from the content.
func Load(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("error decoding %s: %w", path, err)
	}
	return img, format, nil
}

// SupportedExt reports whether Save can write files with extension ext.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// Encode writes img to w in the format named by ext.
func Encode(w io.Writer, ext string, img image.Image, quality int) error {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		if quality <= 0 {
			quality = DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}
}

// Save writes img to path, choosing the encoder from the file extension.
func Save(path string, img image.Image, quality int) error {
	ext := filepath.Ext(path)
	if !SupportedExt(ext) {
		return fmt.Errorf("unsupported output format %q", ext)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output image: %w", err)
	}
	if err := Encode(file, ext, img, quality); err != nil {
		file.Close()
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	return file.Close()
}

// SegmentedName derives the output path for input: <stem>_segmented<ext>
// inside dir. An empty ext selects DefaultExt; an empty dir keeps the name
// relative to the working directory.
func SegmentedName(input, dir, ext string) string {
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(dir, Stem(input)+"_segmented"+ext)
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
