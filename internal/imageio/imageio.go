// Package imageio loads carriers into 8-bit NRGBA buffers and saves them in
// formats that keep every bit.
package imageio

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/naseridev/deepscene/internal/fileio"
	"github.com/naseridev/deepscene/internal/format"
	"github.com/naseridev/deepscene/internal/stegerr"
)

var losslessExtensions = map[string]bool{
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// Output formats that would quantize or recompress the pixel data.
var lossyExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// IsLossless reports whether path names a lossless format, by extension
func IsLossless(path string) bool {
	return losslessExtensions[strings.ToLower(filepath.Ext(path))]
}

// Open decodes the image at path into an NRGBA buffer with origin (0,0).
// It also returns the decoder's format name.
func Open(path string) (*image.NRGBA, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", stegerr.Validation("image file does not exist: %s", path)
		}
		return nil, "", stegerr.IO(err, "failed to open image %s", path)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads an image from r. Dimensions are checked from the header
// before the pixel data is decoded.
func Decode(r io.ReadSeeker) (*image.NRGBA, string, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, "", stegerr.Image(err, "failed to decode image")
	}
	if err := format.ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, "", stegerr.IO(err, "failed to rewind image")
	}

	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", stegerr.Image(err, "failed to decode image")
	}

	return ToNRGBA(img), name, nil
}

// ToNRGBA returns an 8-bit non-premultiplied copy of img with origin (0,0)
func ToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	if src, ok := img.(*image.NRGBA); ok {
		rowLen := bounds.Dx() * 4
		for y := 0; y < bounds.Dy(); y++ {
			srcOff := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], src.Pix[srcOff:srcOff+rowLen])
		}
		return dst
	}

	xdraw.Copy(dst, image.Point{}, img, bounds, xdraw.Src, nil)
	return dst
}

// CheckOutputFormat rejects output paths whose format would not preserve
// every pixel bit.
func CheckOutputFormat(path string) error {
	_, err := encoderFor(path, nil)
	return err
}

// Save encodes img by the extension of path and writes it atomically.
// An empty extension saves PNG.
func Save(img *image.NRGBA, path string) error {
	encode, err := encoderFor(path, img)
	if err != nil {
		return err
	}

	if err := fileio.ValidateOutputPath(path); err != nil {
		return err
	}

	if err := fileio.WriteAtomic(path, encode); err != nil {
		return stegerr.Image(err, "failed to save image %s", path)
	}
	return nil
}

func encoderFor(path string, img *image.NRGBA) (func(w io.Writer) error, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == "" || ext == ".png":
		return func(w io.Writer) error {
			enc := png.Encoder{CompressionLevel: png.BestCompression}
			return enc.Encode(w, img)
		}, nil
	case ext == ".bmp":
		return func(w io.Writer) error { return bmp.Encode(w, img) }, nil
	case ext == ".tif" || ext == ".tiff":
		return func(w io.Writer) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	case lossyExtensions[ext]:
		return nil, stegerr.Validation("output format %s is lossy and would destroy the embedded data. Use .png, .bmp or .tiff", ext)
	default:
		return nil, stegerr.Validation("unsupported output format %s. Use .png, .bmp or .tiff", ext)
	}
}

// ConvertToLossless re-encodes the image at path as PNG next to it and
// returns the new path.
func ConvertToLossless(path string) (string, error) {
	img, _, err := Open(path)
	if err != nil {
		return "", err
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	if err := Save(img, out); err != nil {
		return "", err
	}
	return out, nil
}
