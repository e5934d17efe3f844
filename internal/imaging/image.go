// Package imaging owns the in-memory image representation handed to the
// analysis pipeline: decoding uploads, extension validation, and resizing.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrInvalidImage is returned when upload bytes cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

// MaxUploadSize caps a single upload at 50 MB.
const MaxUploadSize = 50 * 1024 * 1024

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tiff": {},
	".tif":  {},
	".bmp":  {},
}

// AllowedExtension reports whether the filename carries a supported image
// extension.
func AllowedExtension(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// Image is a decoded 3-channel image, H×W pixels in row-major RGB order.
// It is immutable once decoded and owned by the caller for the duration of
// one analysis.
type Image struct {
	H, W int
	Pix  []uint8
}

// New allocates a black image of the given dimensions.
func New(h, w int) Image {
	return Image{H: h, W: w, Pix: make([]uint8, h*w*3)}
}

// At returns the R, G, B values at row y, column x.
func (im Image) At(y, x int) (r, g, b uint8) {
	i := (y*im.W + x) * 3
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// Set stores R, G, B values at row y, column x.
func (im *Image) Set(y, x int, r, g, b uint8) {
	i := (y*im.W + x) * 3
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = r, g, b
}

// Decode parses raw upload bytes into an Image. The channel order is
// normalized to RGB regardless of the source format.
func Decode(data []byte) (Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return FromImage(src), nil
}

// FromImage converts a decoded image.Image into the pipeline representation.
func FromImage(src image.Image) Image {
	bounds := src.Bounds()
	im := New(bounds.Dy(), bounds.Dx())
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			im.Set(y, x, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return im
}

// ToImage converts back to an image.Image for use with resize and encoders.
func (im Image) ToImage() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, im.W, im.H))
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			r, g, b := im.At(y, x)
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = r, g, b, 255
		}
	}
	return out
}

// ResizeSquare scales the image to size×size with bilinear interpolation,
// the geometry expected by the model.
func (im Image) ResizeSquare(size int) Image {
	if im.H == size && im.W == size {
		return im
	}
	scaled := resize.Resize(uint(size), uint(size), im.ToImage(), resize.Bilinear)
	return FromImage(scaled)
}
