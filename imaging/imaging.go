// Package imaging decodes deposited check images and produces the fixed
// width derivative copies the archive keeps alongside the original.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrUnsupportedFormat marks a file outside the raster allow-list. The
// caller must not retry it; the source is left in place for a human.
var ErrUnsupportedFormat = errors.New("imaging: unsupported image format")

var supportedExtensions = map[string]bool{
	".bmp":  true,
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// SupportedExtension reports whether the file name carries an allowed
// raster extension.
func SupportedExtension(fileName string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Derivative is one resized copy of a source image. Transient: it exists
// only until it has been durably stored.
type Derivative struct {
	Name  string
	Width int
	Data  []byte
}

// Derivatives decodes src and renders one proportionally scaled copy per
// target width, re-encoded in the source format. Derivative names follow
// the "<width>px-<fileName>" convention of the archive store.
func Derivatives(fileName string, src []byte, widths []int) ([]Derivative, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	img, err := decode(ext, src)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fileName, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("decode %s: image has no pixels", fileName)
	}

	derivatives := make([]Derivative, 0, len(widths))
	for _, width := range widths {
		height := bounds.Dy() * width / bounds.Dx()
		if height < 1 {
			height = 1
		}

		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

		data, err := encode(ext, scaled)
		if err != nil {
			return nil, fmt.Errorf("encode %dpx copy of %s: %w", width, fileName, err)
		}

		derivatives = append(derivatives, Derivative{
			Name:  fmt.Sprintf("%dpx-%s", width, fileName),
			Width: width,
			Data:  data,
		})
	}

	return derivatives, nil
}

func decode(ext string, src []byte) (image.Image, error) {
	r := bytes.NewReader(src)
	switch ext {
	case ".bmp":
		return bmp.Decode(r)
	case ".gif":
		return gif.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".png":
		return png.Decode(r)
	}
	return nil, ErrUnsupportedFormat
}

func encode(ext string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case ".bmp":
		err = bmp.Encode(&buf, img)
	case ".gif":
		err = gif.Encode(&buf, img, nil)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case ".png":
		err = png.Encode(&buf, img)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
