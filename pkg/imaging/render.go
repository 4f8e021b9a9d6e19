package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when the source is not a decodable image.
var ErrDecode = errors.New("decode source image")

// Render decodes src and re-encodes it for preset p.
//
// Images wider than the preset are downscaled keeping the aspect ratio;
// smaller images are never upscaled. PNG sources stay PNG, everything else
// is written as JPEG at the preset quality.
func Render(src []byte, p Preset) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	out := resize(img, p.Width)

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, out)
	} else {
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: p.Quality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s variant: %w", p.Name, err)
	}
	return buf.Bytes(), nil
}

func resize(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}

	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
