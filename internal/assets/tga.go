package assets

import (
	"github.com/pkg/errors"

	"github.com/wowee/azerite/internal/render/texture"
)

// TGA image type codes.
const (
	tgaTypeUncompressed = 2
	tgaTypeRLE          = 10
)

// isTGA sniffs the 18-byte header for a true-color TGA. TGA carries no
// magic number, so this checks the type and depth fields.
func isTGA(data []byte) bool {
	if len(data) < 18 {
		return false
	}
	if data[1] != 0 {
		return false
	}
	if data[2] != tgaTypeUncompressed && data[2] != tgaTypeRLE {
		return false
	}
	bpp := data[16]
	return bpp == 24 || bpp == 32
}

// decodeTGA decodes uncompressed (type 2) and RLE (type 10) true-color
// TGA data.
func decodeTGA(data []byte) (*texture.Image, error) {
	if len(data) < 18 {
		return nil, errors.New("tga data too short")
	}

	idLength := int(data[0])
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("tga has bad dimensions %dx%d", width, height)
	}
	if bpp != 24 && bpp != 32 {
		return nil, errors.Errorf("unsupported tga depth %d", bpp)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, errors.New("tga data truncated")
	}
	pixelData := data[offset:]
	perPixel := bpp / 8
	// Bit 5 of the descriptor means rows run top to bottom.
	topToBottom := descriptor&0x20 != 0

	img := texture.NewImage(width, height)
	switch imageType {
	case tgaTypeUncompressed:
		if len(pixelData) < width*height*perPixel {
			return nil, errors.New("tga pixel data truncated")
		}
		for i := 0; i < width*height; i++ {
			writeTGAPixel(img, i, pixelData[i*perPixel:], perPixel, topToBottom)
		}
	case tgaTypeRLE:
		decodeTGARLE(img, pixelData, perPixel, topToBottom)
	default:
		return nil, errors.Errorf("unsupported tga type %d", imageType)
	}
	return img, nil
}

func decodeTGARLE(img *texture.Image, pixelData []byte, perPixel int, topToBottom bool) {
	total := img.Width * img.Height
	pixel := 0
	i := 0

	for pixel < total && i < len(pixelData) {
		packet := pixelData[i]
		i++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Run packet: one pixel value repeated.
			if i+perPixel > len(pixelData) {
				return
			}
			for n := 0; n < count && pixel < total; n++ {
				writeTGAPixel(img, pixel, pixelData[i:], perPixel, topToBottom)
				pixel++
			}
			i += perPixel
		} else {
			for n := 0; n < count && pixel < total; n++ {
				if i+perPixel > len(pixelData) {
					return
				}
				writeTGAPixel(img, pixel, pixelData[i:], perPixel, topToBottom)
				i += perPixel
				pixel++
			}
		}
	}
}

// writeTGAPixel stores the BGR(A) source pixel at linear index into the
// RGBA image, flipping vertically unless rows already run top to
// bottom.
func writeTGAPixel(img *texture.Image, index int, src []byte, perPixel int, topToBottom bool) {
	x := index % img.Width
	y := index / img.Width
	if !topToBottom {
		y = img.Height - 1 - y
	}

	o := (y*img.Width + x) * 4
	img.Pixels[o] = src[2]
	img.Pixels[o+1] = src[1]
	img.Pixels[o+2] = src[0]
	if perPixel == 4 {
		img.Pixels[o+3] = src[3]
	} else {
		img.Pixels[o+3] = 255
	}
}
