// Package texture provides CPU-side image handling, the byte-budgeted
// GPU texture cache and the character skin composite builder.
package texture

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Image is a decoded RGBA image ready for compositing or upload.
type Image struct {
	Width  int
	Height int
	Pixels []byte // RGBA, Width*Height*4 bytes
}

// Valid reports whether the image has pixel data matching its dimensions.
func (im *Image) Valid() bool {
	return im != nil && im.Width > 0 && im.Height > 0 &&
		len(im.Pixels) == im.Width*im.Height*4
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := &Image{Width: im.Width, Height: im.Height, Pixels: make([]byte, len(im.Pixels))}
	copy(out.Pixels, im.Pixels)
	return out
}

// HasTranslucency reports whether any pixel has alpha below 255.
func (im *Image) HasTranslucency() bool {
	for i := 3; i < len(im.Pixels); i += 4 {
		if im.Pixels[i] != 255 {
			return true
		}
	}
	return false
}

// NewImage returns a zeroed RGBA image.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pixels: make([]byte, width*height*4)}
}

// WhiteImage returns a 1x1 opaque white image, the universal fallback.
func WhiteImage() *Image {
	return &Image{Width: 1, Height: 1, Pixels: []byte{255, 255, 255, 255}}
}

// BlendOver alpha-blends src onto dst with its top-left corner at
// (dstX, dstY). Pixels outside dst are clipped.
func BlendOver(dst, src *Image, dstX, dstY int) {
	for py := 0; py < src.Height; py++ {
		dy := dstY + py
		if dy < 0 || dy >= dst.Height {
			continue
		}
		for px := 0; px < src.Width; px++ {
			dx := dstX + px
			if dx < 0 || dx >= dst.Width {
				continue
			}

			srcIdx := (py*src.Width + px) * 4
			dstIdx := (dy*dst.Width + dx) * 4

			sr, sg, sb, sa := src.Pixels[srcIdx], src.Pixels[srcIdx+1], src.Pixels[srcIdx+2], src.Pixels[srcIdx+3]
			if sa == 0 {
				continue
			}
			if sa == 255 {
				dst.Pixels[dstIdx] = sr
				dst.Pixels[dstIdx+1] = sg
				dst.Pixels[dstIdx+2] = sb
				dst.Pixels[dstIdx+3] = sa
				continue
			}

			da := dst.Pixels[dstIdx+3]
			outA := int(sa) + int(da)*(255-int(sa))/255
			if outA > 0 {
				dst.Pixels[dstIdx] = byte((int(sr)*int(sa) + int(dst.Pixels[dstIdx])*int(da)*(255-int(sa))/255) / outA)
				dst.Pixels[dstIdx+1] = byte((int(sg)*int(sa) + int(dst.Pixels[dstIdx+1])*int(da)*(255-int(sa))/255) / outA)
				dst.Pixels[dstIdx+2] = byte((int(sb)*int(sa) + int(dst.Pixels[dstIdx+2])*int(da)*(255-int(sa))/255) / outA)
				dst.Pixels[dstIdx+3] = byte(outA)
			}
		}
	}
}

// ScaleNearest returns src scaled by an integer factor with
// nearest-neighbor sampling. Factor 1 returns a clone.
func ScaleNearest(src *Image, factor int) *Image {
	if factor <= 1 {
		return src.Clone()
	}

	srcRGBA := &image.RGBA{
		Pix:    src.Pixels,
		Stride: src.Width * 4,
		Rect:   image.Rect(0, 0, src.Width, src.Height),
	}
	dst := image.NewRGBA(image.Rect(0, 0, src.Width*factor, src.Height*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Rect, srcRGBA, srcRGBA.Rect, draw.Src, nil)

	return &Image{Width: dst.Rect.Dx(), Height: dst.Rect.Dy(), Pixels: dst.Pix}
}
