package texture

import "math"

// GenerateNormalMap derives a tangent-space normal map from an image by
// running a Sobel filter over its luminance. The alpha channel carries a
// 3x3 box-blurred copy of the height, used for parallax sampling.
func GenerateNormalMap(src *Image) *Image {
	w, h := src.Width, src.Height

	// Luminance as height, 0..1.
	height := make([]float32, w*h)
	for i := 0; i < w*h; i++ {
		r := float32(src.Pixels[i*4])
		g := float32(src.Pixels[i*4+1])
		b := float32(src.Pixels[i*4+2])
		height[i] = (0.299*r + 0.587*g + 0.114*b) / 255
	}

	sample := func(x, y int) float32 {
		if x < 0 {
			x = 0
		}
		if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		return height[y*w+x]
	}

	out := NewImage(w, h)
	const strength = 2.0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tl := sample(x-1, y-1)
			t := sample(x, y-1)
			tr := sample(x+1, y-1)
			l := sample(x-1, y)
			r := sample(x+1, y)
			bl := sample(x-1, y+1)
			b := sample(x, y+1)
			br := sample(x+1, y+1)

			// Sobel gradients.
			dx := (tr + 2*r + br) - (tl + 2*l + bl)
			dy := (bl + 2*b + br) - (tl + 2*t + tr)

			nx := -dx * strength
			ny := -dy * strength
			nz := float32(1)
			inv := invSqrt(nx*nx + ny*ny + nz*nz)
			nx *= inv
			ny *= inv
			nz *= inv

			// Smoothed height for the alpha channel.
			blur := (tl + t + tr + l + sample(x, y) + r + bl + b + br) / 9

			idx := (y*w + x) * 4
			out.Pixels[idx] = packUnit(nx)
			out.Pixels[idx+1] = packUnit(ny)
			out.Pixels[idx+2] = packUnit(nz)
			out.Pixels[idx+3] = byte(clampf(blur*255, 0, 255))
		}
	}

	return out
}

// packUnit maps a [-1, 1] component to [0, 255].
func packUnit(v float32) byte {
	return byte(clampf((v*0.5+0.5)*255, 0, 255))
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func invSqrt(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return float32(1 / math.Sqrt(float64(v)))
}
