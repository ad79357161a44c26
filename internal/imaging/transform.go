package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// CropBorder removes an n-pixel margin on every side.
func CropBorder(img *Image, n int) (*Image, error) {
	if n <= 0 {
		return img, nil
	}
	w, h := img.Width-2*n, img.Height-2*n
	if w <= 0 || h <= 0 {
		return nil, invalidf("crop border %d leaves nothing of a %dx%d image", n, img.Width, img.Height)
	}
	out := NewImage(w, h, img.Channels)
	for c, plane := range img.Planes {
		dst := out.Planes[c]
		for y := 0; y < h; y++ {
			copy(dst[y*w:(y+1)*w], plane[(y+n)*img.Width+n:(y+n)*img.Width+n+w])
		}
	}
	return out, nil
}

// Octave returns the image downsampled by 2^level using repeated 2x2 box
// averaging. Level 0 returns img itself. Odd trailing rows and columns are
// dropped at each step.
func Octave(img *Image, level int) *Image {
	out := img
	for i := 0; i < level; i++ {
		if out.Width < 2 || out.Height < 2 {
			break
		}
		out = halve(out)
	}
	return out
}

func halve(img *Image) *Image {
	w, h := img.Width/2, img.Height/2
	out := NewImage(w, h, img.Channels)
	sw := img.Width
	for c, plane := range img.Planes {
		dst := out.Planes[c]
		for y := 0; y < h; y++ {
			r0 := (2 * y) * sw
			r1 := r0 + sw
			for x := 0; x < w; x++ {
				x0 := 2 * x
				dst[y*w+x] = 0.25 * (plane[r0+x0] + plane[r0+x0+1] + plane[r1+x0] + plane[r1+x0+1])
			}
		}
	}
	return out
}

// ResizeLongest scales the image so that its longest side equals maxSide,
// preserving aspect ratio. Images already within the limit are returned
// unchanged; the image is never upsampled.
func ResizeLongest(img *Image, maxSide int) *Image {
	longest := img.Width
	if img.Height > longest {
		longest = img.Height
	}
	if maxSide <= 0 || longest <= maxSide {
		return img
	}

	w := img.Width * maxSide / longest
	h := img.Height * maxSide / longest
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	src := img.ToRGBA64()
	dst := image.NewRGBA64(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromRGBA64(dst, img.Channels)
}

func fromRGBA64(src *image.RGBA64, channels int) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewImage(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBA64At(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			out.Planes[0][i] = float64(c.R) / 257.0
			if channels == 3 {
				out.Planes[1][i] = float64(c.G) / 257.0
				out.Planes[2][i] = float64(c.B) / 257.0
			}
		}
	}
	return out
}
