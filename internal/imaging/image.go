// Package imaging holds the pixel data model shared by both scoring
// pipelines, together with decoding, resampling and patch extraction.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// ChannelOrder describes the layout of an interleaved input buffer.
type ChannelOrder int

const (
	OrderRGB ChannelOrder = iota
	OrderBGR
	OrderGray
)

func (o ChannelOrder) String() string {
	switch o {
	case OrderRGB:
		return "rgb"
	case OrderBGR:
		return "bgr"
	case OrderGray:
		return "gray"
	}
	return fmt.Sprintf("order(%d)", int(o))
}

// Luma weights (ITU-R BT.601).
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Image is a planar float64 pixel grid with samples in [0,255].
// Planes are row-major and always in RGB order for color images.
type Image struct {
	Width    int
	Height   int
	Channels int
	Planes   [][]float64
}

// Buffer is a decoded, interleaved pixel buffer handed over by a caller
// that did its own decoding.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Order    ChannelOrder
	Pix      []float64
}

// NewImage allocates a zeroed image.
func NewImage(width, height, channels int) *Image {
	planes := make([][]float64, channels)
	for c := range planes {
		planes[c] = make([]float64, width*height)
	}
	return &Image{Width: width, Height: height, Channels: channels, Planes: planes}
}

// FromBuffer converts an interleaved buffer into a validated Image.
func FromBuffer(buf Buffer) (*Image, error) {
	if buf.Width <= 0 || buf.Height <= 0 {
		return nil, invalidf("non-positive dimensions %dx%d", buf.Width, buf.Height)
	}
	switch {
	case buf.Channels == 1 && (buf.Order == OrderGray || buf.Order == OrderRGB):
	case buf.Channels == 3 && (buf.Order == OrderRGB || buf.Order == OrderBGR):
	default:
		return nil, invalidf("unsupported layout: %d channel(s) in %s order", buf.Channels, buf.Order)
	}
	n := buf.Width * buf.Height
	if len(buf.Pix) != n*buf.Channels {
		return nil, invalidf("buffer holds %d samples, want %d", len(buf.Pix), n*buf.Channels)
	}

	img := NewImage(buf.Width, buf.Height, buf.Channels)
	for c := 0; c < buf.Channels; c++ {
		src := c
		if buf.Order == OrderBGR {
			src = 2 - c
		}
		plane := img.Planes[c]
		for i := 0; i < n; i++ {
			plane[i] = buf.Pix[i*buf.Channels+src]
		}
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// FromImage converts a decoded Go image. Gray images keep a single
// channel; everything else becomes RGB with alpha discarded.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch g := src.(type) {
	case *image.Gray:
		img := NewImage(w, h, 1)
		for y := 0; y < h; y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			row := g.Pix[off : off+w]
			for x, v := range row {
				img.Planes[0][y*w+x] = float64(v)
			}
		}
		return img
	case *image.Gray16:
		img := NewImage(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := g.Gray16At(b.Min.X+x, b.Min.Y+y).Y
				img.Planes[0][y*w+x] = float64(v) / 257.0
			}
		}
		return img
	}

	img := NewImage(w, h, 3)
	r, gp, bp := img.Planes[0], img.Planes[1], img.Planes[2]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			r[i] = float64(cr) / 257.0
			gp[i] = float64(cg) / 257.0
			bp[i] = float64(cb) / 257.0
		}
	}
	return img
}

// Validate enforces the invariants every scorer relies on.
func (img *Image) Validate() error {
	if img == nil {
		return invalidf("nil image")
	}
	if img.Width <= 0 || img.Height <= 0 {
		return invalidf("non-positive dimensions %dx%d", img.Width, img.Height)
	}
	if img.Channels != 1 && img.Channels != 3 {
		return invalidf("channel count must be 1 or 3, got %d", img.Channels)
	}
	if len(img.Planes) != img.Channels {
		return invalidf("have %d planes for %d channels", len(img.Planes), img.Channels)
	}
	n := img.Width * img.Height
	for c, plane := range img.Planes {
		if len(plane) != n {
			return invalidf("plane %d holds %d samples, want %d", c, len(plane), n)
		}
		for _, v := range plane {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return invalidf("plane %d contains non-finite samples", c)
			}
		}
	}
	return nil
}

// Luminance returns the gray plane. For single channel images the plane
// itself is returned and must not be modified.
func (img *Image) Luminance() []float64 {
	if img.Channels == 1 {
		return img.Planes[0]
	}
	r, g, b := img.Planes[0], img.Planes[1], img.Planes[2]
	out := make([]float64, len(r))
	for i := range out {
		out[i] = lumaR*r[i] + lumaG*g[i] + lumaB*b[i]
	}
	return out
}

// RGB returns three planes, replicating the gray plane for 1-channel images.
func (img *Image) RGB() (r, g, b []float64) {
	if img.Channels == 1 {
		p := img.Planes[0]
		return p, p, p
	}
	return img.Planes[0], img.Planes[1], img.Planes[2]
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := NewImage(img.Width, img.Height, img.Channels)
	for c := range img.Planes {
		copy(out.Planes[c], img.Planes[c])
	}
	return out
}

// ToRGBA64 renders the image into a 16-bit Go image, clamping to [0,255].
func (img *Image) ToRGBA64() *image.RGBA64 {
	out := image.NewRGBA64(image.Rect(0, 0, img.Width, img.Height))
	r, g, b := img.RGB()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := y*img.Width + x
			out.SetRGBA64(x, y, color.RGBA64{
				R: to16(r[i]),
				G: to16(g[i]),
				B: to16(b[i]),
				A: 0xffff,
			})
		}
	}
	return out
}

func to16(v float64) uint16 {
	v = v * 257.0
	if v <= 0 {
		return 0
	}
	if v >= 0xffff {
		return 0xffff
	}
	return uint16(v + 0.5)
}
