package imaging

import "gonum.org/v1/gonum/stat"

// PatchConfig controls patch extraction.
type PatchConfig struct {
	// BlockSize is the side of each square tile, in pixels.
	BlockSize int
	// Scales lists the octaves to tile; 0 is full resolution, 1 half, ...
	Scales []int
	// MinVariance rejects tiles whose luminance variance is below it.
	// Zero disables rejection.
	MinVariance float64
}

// Patch is one square tile. Planes follow the source channel layout and
// Luma is the luminance plane; all are BlockSize*BlockSize, row-major.
type Patch struct {
	Scale  int
	X, Y   int
	Size   int
	Planes [][]float64
	Luma   []float64
}

// RGB returns three planes, replicating the single plane of gray patches.
func (p Patch) RGB() (r, g, b []float64) {
	if len(p.Planes) == 1 {
		return p.Planes[0], p.Planes[0], p.Planes[0]
	}
	return p.Planes[0], p.Planes[1], p.Planes[2]
}

// PatchSet is the ordered output of ExtractPatches.
type PatchSet struct {
	Patches []Patch
	// Rejected counts low-variance tiles that were left out.
	Rejected int
	// UsedRejected is set when every tile was low-variance and the
	// rejected tiles were kept so the image still produces a score.
	UsedRejected bool
}

// ExtractPatches tiles the image into non-overlapping square blocks at each
// configured octave. Tiles run row-major within a scale and scales follow
// the configured order. Partial blocks at the right and bottom edges are
// dropped. The finest listed scale must fit at least one block.
func ExtractPatches(img *Image, cfg PatchConfig) (PatchSet, error) {
	if err := img.Validate(); err != nil {
		return PatchSet{}, err
	}
	if cfg.BlockSize <= 0 {
		return PatchSet{}, invalidf("block size must be positive, got %d", cfg.BlockSize)
	}
	scales := cfg.Scales
	if len(scales) == 0 {
		scales = []int{0}
	}

	finest := scales[0]
	for _, s := range scales {
		if s < finest {
			finest = s
		}
	}
	base := Octave(img, finest)
	if base.Width < cfg.BlockSize || base.Height < cfg.BlockSize {
		return PatchSet{}, invalidf("image %dx%d at scale %d is smaller than block size %d",
			base.Width, base.Height, finest, cfg.BlockSize)
	}

	var kept, rejected []Patch
	for _, s := range scales {
		scaled := Octave(img, s)
		luma := scaled.Luminance()
		for _, p := range tile(scaled, luma, s, cfg.BlockSize) {
			if cfg.MinVariance > 0 && stat.Variance(p.Luma, nil) < cfg.MinVariance {
				rejected = append(rejected, p)
				continue
			}
			kept = append(kept, p)
		}
	}

	set := PatchSet{Patches: kept, Rejected: len(rejected)}
	if len(kept) == 0 {
		set.Patches = rejected
		set.UsedRejected = true
	}
	return set, nil
}

func tile(img *Image, luma []float64, scale, size int) []Patch {
	cols, rows := img.Width/size, img.Height/size
	patches := make([]Patch, 0, cols*rows)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			x0, y0 := bx*size, by*size
			p := Patch{
				Scale:  scale,
				X:      x0,
				Y:      y0,
				Size:   size,
				Planes: make([][]float64, img.Channels),
				Luma:   copyBlock(luma, img.Width, x0, y0, size),
			}
			for c, plane := range img.Planes {
				p.Planes[c] = copyBlock(plane, img.Width, x0, y0, size)
			}
			patches = append(patches, p)
		}
	}
	return patches
}

func copyBlock(plane []float64, stride, x0, y0, size int) []float64 {
	out := make([]float64, size*size)
	for y := 0; y < size; y++ {
		off := (y0+y)*stride + x0
		copy(out[y*size:(y+1)*size], plane[off:off+size])
	}
	return out
}
