// Package pristinetest fits small pristine models from synthetic images so
// scorer tests do not depend on a shipped artifact.
package pristinetest

import (
	"go-naturalness-inspector/internal/features"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/imaging/imagingtest"
	"go-naturalness-inspector/internal/pristine"
)

// Fit extracts features from every patch of the given images and builds a
// model tagged with the current feature layout.
func Fit(images []*imaging.Image, cfg imaging.PatchConfig, opts ...pristine.Option) (*pristine.Model, error) {
	ex := features.NewExtractor(cfg.BlockSize)
	var vectors [][]float64
	for _, img := range images {
		set, err := imaging.ExtractPatches(img, cfg)
		if err != nil {
			return nil, err
		}
		for _, p := range set.Patches {
			v, _ := ex.Extract(p)
			vectors = append(vectors, v)
		}
	}
	opts = append([]pristine.Option{pristine.WithLayout(features.Layout), pristine.WithName("synthetic")}, opts...)
	return pristine.FromSamples(vectors, opts...)
}

// Textures returns n clean synthetic images using seeds base, base+1, ...
func Textures(n, w, h int, base int64) []*imaging.Image {
	images := make([]*imaging.Image, n)
	for i := range images {
		images[i] = imagingtest.Texture(w, h, base+int64(i))
	}
	return images
}

// MustFit is Fit over clean textures; it panics on error.
func MustFit(cfg imaging.PatchConfig, n, w, h int, opts ...pristine.Option) *pristine.Model {
	m, err := Fit(Textures(n, w, h, 1000), cfg, opts...)
	if err != nil {
		panic(err)
	}
	return m
}
