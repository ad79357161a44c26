package imaging

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedExtensions lists the file extensions accepted for folder scans.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif", ".webp", ".gif"}

// IsSupportedFile reports whether the file name carries a decodable extension.
func IsSupportedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DefaultMaxPixels bounds width*height of decoded images unless
// SetMaxPixels says otherwise.
const DefaultMaxPixels = 40_000_000

var maxPixels atomic.Int64

func init() { maxPixels.Store(DefaultMaxPixels) }

// SetMaxPixels changes the decode limit; n <= 0 restores the default.
func SetMaxPixels(n int64) {
	if n <= 0 {
		n = DefaultMaxPixels
	}
	maxPixels.Store(n)
}

// MaxPixels returns the current decode limit.
func MaxPixels() int64 { return maxPixels.Load() }

// Decode reads an encoded image and converts it to an Image. The format
// name reported by the registered decoder is returned alongside. The header
// is checked first and images larger than MaxPixels are rejected before
// any pixel buffer is allocated.
func Decode(r io.Reader) (*Image, string, error) {
	br := bufio.NewReader(r)
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(br, &header))
	if err != nil {
		return nil, "", &InvalidImageError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	if limit := MaxPixels(); int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, "", invalidf("image is %dx%d pixels, limit is %d", cfg.Width, cfg.Height, limit)
	}

	src, format, err := image.Decode(io.MultiReader(&header, br))
	if err != nil {
		return nil, "", &InvalidImageError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	img := FromImage(src)
	if err := img.Validate(); err != nil {
		return nil, format, err
	}
	return img, format, nil
}

// DecodeBase64 decodes a base64 payload, optionally wrapped as a data URL
// ("data:image/png;base64,....").
func DecodeBase64(payload string) (*Image, string, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, "", &InvalidImageError{Reason: "empty image payload"}
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", &InvalidImageError{Reason: fmt.Sprintf("base64: %v", err)}
		}
	}
	return Decode(bytes.NewReader(raw))
}
