package inference

import (
	"bytes"
	"strings"

	"github.com/disintegration/imaging"
)

// downscale shrinks images wider than maxWidth, keeping the aspect ratio.
// Anything it cannot decode is returned untouched.
func downscale(data []byte, mime string, maxWidth int) ([]byte, string) {
	if maxWidth <= 0 {
		return data, mime
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil || img.Bounds().Dx() <= maxWidth {
		return data, mime
	}

	format, outMime := imaging.PNG, "image/png"
	if strings.Contains(mime, "jpeg") || strings.Contains(mime, "jpg") {
		format, outMime = imaging.JPEG, "image/jpeg"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Resize(img, maxWidth, 0, imaging.Lanczos), format); err != nil {
		return data, mime
	}
	return buf.Bytes(), outMime
}
