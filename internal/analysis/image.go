package analysis

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const ThumbnailSize = 256

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

func looksLikeImage(filename string) bool {
	return imageExts[strings.ToLower(filepath.Ext(filename))]
}

// ImageDimensions decodes only the image header.
func ImageDimensions(content []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Thumbnail fits the image inside a 256 px square and encodes it as PNG.
func Thumbnail(content []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
