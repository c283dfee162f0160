package media

import (
	"bytes"
	"errors"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailWidth = 320
	AvatarSize     = 256
)

var ErrNotImage = errors.New("not a decodable image")

// IsImage reports whether contentType names a raster image we can decode.
func IsImage(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/bmp", "image/tiff":
		return true
	}
	return false
}

// Thumbnail scales an image down to ThumbnailWidth, keeping the aspect ratio.
func Thumbnail(r io.Reader) ([]byte, error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > ThumbnailWidth {
		img = imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	}
	return encodeJPEG(img)
}

// Avatar crops an image to a centred AvatarSize square.
func Avatar(r io.Reader) ([]byte, error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos))
}

func decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}
	return img, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
