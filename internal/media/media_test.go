package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailScalesDown(t *testing.T) {
	out, err := Thumbnail(bytes.NewReader(pngOf(t, 1000, 500)))
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailWidth, img.Bounds().Dx())
	assert.Equal(t, 160, img.Bounds().Dy())
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	out, err := Thumbnail(bytes.NewReader(pngOf(t, 40, 20)))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestAvatarIsSquare(t *testing.T) {
	out, err := Avatar(bytes.NewReader(pngOf(t, 600, 300)))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(AvatarSize, AvatarSize), img.Bounds().Size())
}

func TestRejectsGarbage(t *testing.T) {
	_, err := Thumbnail(strings.NewReader("definitely not an image"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/png"))
	assert.True(t, IsImage("IMAGE/JPEG; charset=binary"))
	assert.False(t, IsImage("application/pdf"))
	assert.False(t, IsImage(""))
}
