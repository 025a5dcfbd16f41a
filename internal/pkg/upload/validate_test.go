package upload

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosdesk/intake/internal/pkg/apperror"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var jpegHead = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func TestValidateAccepts(t *testing.T) {
	rules := Rules{MaxBytes: 1024}
	data := pngBytes(t)

	res, err := rules.Validate("foto.PNG", "image/png", int64(len(data)), data)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MIME)
	assert.Equal(t, "png", res.Extension)

	res, err = rules.Validate("captura", "image/jpeg", int64(len(jpegHead)), jpegHead)
	require.NoError(t, err)
	assert.Equal(t, "jpg", res.Extension)

	res, err = rules.Validate("imagen.jpeg", "", int64(len(jpegHead)), jpegHead)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", res.Extension)
}

func TestValidateRejects(t *testing.T) {
	rules := Rules{MaxBytes: 64}
	data := pngBytes(t)
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")

	tests := []struct {
		name     string
		filename string
		declared string
		size     int64
		head     []byte
	}{
		{"Empty content", "a.png", "image/png", 0, nil},
		{"Too large", "a.jpg", "image/jpeg", 65, jpegHead},
		{"Declared type not allowed", "a.gif", "image/gif", int64(len(gif)), gif},
		{"Content not allowed", "a.png", "image/png", int64(len(gif)), gif},
		{"Text disguised as image", "a.jpg", "image/jpeg", 11, []byte("hello world")},
		{"Script", "a.png", "", 30, []byte(strings.Repeat("<html>", 5))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rules.Validate(tt.filename, tt.declared, tt.size, tt.head)
			require.Error(t, err)
			assert.Equal(t, apperror.KindInvalidRequest, apperror.KindOf(err))
		})
	}

	_, err := Rules{MaxBytes: int64(len(data))}.Validate("a.png", "image/png", int64(len(data)), data)
	assert.NoError(t, err)
}

func TestStoredName(t *testing.T) {
	a := StoredName("png")
	b := StoredName(".PNG")
	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.True(t, strings.HasSuffix(b, ".png"))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(StoredName(""), "."+DefaultExtension))
	assert.Len(t, strings.TrimSuffix(a, ".png"), 36)
}

func TestIsAllowedMIME(t *testing.T) {
	assert.True(t, IsAllowedMIME("image/heic"))
	assert.True(t, IsAllowedMIME("IMAGE/JPEG; charset=binary"))
	assert.False(t, IsAllowedMIME("image/gif"))
}

func TestRulesLimit(t *testing.T) {
	assert.Equal(t, DefaultMaxBytes, Rules{}.Limit())
	assert.Equal(t, int64(512), Rules{MaxBytes: 512}.Limit())
}
