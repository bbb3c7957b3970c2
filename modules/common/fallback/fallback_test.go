package fallback

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderBytesIsValidPNG(t *testing.T) {
	data := PlaceholderBytes()
	require.NotEmpty(t, data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())

	// 호출자가 수정해도 원본이 오염되면 안 됨
	data[0] = 0xFF
	assert.NotEqual(t, data[0], PlaceholderBytes()[0])
}

func TestSafeString(t *testing.T) {
	assert.Equal(t, "hello", SafeString("hello", "fb"))
	assert.Equal(t, "hello", SafeString("  hello  ", "fb"))
	assert.Equal(t, "fb", SafeString("", "fb"))
	assert.Equal(t, "fb", SafeString("   ", "fb"))
	assert.Equal(t, "fb", SafeString(nil, "fb"))
	assert.Equal(t, "fb", SafeString(42, "fb"))
}
