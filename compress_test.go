package vtshaver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCompressed(t *testing.T) {
	assert.True(t, IsCompressed([]byte{0x1f, 0x8b, 8}))
	assert.True(t, IsCompressed([]byte{0x78, 0x9c}))
	assert.True(t, IsCompressed([]byte{0x78, 0xda}))
	assert.True(t, IsCompressed([]byte{0x78, 0x01}))
	assert.True(t, IsCompressed([]byte{0x78, 0x5e}))
	assert.False(t, IsCompressed([]byte{0x78, 0x00}))
	assert.False(t, IsCompressed([]byte{0x1f}))
	assert.False(t, IsCompressed(waterTile))
	assert.False(t, IsCompressed(nil))
}

func TestGzipRoundTrip(t *testing.T) {
	for _, level := range []int{0, 1, 6, 9} {
		compressed, err := gzipCompress(waterTile, level)
		require.NoError(t, err)
		assert.True(t, IsCompressed(compressed))

		out, err := Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, waterTile, out, "level %d", level)
	}

	_, err := gzipCompress(waterTile, 42)
	assert.ErrorIs(t, err, ErrCodec)
}

func TestDecompressPlain(t *testing.T) {
	out, err := Decompress(waterTile)
	require.NoError(t, err)
	assert.Equal(t, waterTile, out)
}

func TestDecompressCorrupt(t *testing.T) {
	compressed, err := gzipCompress(waterTile, 6)
	require.NoError(t, err)

	_, err = Decompress(compressed[:len(compressed)-6])
	assert.ErrorIs(t, err, ErrCodec)

	_, err = Decompress([]byte{0x78, 0x9c, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrCodec)
}
