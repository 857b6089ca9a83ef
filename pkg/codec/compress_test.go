package codec

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	text := bytes.Repeat([]byte("rift content addressed store "), 4096)

	for _, alg := range []Algorithm{None, Zstd, LZ4} {
		t.Run(string(alg), func(t *testing.T) {
			out, used, err := Compress(text, alg)
			require.NoError(t, err)
			assert.Equal(t, alg, used)
			if alg != None {
				assert.Less(t, len(out), len(text))
			}

			back, err := Decompress(out, used, int64(len(text)))
			require.NoError(t, err)
			assert.Equal(t, text, back)
		})
	}
}

func TestCompressIncompressibleFallsBackToNone(t *testing.T) {
	random := make([]byte, 64*1024)
	_, err := rand.Read(random)
	require.NoError(t, err)

	for _, alg := range []Algorithm{Zstd, LZ4} {
		out, used, err := Compress(random, alg)
		require.NoError(t, err)
		assert.Equal(t, None, used, "随机数据不应以 %s 存储", alg)
		assert.Equal(t, random, out)
	}
}

func TestCompressEmpty(t *testing.T) {
	out, used, err := Compress(nil, Zstd)
	require.NoError(t, err)
	assert.Equal(t, None, used)

	back, err := Decompress(out, used, 0)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestDecompressSizeMismatch(t *testing.T) {
	_, err := Decompress([]byte("abc"), None, 4)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	alg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)

	alg, err = Parse("zstd")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)

	_, err = Parse("brotli")
	assert.Error(t, err)
}
