// Package codec 提供内联存储负载的压缩与解压。
// 压缩只改变落库的表示，checksum 始终基于原始内容计算。
package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm 标识压缩算法，取值会持久化到 inline_file.compression 列。
type Algorithm string

const (
	None Algorithm = "none"
	Zstd Algorithm = "zstd"
	LZ4  Algorithm = "lz4"
)

// errIncompressible 表示压缩后不比原始数据小，调用方应退回 None。
var errIncompressible = errors.New("data is incompressible")

// zstd.Encoder / zstd.Decoder 可并发使用，全局复用避免重复初始化。
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Parse 解析配置中的算法名称，空字符串视为 None。
func Parse(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", None:
		return None, nil
	case Zstd:
		return Zstd, nil
	case LZ4:
		return LZ4, nil
	default:
		return "", fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// Compress 使用指定算法压缩数据，返回实际使用的算法。
// 数据不可压缩时原样返回并标记为 None。
func Compress(data []byte, alg Algorithm) ([]byte, Algorithm, error) {
	var (
		out []byte
		err error
	)
	switch alg {
	case None, "":
		return data, None, nil
	case Zstd:
		out = zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			err = errIncompressible
		}
	case LZ4:
		out, err = compressLZ4(data)
	default:
		return nil, "", fmt.Errorf("unsupported compression algorithm: %q", alg)
	}
	if errors.Is(err, errIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, "", err
	}
	return out, alg, nil
}

// Decompress 还原数据，size 必须等于原始长度，不一致时返回错误。
func Decompress(data []byte, alg Algorithm, size int64) ([]byte, error) {
	switch alg {
	case None, "":
		if int64(len(data)) != size {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case Zstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(out)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if int64(n) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %q", alg)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock 对不可压缩数据返回 0
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}
