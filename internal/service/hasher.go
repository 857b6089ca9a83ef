package service

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashReader 读完 r 并返回内容的 SHA-256（小写十六进制）及字节数。
// 唯一的失败来源是 r 的读错误。
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HashBytes 计算内存中数据的 SHA-256。
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsChecksum 判断 s 是否为 64 位小写十六进制串。
func IsChecksum(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
