package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// compressFirmware 以最高压缩级别压缩固件，整体缓冲在内存中
func compressFirmware(name string, data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	zw.Name = name

	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("compress firmware: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush gzip stream: %w", err)
	}

	return buf.Bytes(), nil
}

// checksum 计算原始固件的 SHA-256
func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
