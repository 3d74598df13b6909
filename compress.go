package vtshaver

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func isZlib(data []byte) bool {
	if len(data) < 2 || data[0] != 0x78 {
		return false
	}
	switch data[1] {
	case 0x01, 0x5e, 0x9c, 0xda:
		return true
	}
	return false
}

// IsCompressed reports whether data starts with a gzip or zlib header.
func IsCompressed(data []byte) bool {
	return isGzip(data) || isZlib(data)
}

// Decompress inflates gzip or zlib data and returns anything else as-is.
func Decompress(data []byte) ([]byte, error) {
	var rd io.ReadCloser
	var err error
	switch {
	case isGzip(data):
		rd, err = gzip.NewReader(bytes.NewReader(data))
	case isZlib(data):
		rd, err = zlib.NewReader(bytes.NewReader(data))
	default:
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	defer rd.Close()

	out, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return out, nil
}

// gzipCompress compresses data at the given level.
func gzipCompress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}
