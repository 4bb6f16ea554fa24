// Package compress wraps payload streams in the codec named by backup.compression.
package compress

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	TypeNone = "none"
	TypeGzip = "gzip"
	TypeZstd = "zstd"
)

var extensions = map[string]string{
	TypeGzip: "gz",
	TypeZstd: "zst",
}

// Normalize maps a configured codec name, including its file suffix form ("gz", "zst"),
// to one of the Type constants.
func Normalize(kind string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case "", TypeNone:
		return TypeNone, nil
	case TypeGzip, "gz":
		return TypeGzip, nil
	case TypeZstd, "zst":
		return TypeZstd, nil
	}
	return "", fmt.Errorf("unsupported compression: %s", kind)
}

// Extension returns the file suffix for a codec, without the dot.
func Extension(kind string) string {
	return extensions[kind]
}

func WrapWriter(kind string, w io.Writer) (io.WriteCloser, error) {
	switch kind {
	case "", TypeNone:
		return nopWriteCloser{w}, nil
	case TypeGzip:
		return gzip.NewWriter(w), nil
	case TypeZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	}
	return nil, fmt.Errorf("unsupported compression: %s", kind)
}

func WrapReader(kind string, r io.Reader) (io.ReadCloser, error) {
	switch kind {
	case "", TypeNone:
		return io.NopCloser(r), nil
	case TypeGzip:
		return gzip.NewReader(r)
	case TypeZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	}
	return nil, fmt.Errorf("unsupported compression: %s", kind)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
