package deb

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// gzipped compresses data with gzip. Fast trades ratio for speed, which
// matters during edit-build-install cycles.
func gzipped(data []byte, fast bool) ([]byte, error) {
	level := gzip.BestCompression
	if fast {
		level = gzip.BestSpeed
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// xzed compresses data with xz, the format dpkg expects for the data
// member. The fast mode shrinks the dictionary to cut memory and CPU.
func xzed(data []byte, fast bool) ([]byte, error) {
	cfg := xz.WriterConfig{DictCap: 8 << 20}
	if fast {
		cfg.DictCap = 1 << 20
	}
	var buf bytes.Buffer
	zw, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating xz writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
