package deb

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/blakesmith/ar"

	"github.com/debpack/debpack/manifest"
)

// Archive is a fully assembled .deb ready to be written out. Both
// members are compressed up front so WriteTo is a plain copy.
type Archive struct {
	ControlTarGz []byte
	DataTarXz    []byte
	Timestamp    time.Time
}

// countingWriter wraps an io.Writer and counts the bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo writes the outer ar container: debian-binary, then the
// control archive, then the data archive. dpkg rejects any other
// member order.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	arW := ar.NewWriter(cw)

	if err := arW.WriteGlobalHeader(); err != nil {
		return cw.n, fmt.Errorf("writing ar global header: %w", err)
	}
	members := []struct {
		name PackageFile
		body []byte
	}{
		{PkgDebianBinary, []byte(debianBinaryContent)},
		{PkgControlTarGz, a.ControlTarGz},
		{PkgDataTarXz, a.DataTarXz},
	}
	for _, m := range members {
		if err := addArMember(arW, string(m.name), m.body, a.Timestamp); err != nil {
			return cw.n, fmt.Errorf("writing %s: %w", m.name, err)
		}
	}
	return cw.n, nil
}

// addArMember writes a named byte slice as an ar member with the fixed
// ownership and mode dpkg-deb uses.
func addArMember(w *ar.Writer, name string, body []byte, ts time.Time) error {
	header := &ar.Header{
		Name:    name,
		Size:    int64(len(body)),
		Mode:    0o100644,
		ModTime: ts,
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// buildDataArchive streams the resolved assets into a deterministic
// tar, hashing each regular file on the way, and compresses the result
// with xz. Assets are ordered by destination so the archive layout does
// not depend on manifest order.
func buildDataArchive(assets []*manifest.Asset, ts time.Time, fast bool) ([]byte, map[string]string, error) {
	sorted := make([]*manifest.Asset, len(assets))
	copy(sorted, assets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Dest < sorted[j].Dest })

	var buf bytes.Buffer
	tb := newTarBuilder(&buf, ts)
	sums := make(map[string]string, len(sorted))

	for _, a := range sorted {
		if a.Kind == manifest.SourceSymlink {
			if err := tb.AddSymlink(a.Dest, a.LinkTarget); err != nil {
				return nil, nil, fmt.Errorf("archiving symlink %s: %w", a.Dest, err)
			}
			continue
		}
		data, err := a.ReadData()
		if err != nil {
			return nil, nil, err
		}
		hash := md5.Sum(data)
		sums[a.Dest] = hex.EncodeToString(hash[:])
		if err := tb.AddFile(a.Dest, data, a.Mode); err != nil {
			return nil, nil, fmt.Errorf("archiving %s: %w", a.Dest, err)
		}
	}
	if err := tb.Close(); err != nil {
		return nil, nil, err
	}

	xz, err := xzed(buf.Bytes(), fast)
	if err != nil {
		return nil, nil, fmt.Errorf("compressing data archive: %w", err)
	}
	return xz, sums, nil
}
