package deb

import (
	"archive/tar"
	"io"
	"path"
	"strings"
	"time"
)

// tarBuilder writes a deterministic tar stream: fixed timestamp,
// root/root ownership, "./"-rooted paths, and an explicit entry for
// every parent directory. GNU format keeps paths longer than 100 bytes
// working via LongLink extensions.
type tarBuilder struct {
	tw   *tar.Writer
	time time.Time
	dirs map[string]bool
}

func newTarBuilder(w io.Writer, ts time.Time) *tarBuilder {
	return &tarBuilder{
		tw:   tar.NewWriter(w),
		time: ts,
		dirs: map[string]bool{".": true, "./": true},
	}
}

// addParents emits directory entries for every ancestor of name that
// has not been written yet, outermost first.
func (b *tarBuilder) addParents(name string) error {
	dir := path.Dir(strings.TrimPrefix(name, "./"))
	if dir == "." || dir == "/" {
		return nil
	}
	var missing []string
	for ; dir != "." && dir != "/"; dir = path.Dir(dir) {
		entry := "./" + dir + "/"
		if b.dirs[entry] {
			break
		}
		missing = append(missing, entry)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := b.addDir(missing[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *tarBuilder) addDir(entry string) error {
	b.dirs[entry] = true
	return b.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     entry,
		Mode:     0o755,
		ModTime:  b.time,
		Uname:    "root",
		Gname:    "root",
		Format:   tar.FormatGNU,
	})
}

// AddFile writes a regular file entry. The destination is a slash
// separated path without a leading slash.
func (b *tarBuilder) AddFile(dest string, data []byte, mode int64) error {
	name := "./" + dest
	if err := b.addParents(name); err != nil {
		return err
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     int64(len(data)),
		Mode:     mode,
		ModTime:  b.time,
		Uname:    "root",
		Gname:    "root",
		Format:   tar.FormatGNU,
	}
	if err := b.tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := b.tw.Write(data)
	return err
}

// AddSymlink writes a symbolic link entry pointing at target.
func (b *tarBuilder) AddSymlink(dest, target string) error {
	name := "./" + dest
	if err := b.addParents(name); err != nil {
		return err
	}
	return b.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeSymlink,
		Name:     name,
		Linkname: target,
		Mode:     0o777,
		ModTime:  b.time,
		Uname:    "root",
		Gname:    "root",
		Format:   tar.FormatGNU,
	})
}

func (b *tarBuilder) Close() error {
	return b.tw.Close()
}

// buildTimestamp returns the modification time stamped on every archive
// entry. SOURCE_DATE_EPOCH pins it for reproducible builds; without it
// the epoch itself is used so repeated builds stay byte-identical.
func buildTimestamp(sourceDateEpoch int64) time.Time {
	return time.Unix(sourceDateEpoch, 0).UTC()
}
