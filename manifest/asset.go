package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// AssetSpec is a single user-declared asset line before glob expansion:
// a source pattern, a destination, and a permission mode. IsBuilt is
// derived, not user supplied: it is true when the source referenced the
// build output directory.
type AssetSpec struct {
	Source  string
	Dest    string
	Mode    int64
	IsBuilt bool
}

// SourceKind tells the archive writer how to obtain an asset's bytes.
type SourceKind int

const (
	// SourceFile is a regular file read from disk.
	SourceFile SourceKind = iota
	// SourceSymlink is emitted as a symlink entry preserving LinkTarget.
	SourceSymlink
	// SourceData is generated in memory (copyright, changelog).
	SourceData
)

// Asset is a resolved file destined for the data archive. Destinations
// never carry a leading slash; modes are the 9 permission bits.
type Asset struct {
	// Source is the absolute path of the file on disk; empty for
	// generated assets.
	Source string
	// Data holds the content of generated assets.
	Data []byte
	// Dest is the canonical archive path, e.g. "usr/bin/foo".
	Dest string
	Mode int64
	Kind SourceKind
	// LinkTarget is the symlink target text, preserved verbatim.
	LinkTarget string

	IsBuilt bool
	IsConf  bool
}

// NewAsset normalizes the destination: a textual trailing slash means
// "directory", so the source basename is appended; any leading slash is
// stripped for inclusion in the data archive.
func NewAsset(source, dest string, mode int64, isBuilt bool) *Asset {
	if strings.HasSuffix(dest, "/") {
		dest = path.Join(dest, filepath.Base(source))
	}
	dest = strings.TrimPrefix(path.Clean(dest), "/")
	return &Asset{
		Source:  source,
		Dest:    dest,
		Mode:    mode,
		Kind:    SourceFile,
		IsBuilt: isBuilt,
	}
}

// NewDataAsset wraps generated bytes as an asset.
func NewDataAsset(data []byte, dest string, mode int64) *Asset {
	a := NewAsset("generated", dest, mode, false)
	a.Source = ""
	a.Data = data
	a.Kind = SourceData
	return a
}

// ReadData returns the asset content. Symlink assets have none.
func (a *Asset) ReadData() ([]byte, error) {
	switch a.Kind {
	case SourceData:
		return a.Data, nil
	case SourceSymlink:
		return nil, nil
	default:
		data, err := os.ReadFile(a.Source)
		if err != nil {
			return nil, &AssetError{Source: a.Source, Msg: fmt.Sprintf("unable to read: %v", err)}
		}
		return data, nil
	}
}

// Size returns the byte length of the asset content, 0 for symlinks.
func (a *Asset) Size() int64 {
	switch a.Kind {
	case SourceData:
		return int64(len(a.Data))
	case SourceSymlink:
		return 0
	default:
		st, err := os.Stat(a.Source)
		if err != nil {
			return 0
		}
		return st.Size()
	}
}

// IsExecutable reports whether any execute bit is set.
func (a *Asset) IsExecutable() bool {
	return a.Mode&0o111 != 0
}

// IsDynamicLibrary reports whether the destination looks like a shared
// object.
func (a *Asset) IsDynamicLibrary() bool {
	base := path.Base(a.Dest)
	return strings.HasSuffix(base, ".so") || strings.Contains(base, ".so.")
}

// DebugTarget returns the data-archive destination for this asset's
// split-out debug info: usr/lib/debug/<install-path>.debug. Only built
// binaries have one.
func (a *Asset) DebugTarget() string {
	if !a.IsBuilt {
		return ""
	}
	return path.Join("usr/lib/debug", a.Dest) + ".debug"
}
