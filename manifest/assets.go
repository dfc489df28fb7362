package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/debpack/debpack/logx"
)

// Build-dir prefixes recognized in asset sources. Sources starting with
// one of these are rewritten to the actual resolved build directory,
// which differs under cross-compilation and custom target dirs.
var buildDirPrefixes = []string{"target/release/", "target/debug/"}

func isGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// ResolveAssets expands the declared asset specs into the final file
// listing: build-dir rewriting, glob expansion, destination
// normalization, symlink policy, and duplicate detection. When no assets
// were declared the defaults are injected instead. The call is
// idempotent per Config: the pipeline invokes it exactly once.
func (c *Config) ResolveAssets() error {
	if c.resolved {
		return nil
	}
	c.resolved = true

	if len(c.specs) == 0 && len(c.Assets) == 0 {
		c.addDefaultAssets()
	}

	for _, spec := range c.specs {
		resolved, err := c.resolveSpec(spec)
		if err != nil {
			return err
		}
		c.Assets = append(c.Assets, resolved...)
	}

	if err := c.checkDuplicateDests(); err != nil {
		return err
	}
	return nil
}

// resolveSpec turns one spec into zero or more concrete assets.
func (c *Config) resolveSpec(spec AssetSpec) ([]*Asset, error) {
	source := spec.Source

	// Substitute the resolved build directory for the conventional
	// target/<profile>/ prefix.
	for _, prefix := range buildDirPrefixes {
		if strings.HasPrefix(source, prefix) {
			source = filepath.Join(c.BuildDir(), strings.TrimPrefix(source, prefix))
			break
		}
	}
	if !filepath.IsAbs(source) {
		source = c.PathInProject(source)
	}

	if !isGlobPattern(source) {
		if _, err := os.Lstat(source); err != nil {
			if spec.IsBuilt && c.NoBuild {
				// The user suppressed the build; the file may simply
				// not be there yet. Still fatal: there is nothing to
				// package.
				return nil, &AssetError{Source: spec.Source, Msg: "file not found (build was skipped)"}
			}
			return nil, &AssetError{Source: spec.Source, Msg: "file not found"}
		}
		asset := NewAsset(source, spec.Dest, spec.Mode, spec.IsBuilt)
		if err := c.applySymlinkPolicy(asset); err != nil {
			return nil, err
		}
		return []*Asset{asset}, nil
	}

	matches, err := expandGlob(source)
	if err != nil {
		return nil, &AssetError{Source: spec.Source, Msg: err.Error()}
	}
	if len(matches) == 0 {
		if strings.HasSuffix(spec.Dest, "/") {
			logx.Warnf("glob %s matched nothing, dropping asset", spec.Source)
			return nil, nil
		}
		return nil, &AssetError{Source: spec.Source, Msg: "glob matched no files"}
	}

	// Globs keep the directory structure below the static prefix of
	// the pattern when the destination is a directory.
	prefix := staticPrefix(source)
	var out []*Asset
	for _, m := range matches {
		dest := spec.Dest
		if strings.HasSuffix(spec.Dest, "/") {
			rel, relErr := filepath.Rel(prefix, m)
			if relErr != nil {
				rel = filepath.Base(m)
			}
			dest = path.Join(spec.Dest, filepath.ToSlash(rel))
		}
		asset := NewAsset(m, dest, spec.Mode, spec.IsBuilt)
		if err := c.applySymlinkPolicy(asset); err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, nil
}

// expandGlob returns the lexicographically sorted regular files and
// symlinks matching pattern. Directories never match.
func expandGlob(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}
	out := matches[:0]
	for _, m := range matches {
		st, err := os.Lstat(m)
		if err != nil || st.IsDir() {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// staticPrefix returns the leading path components of pattern that carry
// no glob metacharacters.
func staticPrefix(pattern string) string {
	parts := strings.Split(filepath.ToSlash(pattern), "/")
	var static []string
	for _, p := range parts {
		if isGlobPattern(p) {
			break
		}
		static = append(static, p)
	}
	return strings.Join(static, "/")
}

// applySymlinkPolicy marks symlink sources for preservation, or leaves
// them to be followed and copied when preserve-symlinks is off.
func (c *Config) applySymlinkPolicy(a *Asset) error {
	if !c.PreserveSymlinks || a.Kind != SourceFile {
		return nil
	}
	st, err := os.Lstat(a.Source)
	if err != nil {
		return &AssetError{Source: a.Source, Msg: fmt.Sprintf("unable to stat: %v", err)}
	}
	if st.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	target, err := os.Readlink(a.Source)
	if err != nil {
		return &AssetError{Source: a.Source, Msg: fmt.Sprintf("unable to read link: %v", err)}
	}
	a.Kind = SourceSymlink
	a.LinkTarget = target
	return nil
}

// addDefaultAssets injects the conventional assets when the manifest
// declares none: every binary artifact under usr/bin, plus the readme
// and license file under usr/share/doc.
func (c *Config) addDefaultAssets() {
	for _, bin := range c.Binaries {
		c.Assets = append(c.Assets, NewAsset(
			filepath.Join(c.BuildDir(), bin),
			path.Join("usr/bin", bin),
			0o755,
			true,
		))
	}
	if c.Readme != "" {
		c.Assets = append(c.Assets, NewAsset(
			c.PathInProject(c.Readme),
			c.DocPath("README"),
			0o644,
			false,
		))
	}
}

// MarkConfFiles flags assets whose absolute destination appears in the
// conf-files list, and implicitly everything installed under /etc.
func (c *Config) MarkConfFiles() {
	declared := make(map[string]bool, len(c.ConfFiles))
	for _, f := range c.ConfFiles {
		declared[strings.TrimPrefix(f, "/")] = true
	}
	for _, a := range c.Assets {
		if a.Kind == SourceSymlink {
			continue
		}
		if declared[a.Dest] || strings.HasPrefix(a.Dest, "etc/") {
			a.IsConf = true
		}
	}
}

func (c *Config) checkDuplicateDests() error {
	seen := make(map[string]string, len(c.Assets))
	for _, a := range c.Assets {
		if prev, dup := seen[a.Dest]; dup {
			return &AssetError{Source: a.Source, Msg: fmt.Sprintf("destination %s already used by %s", a.Dest, prev)}
		}
		seen[a.Dest] = a.Source
	}
	return nil
}

// InstalledSize returns the cumulative installed size in KiB: each
// regular file's byte length rounded up to a whole KiB.
func InstalledSize(assets []*Asset) int64 {
	var kib int64
	for _, a := range assets {
		if a.Kind == SourceSymlink {
			continue
		}
		kib += (a.Size() + 1023) / 1024
	}
	return kib
}
