package deb

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/debpack/debpack/manifest"
)

// generateControl renders the binary package control paragraph.
// depends is the fully resolved Depends value, with any $auto sentinel
// already replaced.
func generateControl(cfg *manifest.Config, depends string, installedSize int64) string {
	var b strings.Builder

	writeField := func(field ControlField, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", field, value)
		}
	}

	writeField(FieldPackage, cfg.DebName)
	writeField(FieldVersion, cfg.DebVersion())
	writeField(FieldArchitecture, cfg.Architecture)

	if cfg.Repository != "" {
		writeField(FieldVcsBrowser, cfg.Repository)
		switch cfg.RepositoryType() {
		case "Git":
			writeField(FieldVcsGit, cfg.Repository)
		case "Hg":
			writeField(FieldVcsHg, cfg.Repository)
		case "Svn":
			writeField(FieldVcsSvn, cfg.Repository)
		}
	}

	// The documentation URL stands in when no homepage is declared.
	if cfg.Homepage != "" {
		writeField(FieldHomepage, cfg.Homepage)
	} else {
		writeField(FieldHomepage, cfg.Documentation)
	}

	writeField(FieldSection, cfg.Section)
	writeField(FieldPriority, cfg.Priority)

	writeField(FieldStandardsVersion, StandardsVersion)
	writeField(FieldMaintainer, cfg.Maintainer)
	writeField(FieldInstalledSize, fmt.Sprintf("%d", installedSize))

	writeField(FieldDepends, depends)
	writeField(FieldPreDepends, cfg.PreDepends)
	writeField(FieldRecommends, cfg.Recommends)
	writeField(FieldSuggests, cfg.Suggests)
	writeField(FieldEnhances, cfg.Enhances)
	writeField(FieldConflicts, cfg.Conflicts)
	writeField(FieldBreaks, cfg.Breaks)
	writeField(FieldReplaces, cfg.Replaces)
	writeField(FieldProvides, cfg.Provides)

	writeField(FieldDescription, strings.TrimSpace(cfg.Description))
	for _, line := range foldDescription(cfg.ExtendedDescription) {
		fmt.Fprintf(&b, " %s\n", line)
	}

	return b.String()
}

// generateMd5sums renders the md5sums manifest: hash, two spaces, then
// the path without a leading slash, sorted by path.
func generateMd5sums(sums map[string]string) string {
	paths := make([]string, 0, len(sums))
	for p := range sums {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s  %s\n", sums[p], strings.TrimPrefix(p, "/"))
	}
	return b.String()
}

// generateConffiles lists the configuration files dpkg must preserve
// across upgrades. Paths here are absolute, unlike md5sums.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-files.html#s-config-files
func generateConffiles(assets []*manifest.Asset) string {
	var b strings.Builder
	for _, a := range assets {
		if a.IsConf {
			fmt.Fprintf(&b, "/%s\n", a.Dest)
		}
	}
	return b.String()
}

// controlArchive holds the members of control.tar.gz before assembly.
type controlArchive struct {
	Control   string
	Md5sums   string
	Conffiles string
	Triggers  string
	Scripts   map[ControlFile][]byte
}

// Bytes assembles and compresses the control archive. Member order is
// fixed so the output stays deterministic.
func (c *controlArchive) Bytes(ts time.Time, fast bool) ([]byte, error) {
	var buf bytes.Buffer
	tb := newTarBuilder(&buf, ts)

	add := func(name ControlFile, body string, mode int64) error {
		if body == "" {
			return nil
		}
		if err := tb.AddFile(string(name), []byte(body), mode); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		return nil
	}

	if err := add(FileControl, c.Control, 0o644); err != nil {
		return nil, err
	}
	if err := add(FileMd5sums, c.Md5sums, 0o644); err != nil {
		return nil, err
	}
	if err := add(FileConffiles, c.Conffiles, 0o644); err != nil {
		return nil, err
	}
	if err := add(FileTriggers, c.Triggers, 0o644); err != nil {
		return nil, err
	}
	for _, name := range MaintainerScripts {
		if err := add(name, string(c.Scripts[name]), 0o755); err != nil {
			return nil, err
		}
	}

	if err := tb.Close(); err != nil {
		return nil, err
	}
	return gzipped(buf.Bytes(), fast)
}
