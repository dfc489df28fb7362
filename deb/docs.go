package deb

import (
	"fmt"
	"os"
	"strings"

	"github.com/debpack/debpack/manifest"
)

// generateCopyright renders the machine-readable copyright file
// installed under usr/share/doc. The license text, if a file is
// declared, follows the header as an indented block.
//
// Reference: https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/
func generateCopyright(cfg *manifest.Config) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Format: https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/\n")
	fmt.Fprintf(&b, "Upstream-Name: %s\n", cfg.Name)
	if source := firstOf(cfg.Repository, cfg.Homepage); source != "" {
		fmt.Fprintf(&b, "Source: %s\n", source)
	}
	fmt.Fprintf(&b, "Copyright: %s\n", cfg.Copyright)
	if cfg.License != "" {
		fmt.Fprintf(&b, "License: %s\n", cfg.License)
	}

	if cfg.LicenseFile != "" {
		body, err := os.ReadFile(cfg.PathInProject(cfg.LicenseFile))
		if err != nil {
			return nil, fmt.Errorf("unable to read license file %s: %w", cfg.LicenseFile, err)
		}
		lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
		if cfg.LicenseFileSkipLines < len(lines) {
			lines = lines[cfg.LicenseFileSkipLines:]
		} else {
			lines = nil
		}
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				b.WriteString(" .\n")
				continue
			}
			fmt.Fprintf(&b, " %s\n", line)
		}
	}
	return []byte(b.String()), nil
}

// changelogAsset gzips the declared changelog and returns it as the
// conventional changelog.Debian.gz documentation asset, or nil when no
// changelog is configured.
func changelogAsset(cfg *manifest.Config) (*manifest.Asset, error) {
	if cfg.Changelog == "" {
		return nil, nil
	}
	body, err := os.ReadFile(cfg.PathInProject(cfg.Changelog))
	if err != nil {
		return nil, fmt.Errorf("unable to read changelog %s: %w", cfg.Changelog, err)
	}
	gz, err := gzipped(body, false)
	if err != nil {
		return nil, err
	}
	return manifest.NewDataAsset(gz, cfg.DocPath("changelog.Debian.gz"), 0o644), nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
