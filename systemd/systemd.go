// Package systemd implements the dh_installsystemd behavior: discovery
// of unit files shipped next to the maintainer scripts, their install
// locations, and the generated maintainer script fragments that enable
// and start them.
//
// Reference: https://manpages.debian.org/unstable/debhelper/dh_installsystemd.1.en.html
package systemd

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/debpack/debpack/manifest"
)

//go:embed autoscripts
var autoscripts embed.FS

// unitSuffixes are the unit types dh_installsystemd picks up. A
// "tmpfile" is not a unit at all but a tmpfiles.d configuration, and
// installs elsewhere.
var unitSuffixes = []string{"mount", "path", "service", "socket", "target", "timer", "tmpfile"}

// UnitFile is a discovered systemd unit and where it installs.
type UnitFile struct {
	// Source is the path of the file in the project.
	Source string
	// Dest is the data-archive path, without a leading slash.
	Dest string
	// Name is the installed unit filename, e.g. "foo.service" or
	// "foo@.service".
	Name string
	// IsTemplate marks template units, which cannot be started
	// directly.
	IsTemplate bool
	// IsTmpfile marks tmpfiles.d configuration.
	IsTmpfile bool
}

// FindUnits scans dir for unit files belonging to the package. A file
// may be named after the package, after the configured unit name, or
// after both joined with a dot; the "@" template marker goes before the
// suffix. The installed name drops the package prefix.
func FindUnits(dir, pkg, unitName string) ([]UnitFile, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var units []UnitFile
	for _, suffix := range unitSuffixes {
		for _, template := range []string{"", "@"} {
			source, installAs, ok := findUnitFile(dir, pkg, unitName, template, suffix)
			if !ok {
				continue
			}
			units = append(units, unitFile(source, installAs, template, suffix))
		}
	}
	return units, nil
}

// findUnitFile tries the filename patterns in priority order and
// returns the first that exists.
func findUnitFile(dir, pkg, unitName, template, suffix string) (source, installAs string, ok bool) {
	type candidate struct{ base, installAs string }
	var candidates []candidate
	if unitName != "" {
		candidates = append(candidates,
			candidate{pkg + "." + unitName, unitName},
			candidate{pkg, unitName},
			candidate{unitName, unitName},
		)
	} else {
		candidates = append(candidates, candidate{pkg, pkg})
	}

	for _, c := range candidates {
		p := filepath.Join(dir, c.base+template+"."+suffix)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p, c.installAs, true
		}
	}
	return "", "", false
}

func unitFile(source, installAs, template, suffix string) UnitFile {
	if suffix == "tmpfile" {
		return UnitFile{
			Source:    source,
			Dest:      path.Join("usr/lib/tmpfiles.d", installAs+".conf"),
			Name:      installAs + ".conf",
			IsTmpfile: true,
		}
	}
	name := installAs + template + "." + suffix
	return UnitFile{
		Source:     source,
		Dest:       path.Join("lib/systemd/system", name),
		Name:       name,
		IsTemplate: template == "@",
	}
}

// Assets converts discovered units into installable assets.
func Assets(units []UnitFile) []*manifest.Asset {
	assets := make([]*manifest.Asset, 0, len(units))
	for _, u := range units {
		assets = append(assets, manifest.NewAsset(u.Source, u.Dest, 0o644, false))
	}
	return assets
}

// Fragments generates the maintainer script fragments for the units,
// keyed by script name ("postinst", "prerm", "postrm").
func Fragments(units []UnitFile, opts *manifest.SystemdUnits) (map[string]string, error) {
	out := map[string]string{}
	if len(units) == 0 {
		return out, nil
	}
	var postinst, prerm, postrm strings.Builder

	var tmpfiles, startable, enableNames []string
	for _, u := range units {
		if u.IsTmpfile {
			tmpfiles = append(tmpfiles, u.Name)
			continue
		}
		if !u.IsTemplate {
			startable = append(startable, u.Name)
		}
		names, err := installableNames(u)
		if err != nil {
			return nil, err
		}
		enableNames = append(enableNames, names...)
	}

	if len(tmpfiles) > 0 {
		frag, err := autoscript("postinst-init-tmpfiles", map[string]string{
			"tmpfiles": strings.Join(tmpfiles, " "),
		})
		if err != nil {
			return nil, err
		}
		postinst.WriteString(frag)
	}

	enableScript := "postinst-systemd-dont-enable"
	if opts.EnableUnits() {
		enableScript = "postinst-systemd-enable"
	}
	for _, name := range enableNames {
		frag, err := autoscript(enableScript, map[string]string{
			"unit":         name,
			"unit_escaped": shellEscape(name),
		})
		if err != nil {
			return nil, err
		}
		postinst.WriteString(frag)
	}

	if len(startable) > 0 {
		if err := startStopFragments(&postinst, &prerm, startable, opts); err != nil {
			return nil, err
		}
	}

	if len(startable) > 0 || len(enableNames) > 0 {
		postrmScript := "postrm-systemd-reload-only"
		if len(enableNames) > 0 {
			postrmScript = "postrm-systemd"
		}
		frag, err := autoscript(postrmScript, map[string]string{
			"units": joinEscaped(enableNames),
		})
		if err != nil {
			return nil, err
		}
		postrm.WriteString(frag)
	}

	if postinst.Len() > 0 {
		out["postinst"] = postinst.String()
	}
	if prerm.Len() > 0 {
		out["prerm"] = prerm.String()
	}
	if postrm.Len() > 0 {
		out["postrm"] = postrm.String()
	}
	return out, nil
}

// startStopFragments picks the upgrade behavior. Restarting after the
// new version is unpacked is the least disruptive, stopping across the
// upgrade is available for services that cannot survive a file swap,
// and with neither flag a running service is left alone on upgrade.
func startStopFragments(postinst, prerm *strings.Builder, startable []string, opts *manifest.SystemdUnits) error {
	units := joinEscaped(startable)

	prermScript := "prerm-systemd"
	if opts.StopOnUpgrade && !opts.RestartAfterUpgrade {
		prermScript = "prerm-systemd-stop"
	}
	frag, err := autoscript(prermScript, map[string]string{"units": units})
	if err != nil {
		return err
	}
	prerm.WriteString(frag)

	if !opts.StartUnits() {
		return nil
	}
	switch {
	case opts.RestartAfterUpgrade:
		frag, err = autoscript("postinst-systemd-restart", map[string]string{
			"units":          units,
			"restart_action": "restart",
		})
	case opts.StopOnUpgrade:
		frag, err = autoscript("postinst-systemd-restart", map[string]string{
			"units":          units,
			"restart_action": "start",
		})
	default:
		frag, err = autoscript("postinst-systemd-start", map[string]string{"units": units})
	}
	if err != nil {
		return err
	}
	postinst.WriteString(frag)
	return nil
}

// installableNames returns the names deb-systemd-helper should manage
// for a unit: the unit itself when it has an [Install] section, plus
// any Alias= and Also= entries.
func installableNames(u UnitFile) ([]string, error) {
	body, err := os.ReadFile(u.Source)
	if err != nil {
		return nil, fmt.Errorf("unable to read unit %s: %w", u.Source, err)
	}
	info := parseUnit(string(body))
	var names []string
	if info.hasInstall {
		names = append(names, u.Name)
	}
	names = append(names, info.aliases...)
	names = append(names, info.also...)
	return names, nil
}

type unitInfo struct {
	hasInstall bool
	aliases    []string
	also       []string
}

// parseUnit extracts the [Install] section details that drive the
// enable fragments.
func parseUnit(body string) unitInfo {
	var info unitInfo
	section := ""
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line
			if section == "[Install]" {
				info.hasInstall = true
			}
			continue
		}
		if section != "[Install]" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Alias":
			info.aliases = append(info.aliases, strings.Fields(value)...)
		case "Also":
			info.also = append(info.also, strings.Fields(value)...)
		}
	}
	return info
}

// autoscript loads an embedded fragment and expands its placeholders.
func autoscript(name string, vars map[string]string) (string, error) {
	body, err := autoscripts.ReadFile("autoscripts/" + name)
	if err != nil {
		return "", fmt.Errorf("missing autoscript %s: %w", name, err)
	}
	s := string(body)
	for key, value := range vars {
		s = strings.ReplaceAll(s, "{"+key+"}", value)
	}
	return s, nil
}

// shellEscape quotes a unit name for safe interpolation into the
// generated sh fragments. Plain names pass through untouched.
func shellEscape(s string) string {
	if !strings.ContainsAny(s, " \t\"'\\$`!*?;&|<>()") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func joinEscaped(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = shellEscape(n)
	}
	return strings.Join(escaped, " ")
}
