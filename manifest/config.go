// Package manifest turns a Cargo-style project manifest into the frozen,
// validated configuration consumed by the package assembly pipeline, and
// resolves the declared assets into the concrete file list that ends up in
// the data archive.
package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Priority values accepted by the Debian policy.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-archive.html#priorities
var Priorities = []string{"required", "important", "standard", "optional", "extra"}

// ConfigError reports a missing required field or an impossible
// combination of settings.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// AssetError reports a problem with a declared asset: a glob that matched
// nothing, a missing source file, or two assets claiming the same
// destination.
type AssetError struct {
	Source string
	Msg    string
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s: %s", e.Source, e.Msg)
}

// ToolPaths overrides the external helpers looked up via PATH.
// Zero values mean "use the conventional name".
type ToolPaths struct {
	Ldd       string `yaml:"ldd"`
	Dpkg      string `yaml:"dpkg"`
	DpkgQuery string `yaml:"dpkg-query"`
	Strip     string `yaml:"strip"`
	Objcopy   string `yaml:"objcopy"`
}

// Ldd returns the configured ldd path or "ldd".
func (t ToolPaths) LddPath() string       { return orDefault(t.Ldd, "ldd") }
func (t ToolPaths) DpkgPath() string      { return orDefault(t.Dpkg, "dpkg") }
func (t ToolPaths) DpkgQueryPath() string { return orDefault(t.DpkgQuery, "dpkg-query") }
func (t ToolPaths) StripPath() string     { return orDefault(t.Strip, "strip") }
func (t ToolPaths) ObjcopyPath() string   { return orDefault(t.Objcopy, "objcopy") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// SystemdUnits configures the systemd unit integration.
//
// The four toggles mirror the dh_installsystemd switches, expressed in the
// positive sense: Enable and Start default to true when the block is
// present but the keys are omitted.
type SystemdUnits struct {
	UnitScriptsDir      string `toml:"unit-scripts"`
	UnitName            string `toml:"unit-name"`
	Enable              *bool  `toml:"enable"`
	Start               *bool  `toml:"start"`
	RestartAfterUpgrade bool   `toml:"restart-after-upgrade"`
	StopOnUpgrade       bool   `toml:"stop-on-upgrade"`
}

// EnableUnits reports whether units should be enabled on install.
func (s *SystemdUnits) EnableUnits() bool { return s.Enable == nil || *s.Enable }

// StartUnits reports whether units should be started on install.
func (s *SystemdUnits) StartUnits() bool { return s.Start == nil || *s.Start }

// Config is the frozen, validated input to the package assembly pipeline.
// It is constructed once from the project manifest, handed to the driver,
// and discarded after the output file is flushed.
type Config struct {
	// ProjectDir is the directory containing the manifest.
	ProjectDir string
	// TargetDir is the build output root (CARGO_TARGET_DIR).
	TargetDir string
	// Target is the compiler triple; empty means the host machine.
	Target string
	// OutputPath is the user-configured destination for the .deb.
	// Empty means <TargetDir>/debian/.
	OutputPath string

	// Name is the project name; DebName the package name, usually the
	// same unless overridden by a variant or an explicit name.
	Name    string
	DebName string
	// Version is the upstream version; Revision the optional Debian
	// revision appended as "-N".
	Version  string
	Revision string
	Variant  string

	// Architecture is the Debian architecture name (amd64, arm64, ...),
	// not the compiler triple.
	Architecture string

	Maintainer string
	Homepage   string
	// Documentation is the fallback for Homepage in the control file.
	Documentation string
	Repository    string
	Section       string
	Priority      string

	// Description is the single-line synopsis; ExtendedDescription the
	// multi-line body folded into the control file.
	Description         string
	ExtendedDescription string

	// Relationship fields, each a free-form dependency expression.
	// Depends may contain the $auto sentinel.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html
	Depends    string
	PreDepends string
	Recommends string
	Suggests   string
	Enhances   string
	Conflicts  string
	Breaks     string
	Replaces   string
	Provides   string

	License              string
	LicenseFile          string
	LicenseFileSkipLines int
	Copyright            string
	Changelog            string

	ConfFiles         []string
	MaintainerScripts string
	TriggersFile      string
	SystemdUnits      *SystemdUnits

	// Binaries lists the executable targets the build produces, used to
	// inject default assets when none are declared.
	Binaries []string
	Readme   string

	Assets   []*Asset
	specs    []AssetSpec
	resolved bool

	PreserveSymlinks     bool
	SeparateDebugSymbols bool
	Strip                bool
	Fast                 bool
	NoBuild              bool

	Tools ToolPaths
}

// Validate checks the combinations the loader cannot express as types.
func (c *Config) Validate() error {
	if c.Name == "" {
		return &ConfigError{Field: "name", Msg: "package name is required"}
	}
	if c.Version == "" {
		return &ConfigError{Field: "version", Msg: "package version is required"}
	}
	if c.Maintainer == "" {
		return &ConfigError{Field: "maintainer", Msg: "a maintainer or authors entry is required"}
	}
	if c.Priority != "" && !contains(Priorities, c.Priority) {
		return &ConfigError{Field: "priority", Msg: fmt.Sprintf("%q is not one of %s", c.Priority, strings.Join(Priorities, ", "))}
	}
	if c.SystemdUnits != nil && c.MaintainerScripts == "" && c.SystemdUnits.UnitScriptsDir == "" {
		return &ConfigError{Field: "systemd-units", Msg: "requires a maintainer-scripts or unit-scripts directory"}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DebVersion returns the full Debian version string, appending the
// revision as a "-N" suffix when configured and not already present.
func (c *Config) DebVersion() string {
	if c.Revision == "" || strings.HasSuffix(c.Version, "-"+c.Revision) {
		return c.Version
	}
	return c.Version + "-" + c.Revision
}

// Filename returns the canonical output filename,
// <name>_<version>[_<variant>]_<arch>.deb. The variant segment appears
// only when the variant did not already rename the package.
func (c *Config) Filename() string {
	if c.Variant != "" && !strings.Contains(c.DebName, c.Variant) {
		return fmt.Sprintf("%s_%s_%s_%s.deb", c.DebName, c.DebVersion(), c.Variant, c.Architecture)
	}
	return fmt.Sprintf("%s_%s_%s.deb", c.DebName, c.DebVersion(), c.Architecture)
}

// BuildDir returns the directory the compiler writes binaries to,
// accounting for cross-compilation target subdirectories.
func (c *Config) BuildDir() string {
	if c.Target != "" {
		return filepath.Join(c.TargetDir, c.Target, "release")
	}
	return filepath.Join(c.TargetDir, "release")
}

// DebDir returns the staging directory for intermediate files and the
// default output location.
func (c *Config) DebDir() string {
	return filepath.Join(c.TargetDir, "debian")
}

// OutputFile returns the absolute path the finished package is renamed to.
func (c *Config) OutputFile() string {
	name := c.Filename()
	if c.OutputPath != "" {
		if strings.HasSuffix(c.OutputPath, "/") || isDir(c.OutputPath) {
			return filepath.Join(c.OutputPath, name)
		}
		return c.OutputPath
	}
	return filepath.Join(c.DebDir(), name)
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

// PathInProject resolves rel against the project directory.
func (c *Config) PathInProject(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.ProjectDir, rel)
}

// UnitScriptsDir returns the directory scanned for systemd unit files,
// defaulting to the maintainer scripts directory.
func (c *Config) UnitScriptsDir() string {
	if c.SystemdUnits != nil && c.SystemdUnits.UnitScriptsDir != "" {
		return c.PathInProject(c.SystemdUnits.UnitScriptsDir)
	}
	return c.PathInProject(c.MaintainerScripts)
}

// UnitName returns the configured systemd unit filter, if any.
func (c *Config) UnitName() string {
	if c.SystemdUnits == nil {
		return ""
	}
	return c.SystemdUnits.UnitName
}

// BuiltBinaries returns the resolved assets that came out of the build
// directory and look like executables or shared objects. These are the
// candidates for stripping, debug split, and dependency analysis.
func (c *Config) BuiltBinaries() []*Asset {
	var out []*Asset
	for _, a := range c.Assets {
		if a.IsBuilt && (a.IsExecutable() || a.IsDynamicLibrary()) {
			out = append(out, a)
		}
	}
	return out
}

// RepositoryType guesses the source control system behind the repository
// URL for the Vcs-* control fields. Cargo encourages user-friendly URLs,
// so this is best-effort.
func (c *Config) RepositoryType() string {
	repo := c.Repository
	switch {
	case repo == "":
		return ""
	case strings.HasPrefix(repo, "git+"), strings.HasSuffix(repo, ".git"),
		strings.Contains(repo, "git@"), strings.Contains(repo, "github.com"),
		strings.Contains(repo, "gitlab.com"):
		return "Git"
	case strings.HasPrefix(repo, "hg+"), strings.Contains(repo, "hg@"), strings.Contains(repo, "/hg."):
		return "Hg"
	case strings.HasPrefix(repo, "svn+"), strings.Contains(repo, "/svn."):
		return "Svn"
	}
	return ""
}

// DocPath returns the data-archive path of a documentation file for this
// package, e.g. usr/share/doc/<package>/copyright.
func (c *Config) DocPath(name string) string {
	return path.Join("usr/share/doc", c.DebName, name)
}
