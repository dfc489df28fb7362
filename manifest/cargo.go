package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/debpack/debpack/logx"
)

// LoadOptions carries the caller-side knobs that are not part of the
// project manifest itself.
type LoadOptions struct {
	// ManifestPath is the path to Cargo.toml.
	ManifestPath string
	// Target is the compiler triple; empty means the host.
	Target string
	// HostTriple is the triple used when Target is empty.
	HostTriple string
	// Variant selects a [package.metadata.deb.variants.<name>] block.
	Variant string
	// OutputPath overrides the .deb destination.
	OutputPath string
	// VersionOverride replaces the manifest version entirely.
	VersionOverride string

	Fast    bool
	NoBuild bool
	Tools   ToolPaths
}

type cargoManifest struct {
	Package cargoPackage              `toml:"package"`
	Bin     []cargoTarget             `toml:"bin"`
	Profile map[string]toml.Primitive `toml:"profile"`
}

type cargoPackage struct {
	Name          string   `toml:"name"`
	Version       string   `toml:"version"`
	Authors       []string `toml:"authors"`
	License       string   `toml:"license"`
	LicenseFile   string   `toml:"license-file"`
	Description   string   `toml:"description"`
	Homepage      string   `toml:"homepage"`
	Documentation string   `toml:"documentation"`
	Repository    string   `toml:"repository"`
	Readme        string   `toml:"readme"`
	Metadata      struct {
		Deb *DebMetadata `toml:"deb"`
	} `toml:"metadata"`
}

type cargoTarget struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type releaseProfile struct {
	Debug interface{} `toml:"debug"`
}

// DebMetadata is the [package.metadata.deb] table. All keys are
// kebab-case; unknown keys are rejected by the front end before the core
// ever sees them.
type DebMetadata struct {
	Name                 string                  `toml:"name"`
	Maintainer           string                  `toml:"maintainer"`
	Copyright            string                  `toml:"copyright"`
	LicenseFile          []string                `toml:"license-file"`
	Changelog            string                  `toml:"changelog"`
	Depends              string                  `toml:"depends"`
	PreDepends           string                  `toml:"pre-depends"`
	Recommends           string                  `toml:"recommends"`
	Suggests             string                  `toml:"suggests"`
	Enhances             string                  `toml:"enhances"`
	Conflicts            string                  `toml:"conflicts"`
	Breaks               string                  `toml:"breaks"`
	Replaces             string                  `toml:"replaces"`
	Provides             string                  `toml:"provides"`
	ExtendedDescription  string                  `toml:"extended-description"`
	Section              string                  `toml:"section"`
	Priority             string                  `toml:"priority"`
	Revision             string                  `toml:"revision"`
	ConfFiles            []string                `toml:"conf-files"`
	Assets               [][]string              `toml:"assets"`
	MaintainerScripts    string                  `toml:"maintainer-scripts"`
	TriggersFile         string                  `toml:"triggers-file"`
	PreserveSymlinks     *bool                   `toml:"preserve-symlinks"`
	SeparateDebugSymbols *bool                   `toml:"separate-debug-symbols"`
	SystemdUnits         *SystemdUnits           `toml:"systemd-units"`
	Variants             map[string]*DebMetadata `toml:"variants"`
}

// inheritFrom fills every unset field of the variant from the parent
// table, mirroring how variant blocks override the main deb table.
func (d *DebMetadata) inheritFrom(parent *DebMetadata) *DebMetadata {
	out := *d
	if out.Name == "" {
		out.Name = parent.Name
	}
	if out.Maintainer == "" {
		out.Maintainer = parent.Maintainer
	}
	if out.Copyright == "" {
		out.Copyright = parent.Copyright
	}
	if out.LicenseFile == nil {
		out.LicenseFile = parent.LicenseFile
	}
	if out.Changelog == "" {
		out.Changelog = parent.Changelog
	}
	if out.Depends == "" {
		out.Depends = parent.Depends
	}
	if out.PreDepends == "" {
		out.PreDepends = parent.PreDepends
	}
	if out.Recommends == "" {
		out.Recommends = parent.Recommends
	}
	if out.Suggests == "" {
		out.Suggests = parent.Suggests
	}
	if out.Enhances == "" {
		out.Enhances = parent.Enhances
	}
	if out.Conflicts == "" {
		out.Conflicts = parent.Conflicts
	}
	if out.Breaks == "" {
		out.Breaks = parent.Breaks
	}
	if out.Replaces == "" {
		out.Replaces = parent.Replaces
	}
	if out.Provides == "" {
		out.Provides = parent.Provides
	}
	if out.ExtendedDescription == "" {
		out.ExtendedDescription = parent.ExtendedDescription
	}
	if out.Section == "" {
		out.Section = parent.Section
	}
	if out.Priority == "" {
		out.Priority = parent.Priority
	}
	if out.Revision == "" {
		out.Revision = parent.Revision
	}
	if out.ConfFiles == nil {
		out.ConfFiles = parent.ConfFiles
	}
	if out.Assets == nil {
		out.Assets = parent.Assets
	}
	if out.MaintainerScripts == "" {
		out.MaintainerScripts = parent.MaintainerScripts
	}
	if out.TriggersFile == "" {
		out.TriggersFile = parent.TriggersFile
	}
	if out.PreserveSymlinks == nil {
		out.PreserveSymlinks = parent.PreserveSymlinks
	}
	if out.SeparateDebugSymbols == nil {
		out.SeparateDebugSymbols = parent.SeparateDebugSymbols
	}
	if out.SystemdUnits == nil {
		out.SystemdUnits = parent.SystemdUnits
	}
	return &out
}

// Load reads Cargo.toml and builds the frozen Config the assembly
// pipeline consumes. It never touches the build directory: assets are
// resolved later, after the build step had a chance to run.
func Load(opts LoadOptions) (*Config, error) {
	raw, err := os.ReadFile(opts.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read manifest %s: %w", opts.ManifestPath, err)
	}
	var m cargoManifest
	meta, err := toml.Decode(string(raw), &m)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("unable to parse %s: %v", opts.ManifestPath, err)}
	}

	projectDir, err := filepath.Abs(filepath.Dir(opts.ManifestPath))
	if err != nil {
		return nil, err
	}

	deb := m.Package.Metadata.Deb
	if deb == nil {
		deb = &DebMetadata{}
	}
	name := m.Package.Name
	if opts.Variant != "" {
		variant, ok := deb.Variants[opts.Variant]
		if !ok {
			return nil, &ConfigError{
				Field: "variants",
				Msg:   fmt.Sprintf("[package.metadata.deb.variants.%s] not found", opts.Variant),
			}
		}
		// Dash, not underscore: underscores are not allowed in
		// Debian package names.
		name = name + "-" + opts.Variant
		deb = variant.inheritFrom(deb)
	}

	cfg := &Config{
		ProjectDir:   projectDir,
		TargetDir:    targetDir(projectDir),
		Target:       opts.Target,
		OutputPath:   opts.OutputPath,
		Name:         name,
		DebName:      orDefault(deb.Name, name),
		Version:      orDefault(opts.VersionOverride, m.Package.Version),
		Revision:     deb.Revision,
		Variant:      opts.Variant,
		Architecture: DebianArch(orDefault(opts.Target, opts.HostTriple)),

		Maintainer:    deb.Maintainer,
		Homepage:      m.Package.Homepage,
		Documentation: m.Package.Documentation,
		Repository:    m.Package.Repository,
		Section:       deb.Section,
		Priority:      orDefault(deb.Priority, "optional"),

		Description:         m.Package.Description,
		ExtendedDescription: deb.ExtendedDescription,

		Depends:    orDefault(deb.Depends, "$auto"),
		PreDepends: deb.PreDepends,
		Recommends: deb.Recommends,
		Suggests:   deb.Suggests,
		Enhances:   deb.Enhances,
		Conflicts:  deb.Conflicts,
		Breaks:     deb.Breaks,
		Replaces:   deb.Replaces,
		Provides:   deb.Provides,

		License:   m.Package.License,
		Copyright: deb.Copyright,
		Changelog: deb.Changelog,

		ConfFiles:         deb.ConfFiles,
		MaintainerScripts: deb.MaintainerScripts,
		TriggersFile:      deb.TriggersFile,
		SystemdUnits:      deb.SystemdUnits,

		Readme: m.Package.Readme,

		PreserveSymlinks:     deb.PreserveSymlinks != nil && *deb.PreserveSymlinks,
		SeparateDebugSymbols: deb.SeparateDebugSymbols != nil && *deb.SeparateDebugSymbols,
		Strip:                !releaseDebugEnabled(m, meta),
		Fast:                 opts.Fast,
		NoBuild:              opts.NoBuild,
		Tools:                opts.Tools,
	}

	cfg.LicenseFile, cfg.LicenseFileSkipLines, err = licenseFile(deb, m.Package.LicenseFile)
	if err != nil {
		return nil, err
	}

	if cfg.Maintainer == "" && len(m.Package.Authors) > 0 {
		cfg.Maintainer = m.Package.Authors[0]
	}
	if cfg.Copyright == "" {
		if len(m.Package.Authors) == 0 {
			return nil, &ConfigError{Field: "copyright", Msg: "the package must have a copyright or authors property"}
		}
		cfg.Copyright = strings.Join(m.Package.Authors, ", ")
	}
	if cfg.Description == "" {
		logx.Warnf("description field is missing in %s", opts.ManifestPath)
		cfg.Description = fmt.Sprintf("[generated from crate %s]", name)
	}
	if cfg.ExtendedDescription == "" && cfg.Readme != "" {
		body, err := os.ReadFile(cfg.PathInProject(cfg.Readme))
		if err != nil {
			return nil, fmt.Errorf("unable to read readme %s: %w", cfg.Readme, err)
		}
		cfg.ExtendedDescription = string(body)
	}

	cfg.Binaries = binaries(&m, projectDir)
	cfg.specs, err = assetSpecs(deb.Assets)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// targetDir honors CARGO_TARGET_DIR, falling back to <project>/target.
func targetDir(projectDir string) string {
	if dir := os.Getenv("CARGO_TARGET_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(projectDir, "target")
}

// licenseFile interprets the two forms of license-file: the deb table's
// ["path", "skip-lines"] pair, or the plain package field.
func licenseFile(deb *DebMetadata, pkgLicenseFile string) (string, int, error) {
	if len(deb.LicenseFile) == 0 {
		return pkgLicenseFile, 0, nil
	}
	file := deb.LicenseFile[0]
	skip := 0
	if len(deb.LicenseFile) > 1 {
		n, err := strconv.Atoi(deb.LicenseFile[1])
		if err != nil {
			return "", 0, &ConfigError{Field: "license-file", Msg: "invalid number of lines to skip"}
		}
		skip = n
	}
	return file, skip, nil
}

// binaries lists the executable targets: explicit [[bin]] entries, or
// the package itself when src/main.rs exists.
func binaries(m *cargoManifest, projectDir string) []string {
	if len(m.Bin) > 0 {
		names := make([]string, 0, len(m.Bin))
		for _, b := range m.Bin {
			if b.Name != "" {
				names = append(names, b.Name)
			}
		}
		return names
	}
	if _, err := os.Stat(filepath.Join(projectDir, "src", "main.rs")); err == nil {
		return []string{m.Package.Name}
	}
	return nil
}

// assetSpecs parses the assets table: each row is [source, dest, mode].
func assetSpecs(rows [][]string) ([]AssetSpec, error) {
	specs := make([]AssetSpec, 0, len(rows))
	for _, row := range rows {
		if len(row) != 3 {
			return nil, &ConfigError{Field: "assets", Msg: "each asset needs [source, destination, mode]"}
		}
		mode, err := strconv.ParseInt(row[2], 8, 32)
		if err != nil {
			return nil, &ConfigError{Field: "assets", Msg: fmt.Sprintf("invalid octal mode %q", row[2])}
		}
		specs = append(specs, AssetSpec{
			Source:  row[0],
			Dest:    row[1],
			Mode:    mode,
			IsBuilt: strings.HasPrefix(row[0], "target/release/") || strings.HasPrefix(row[0], "target/debug/"),
		})
	}
	return specs, nil
}

// releaseDebugEnabled reports whether [profile.release] requests debug
// info, in which case binaries are not stripped by default. The value
// may be a boolean or an integer debug level.
func releaseDebugEnabled(m cargoManifest, meta toml.MetaData) bool {
	prim, ok := m.Profile["release"]
	if !ok {
		return false
	}
	var profile releaseProfile
	if err := meta.PrimitiveDecode(prim, &profile); err != nil {
		return false
	}
	switch v := profile.Debug.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	}
	return false
}

// DeclaredSpecs exposes the raw asset specs, used by the front end for
// reporting.
func (c *Config) DeclaredSpecs() []AssetSpec { return c.specs }

// SetSpecs replaces the asset specs before resolution. Tests and the
// front end use it to construct configurations without a manifest.
func (c *Config) SetSpecs(specs []AssetSpec) { c.specs = specs }
