package deb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/debpack/debpack/deps"
	"github.com/debpack/debpack/execx"
	"github.com/debpack/debpack/logx"
	"github.com/debpack/debpack/manifest"
	"github.com/debpack/debpack/strip"
	"github.com/debpack/debpack/systemd"
)

// Builder assembles a package from a resolved configuration. The
// zero-value Runner defaults to running real commands; tests inject a
// stub.
type Builder struct {
	Runner execx.Runner
}

func (b *Builder) runner() execx.Runner {
	if b.Runner == nil {
		return execx.System{}
	}
	return b.Runner
}

// Build runs the whole assembly pipeline and writes the package to
// cfg.OutputFile(), atomically. It returns the final path.
//
// The context is checked between stages; a canceled build leaves no
// partial output behind.
func (b *Builder) Build(ctx context.Context, cfg *manifest.Config) (string, error) {
	ts := buildTimestamp(sourceDateEpoch())

	if err := cfg.ResolveAssets(); err != nil {
		return "", fmt.Errorf("resolving assets: %w", err)
	}
	if err := b.installSystemdUnits(cfg); err != nil {
		return "", err
	}
	if err := b.stripBinaries(ctx, cfg); err != nil {
		return "", err
	}
	if err := b.addDocAssets(cfg); err != nil {
		return "", err
	}
	cfg.MarkConfFiles()

	depends, err := b.resolveDepends(ctx, cfg)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	archive, err := b.assemble(ctx, cfg, depends, ts)
	if err != nil {
		return "", err
	}
	return writeAtomic(cfg.OutputFile(), archive)
}

// installSystemdUnits discovers unit files and adds them to the asset
// list. Script fragments are applied later, once the hand-written
// maintainer scripts are loaded.
func (b *Builder) installSystemdUnits(cfg *manifest.Config) error {
	if cfg.SystemdUnits == nil {
		return nil
	}
	units, err := systemd.FindUnits(cfg.UnitScriptsDir(), cfg.DebName, cfg.UnitName())
	if err != nil {
		return fmt.Errorf("finding systemd units: %w", err)
	}
	if len(units) == 0 {
		return fmt.Errorf("systemd-units is configured but no unit files were found in %s", cfg.UnitScriptsDir())
	}
	for _, u := range units {
		logx.Infof("installing systemd unit %s", u.Name)
	}
	cfg.Assets = append(cfg.Assets, systemd.Assets(units)...)
	return nil
}

func (b *Builder) stripBinaries(ctx context.Context, cfg *manifest.Config) error {
	s := &strip.Stripper{
		Runner:  b.runner(),
		Tools:   cfg.Tools,
		WorkDir: filepath.Join(cfg.DebDir(), "stripped"),
	}
	debugAssets, err := s.Process(ctx, cfg)
	if err != nil {
		return fmt.Errorf("stripping binaries: %w", err)
	}
	cfg.Assets = append(cfg.Assets, debugAssets...)
	return nil
}

// addDocAssets generates the copyright file and, when configured, the
// compressed changelog.
func (b *Builder) addDocAssets(cfg *manifest.Config) error {
	copyright, err := generateCopyright(cfg)
	if err != nil {
		return err
	}
	cfg.Assets = append(cfg.Assets, manifest.NewDataAsset(copyright, cfg.DocPath("copyright"), 0o644))

	changelog, err := changelogAsset(cfg)
	if err != nil {
		return err
	}
	if changelog != nil {
		cfg.Assets = append(cfg.Assets, changelog)
	}
	return nil
}

func (b *Builder) resolveDepends(ctx context.Context, cfg *manifest.Config) (string, error) {
	r := &deps.Resolver{Runner: b.runner(), Tools: cfg.Tools}
	depends, err := r.Resolve(ctx, cfg.Depends, cfg.BuiltBinaries())
	if err != nil {
		return "", fmt.Errorf("resolving dependencies: %w", err)
	}
	return depends, nil
}

// assemble builds both inner archives and the final ar container.
func (b *Builder) assemble(ctx context.Context, cfg *manifest.Config, depends string, ts time.Time) (*Archive, error) {
	dataTarXz, sums, err := buildDataArchive(cfg.Assets, ts, cfg.Fast)
	if err != nil {
		return nil, fmt.Errorf("building data archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scripts, err := b.maintainerScripts(cfg)
	if err != nil {
		return nil, err
	}
	triggers, err := b.triggers(cfg)
	if err != nil {
		return nil, err
	}

	control := &controlArchive{
		Control:   generateControl(cfg, depends, manifest.InstalledSize(cfg.Assets)),
		Md5sums:   generateMd5sums(sums),
		Conffiles: generateConffiles(cfg.Assets),
		Triggers:  triggers,
		Scripts:   scripts,
	}
	controlTarGz, err := control.Bytes(ts, cfg.Fast)
	if err != nil {
		return nil, fmt.Errorf("building control archive: %w", err)
	}
	return &Archive{ControlTarGz: controlTarGz, DataTarXz: dataTarXz, Timestamp: ts}, nil
}

// maintainerScripts loads the hand-written hook scripts and splices in
// the generated systemd fragments.
func (b *Builder) maintainerScripts(cfg *manifest.Config) (map[ControlFile][]byte, error) {
	dir := ""
	if cfg.MaintainerScripts != "" {
		dir = cfg.PathInProject(cfg.MaintainerScripts)
	}
	prefixes := []string{cfg.DebName}
	if cfg.Name != cfg.DebName {
		prefixes = append(prefixes, cfg.Name)
	}
	scripts, err := LoadMaintainerScripts(dir, prefixes)
	if err != nil {
		return nil, err
	}

	if cfg.SystemdUnits != nil {
		units, err := systemd.FindUnits(cfg.UnitScriptsDir(), cfg.DebName, cfg.UnitName())
		if err != nil {
			return nil, err
		}
		fragments, err := systemd.Fragments(units, cfg.SystemdUnits)
		if err != nil {
			return nil, fmt.Errorf("generating systemd fragments: %w", err)
		}
		byFile := make(map[ControlFile]string, len(fragments))
		for name, frag := range fragments {
			byFile[ControlFile(name)] = frag
		}
		ApplyFragments(scripts, byFile)
	}
	return scripts, nil
}

func (b *Builder) triggers(cfg *manifest.Config) (string, error) {
	if cfg.TriggersFile == "" {
		return "", nil
	}
	body, err := os.ReadFile(cfg.PathInProject(cfg.TriggersFile))
	if err != nil {
		return "", fmt.Errorf("unable to read triggers file %s: %w", cfg.TriggersFile, err)
	}
	return string(body), nil
}

// writeAtomic writes the archive to a temporary file next to the final
// destination and renames it into place, so a failed build never leaves
// a truncated .deb behind.
func writeAtomic(dest string, archive *Archive) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return "", err
	}
	if _, err := archive.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing package: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return dest, nil
}

// sourceDateEpoch reads the reproducible-builds timestamp convention.
// Unset or invalid values pin the archive to the epoch itself, which
// keeps repeated builds byte-identical.
//
// Reference: https://reproducible-builds.org/specs/source-date-epoch/
func sourceDateEpoch() int64 {
	v := os.Getenv("SOURCE_DATE_EPOCH")
	if v == "" {
		return 0
	}
	epoch, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logx.Warnf("ignoring invalid SOURCE_DATE_EPOCH %q", v)
		return 0
	}
	return epoch
}
