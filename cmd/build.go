package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/debpack/debpack/deb"
	"github.com/debpack/debpack/execx"
	"github.com/debpack/debpack/logx"
	"github.com/debpack/debpack/manifest"
)

var buildOpts struct {
	target     string
	variant    string
	output     string
	debVersion string
	fast       bool
	noBuild    bool
	noStrip    bool
	separate   bool
	install    bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the project and assemble the .deb package",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest-path")
		return runBuild(cmd.Context(), manifestPath)
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildOpts.target, "target", "", "Rust target triple to cross-compile for")
	buildCmd.Flags().StringVar(&buildOpts.variant, "variant", "", "Package variant to build")
	buildCmd.Flags().StringVarP(&buildOpts.output, "output", "o", "", "Output file or directory for the .deb")
	buildCmd.Flags().StringVar(&buildOpts.debVersion, "deb-version", "", "Override the package version")
	buildCmd.Flags().BoolVar(&buildOpts.fast, "fast", false, "Use faster, lighter compression")
	buildCmd.Flags().BoolVar(&buildOpts.noBuild, "no-build", false, "Assume the project is already built")
	buildCmd.Flags().BoolVar(&buildOpts.noStrip, "no-strip", false, "Do not strip debug symbols from binaries")
	buildCmd.Flags().BoolVar(&buildOpts.separate, "separate-debug-symbols", false, "Split debug symbols into .debug companion files")
	buildCmd.Flags().BoolVar(&buildOpts.install, "install", false, "Install the package with dpkg after building")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(parent context.Context, manifestPath string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := execx.System{}

	tools, err := loadToolOverrides(filepath.Dir(manifestPath))
	if err != nil {
		return err
	}

	cfg, err := manifest.Load(manifest.LoadOptions{
		ManifestPath:    manifestPath,
		Target:          buildOpts.target,
		HostTriple:      hostTriple(ctx, runner),
		Variant:         buildOpts.variant,
		OutputPath:      buildOpts.output,
		VersionOverride: buildOpts.debVersion,
		Fast:            buildOpts.fast,
		NoBuild:         buildOpts.noBuild,
		Tools:           tools,
	})
	if err != nil {
		return err
	}
	if buildOpts.noStrip {
		cfg.Strip = false
	}
	if buildOpts.separate {
		cfg.SeparateDebugSymbols = true
	}
	if err := cfg.ApplyCargoConfig(); err != nil {
		return err
	}

	if !cfg.NoBuild {
		if err := cargoBuild(ctx, runner, cfg); err != nil {
			return err
		}
	}

	builder := &deb.Builder{Runner: runner}
	path, err := builder.Build(ctx, cfg)
	if err != nil {
		return err
	}
	logx.Infof("wrote %s", path)

	if buildOpts.install {
		return installPackage(ctx, runner, cfg, path)
	}
	return nil
}

// cargoBuild compiles the project in release mode, mirroring what the
// user would run by hand.
func cargoBuild(ctx context.Context, runner execx.Runner, cfg *manifest.Config) error {
	args := []string{"build", "--release", "--manifest-path", filepath.Join(cfg.ProjectDir, "Cargo.toml")}
	if cfg.Target != "" {
		args = append(args, "--target", cfg.Target)
	}
	logx.Infof("running cargo %s", strings.Join(args, " "))
	if _, err := runner.Run(ctx, "cargo", args...); err != nil {
		return fmt.Errorf("cargo build failed: %w", err)
	}
	return nil
}

// installPackage hands the finished .deb to dpkg. This needs root, so
// the command is re-run under sudo when we are not already root.
func installPackage(ctx context.Context, runner execx.Runner, cfg *manifest.Config, path string) error {
	logx.Infof("installing %s", path)
	dpkg := cfg.Tools.DpkgPath()
	var err error
	if os.Geteuid() == 0 {
		_, err = runner.Run(ctx, dpkg, "-i", path)
	} else {
		_, err = runner.Run(ctx, "sudo", dpkg, "-i", path)
	}
	if err != nil {
		return fmt.Errorf("dpkg install failed: %w", err)
	}
	return nil
}

// loadToolOverrides reads the optional debpack.yaml next to the
// manifest, which pins paths for the external helpers.
func loadToolOverrides(projectDir string) (manifest.ToolPaths, error) {
	var file struct {
		Tools manifest.ToolPaths `yaml:"tools"`
	}
	data, err := os.ReadFile(filepath.Join(projectDir, "debpack.yaml"))
	if os.IsNotExist(err) {
		return file.Tools, nil
	}
	if err != nil {
		return file.Tools, err
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file.Tools, fmt.Errorf("unable to parse debpack.yaml: %w", err)
	}
	return file.Tools, nil
}

// hostTriple asks rustc for the host target triple. Without a rustc on
// PATH the triple is derived from the Go runtime, which covers the
// architectures Debian ships.
func hostTriple(ctx context.Context, runner execx.Runner) string {
	if out, err := runner.Run(ctx, "rustc", "-vV"); err == nil {
		for _, line := range strings.Split(out, "\n") {
			if host, ok := strings.CutPrefix(line, "host: "); ok {
				return strings.TrimSpace(host)
			}
		}
	}
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64-unknown-linux-gnu"
	case "arm64":
		return "aarch64-unknown-linux-gnu"
	case "386":
		return "i686-unknown-linux-gnu"
	case "arm":
		return "arm-unknown-linux-gnueabihf"
	case "ppc64le":
		return "powerpc64le-unknown-linux-gnu"
	case "riscv64":
		return "riscv64gc-unknown-linux-gnu"
	case "s390x":
		return "s390x-unknown-linux-gnu"
	}
	return runtime.GOARCH + "-unknown-linux-gnu"
}
