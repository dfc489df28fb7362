// Package strip removes debug information from built binaries, with an
// optional split of the removed sections into separate .debug files
// placed under usr/lib/debug.
package strip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/debpack/debpack/execx"
	"github.com/debpack/debpack/logx"
	"github.com/debpack/debpack/manifest"
)

// ToolError reports a failure of an external binutils invocation.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Stripper drives strip and objcopy over the built binaries.
type Stripper struct {
	Runner execx.Runner
	Tools  manifest.ToolPaths
	// WorkDir receives the stripped copies and extracted debug files,
	// so the compiler's own output is never modified.
	WorkDir string
}

// Process strips every built binary of cfg in place of its archive
// source, and when the debug split is enabled appends the extracted
// debug files as additional assets. The returned assets belong under
// usr/lib/debug mirroring the install path of their binary.
func (s *Stripper) Process(ctx context.Context, cfg *manifest.Config) ([]*manifest.Asset, error) {
	if !cfg.Strip {
		return nil, nil
	}
	if err := os.MkdirAll(s.WorkDir, 0o755); err != nil {
		return nil, err
	}

	var debugAssets []*manifest.Asset
	for _, bin := range cfg.BuiltBinaries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		debug, err := s.stripBinary(ctx, cfg, bin)
		if err != nil {
			return nil, err
		}
		if debug != nil {
			debugAssets = append(debugAssets, debug)
		}
	}
	return debugAssets, nil
}

// stripBinary strips one binary, first extracting a debug companion
// when configured. The asset source is redirected to the stripped copy.
func (s *Stripper) stripBinary(ctx context.Context, cfg *manifest.Config, bin *manifest.Asset) (*manifest.Asset, error) {
	stripped := filepath.Join(s.WorkDir, filepath.Base(bin.Source)+".stripped")

	var debug *manifest.Asset
	if cfg.SeparateDebugSymbols {
		target := bin.DebugTarget()
		if target == "" {
			return nil, nil
		}
		debugFile := filepath.Join(s.WorkDir, filepath.Base(bin.Source)+".debug")
		if _, err := s.Runner.Run(ctx, cfg.Tools.ObjcopyPath(),
			"--only-keep-debug", bin.Source, debugFile); err != nil {
			return nil, s.toolError(cfg.Tools.ObjcopyPath(), err)
		}
		debug = manifest.NewAsset(debugFile, target, 0o644, false)
	}

	args := []string{"--strip-unneeded", "--remove-section=.comment", "--remove-section=.note"}
	if cfg.SeparateDebugSymbols {
		args = []string{"--strip-debug"}
	}
	args = append(args, "-o", stripped, bin.Source)
	if _, err := s.Runner.Run(ctx, cfg.Tools.StripPath(), args...); err != nil {
		return nil, s.toolError(cfg.Tools.StripPath(), err)
	}

	logx.Infof("stripped %s", bin.Source)
	bin.Source = stripped
	return debug, nil
}

func (s *Stripper) toolError(tool string, err error) error {
	if errors.Is(err, execx.ErrNotFound) {
		return &ToolError{Tool: tool, Err: fmt.Errorf("command not found, install binutils or set strip = false")}
	}
	return &ToolError{Tool: tool, Err: err}
}
