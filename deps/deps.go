// Package deps resolves the $auto sentinel in the Depends relation by
// inspecting the dynamic libraries a built binary links against and
// asking dpkg which packages own them.
package deps

import (
	"context"
	"debug/elf"
	"fmt"
	"sort"
	"strings"

	"github.com/debpack/debpack/execx"
	"github.com/debpack/debpack/logx"
	"github.com/debpack/debpack/manifest"
)

// AutoSentinel marks the position in a Depends value where resolved
// shared library dependencies are substituted.
const AutoSentinel = "$auto"

// DependencyError reports a failure to resolve shared library
// dependencies for a binary.
type DependencyError struct {
	Binary string
	Msg    string
	Err    error
}

func (e *DependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dependency resolution for %s: %s: %v", e.Binary, e.Msg, e.Err)
	}
	return fmt.Sprintf("dependency resolution for %s: %s", e.Binary, e.Msg)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Resolver queries the system toolchain for shared library ownership.
type Resolver struct {
	Runner execx.Runner
	Tools  manifest.ToolPaths
}

// Resolve replaces the $auto sentinel in declared with the packages
// owning the shared libraries of the given binaries. When declared does
// not contain the sentinel it is returned unchanged and the binaries
// are never inspected.
func (r *Resolver) Resolve(ctx context.Context, declared string, binaries []*manifest.Asset) (string, error) {
	if !containsAuto(declared) {
		return declared, nil
	}

	atoms := make(map[string]bool)
	for _, bin := range binaries {
		found, err := r.binaryDeps(ctx, bin)
		if err != nil {
			return "", err
		}
		for _, a := range found {
			atoms[a] = true
		}
	}

	sorted := make([]string, 0, len(atoms))
	for a := range atoms {
		sorted = append(sorted, a)
	}
	sort.Strings(sorted)

	var parts []string
	for _, p := range strings.Split(declared, ",") {
		p = strings.TrimSpace(p)
		if p == AutoSentinel {
			parts = append(parts, sorted...)
			continue
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", "), nil
}

func containsAuto(declared string) bool {
	for _, p := range strings.Split(declared, ",") {
		if strings.TrimSpace(p) == AutoSentinel {
			return true
		}
	}
	return false
}

// binaryDeps lists the dependency atoms for one built binary. Binaries
// that are not dynamic executables resolve to nothing.
func (r *Resolver) binaryDeps(ctx context.Context, bin *manifest.Asset) ([]string, error) {
	if bin.Source == "" || !isDynamicELF(bin.Source) {
		return nil, nil
	}
	libs, err := r.sharedLibraries(ctx, bin.Source)
	if err != nil {
		return nil, err
	}
	var atoms []string
	for _, lib := range libs {
		atom, err := r.libraryAtom(ctx, lib)
		if err != nil {
			return nil, &DependencyError{Binary: bin.Source, Msg: "unable to find package for " + lib, Err: err}
		}
		if atom != "" {
			atoms = append(atoms, atom)
		}
	}
	return atoms, nil
}

// sharedLibraries runs ldd and returns the resolved paths of the
// libraries the binary loads. libgcc_s is skipped: it is part of the
// toolchain runtime and pulling it in produces a bogus gcc dependency.
func (r *Resolver) sharedLibraries(ctx context.Context, binary string) ([]string, error) {
	out, err := r.Runner.Run(ctx, r.Tools.LddPath(), binary)
	if err != nil {
		return nil, &DependencyError{Binary: binary, Msg: "ldd failed", Err: err}
	}
	var libs []string
	for _, line := range strings.Split(out, "\n") {
		// "libfoo.so.1 => /lib/x86_64-linux-gnu/libfoo.so.1 (0x...)"
		name, rest, ok := strings.Cut(strings.TrimSpace(line), " => ")
		if !ok {
			continue
		}
		if strings.HasPrefix(name, "libgcc_s.so") {
			continue
		}
		path := rest
		if i := strings.LastIndex(rest, " ("); i >= 0 {
			path = rest[:i]
		}
		path = strings.TrimSpace(path)
		if path == "" || path == "not found" {
			continue
		}
		libs = append(libs, path)
	}
	return libs, nil
}

// libraryAtom turns a shared library path into a "pkg (>= version)"
// atom. Libraries no package owns are reported and skipped rather than
// failing the build, matching what dpkg-shlibdeps tolerates for
// locally built libraries.
func (r *Resolver) libraryAtom(ctx context.Context, lib string) (string, error) {
	pkg, err := r.ownerPackage(ctx, lib)
	if err != nil {
		return "", err
	}
	if pkg == "" {
		logx.Warnf("no package found for %s, skipping", lib)
		return "", nil
	}
	version, err := r.packageVersion(ctx, pkg)
	if err != nil {
		return "", err
	}
	if version == "" {
		return pkg, nil
	}
	return fmt.Sprintf("%s (>= %s)", pkg, version), nil
}

// ownerPackage asks dpkg which package installed the library. Merged
// /usr systems may record the file under either prefix, so the lookup
// retries with /usr prepended or removed.
func (r *Resolver) ownerPackage(ctx context.Context, lib string) (string, error) {
	candidates := []string{lib}
	if alt, ok := strings.CutPrefix(lib, "/usr"); ok {
		candidates = append(candidates, alt)
	} else {
		candidates = append(candidates, "/usr"+lib)
	}
	for _, path := range candidates {
		out, err := r.Runner.Run(ctx, r.Tools.DpkgPath(), "-S", path)
		if err != nil {
			continue
		}
		// "libfoo1:amd64: /lib/x86_64-linux-gnu/libfoo.so.1"
		for _, line := range strings.Split(out, "\n") {
			// dpkg reports diverted files with a "diversion by ..."
			// preamble that names no owning package.
			if strings.HasPrefix(line, "diversion ") {
				continue
			}
			owner, _, ok := strings.Cut(line, ": ")
			if !ok || strings.ContainsRune(owner, ' ') {
				continue
			}
			// Strip the architecture qualifier.
			if name, _, ok := strings.Cut(owner, ":"); ok {
				owner = name
			}
			return strings.TrimSpace(owner), nil
		}
	}
	return "", nil
}

// packageVersion returns the upstream part of the installed version of
// pkg, without the Debian revision.
func (r *Resolver) packageVersion(ctx context.Context, pkg string) (string, error) {
	out, err := r.Runner.Run(ctx, r.Tools.DpkgQueryPath(), "--showformat=${Version}", "--show", pkg)
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(out)
	if i := strings.IndexByte(version, '-'); i >= 0 {
		version = version[:i]
	}
	return version, nil
}

// isDynamicELF reports whether the file is an ELF object with dynamic
// linking information. Statically linked binaries have no shared
// library dependencies to resolve.
func isDynamicELF(path string) bool {
	f, err := elf.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return f.Section(".dynamic") != nil
}
