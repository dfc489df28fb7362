package deps

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debpack/debpack/manifest"
)

// stubRunner serves canned output keyed by "command arg1 arg2 ...".
type stubRunner struct {
	responses map[string]string
	calls     []string
}

func (s *stubRunner) Run(_ context.Context, command string, args ...string) (string, error) {
	key := strings.Join(append([]string{command}, args...), " ")
	s.calls = append(s.calls, key)
	out, ok := s.responses[key]
	if !ok {
		return "", fmt.Errorf("no such file or directory")
	}
	return out, nil
}

func newResolver(responses map[string]string) (*Resolver, *stubRunner) {
	runner := &stubRunner{responses: responses}
	return &Resolver{Runner: runner, Tools: manifest.ToolPaths{}}, runner
}

func TestResolveWithoutSentinel(t *testing.T) {
	r, runner := newResolver(nil)
	got, err := r.Resolve(context.Background(), "libc6, git", []*manifest.Asset{{Source: "/bin/whatever"}})
	require.NoError(t, err)
	assert.Equal(t, "libc6, git", got)
	assert.Empty(t, runner.calls, "binaries must not be inspected without $auto")
}

func TestResolveNonELFBinary(t *testing.T) {
	r, _ := newResolver(nil)
	// A shell script is not a dynamic ELF, so it contributes nothing.
	got, err := r.Resolve(context.Background(), "$auto, libssl3", []*manifest.Asset{{Source: "/bin/sh-script"}})
	require.NoError(t, err)
	assert.Equal(t, "libssl3", got)
}

func TestSharedLibraries(t *testing.T) {
	r, _ := newResolver(map[string]string{
		"ldd /usr/bin/tool": `	linux-vdso.so.1 (0x00007fff0000)
	libssl.so.3 => /lib/x86_64-linux-gnu/libssl.so.3 (0x00007f7a000)
	libgcc_s.so.1 => /lib/x86_64-linux-gnu/libgcc_s.so.1 (0x00007f7b000)
	libnotthere.so => not found
	libc.so.6 => /lib/x86_64-linux-gnu/libc.so.6 (0x00007f7c000)
	/lib64/ld-linux-x86-64.so.2 (0x00007f7d000)
`,
	})
	libs, err := r.sharedLibraries(context.Background(), "/usr/bin/tool")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/lib/x86_64-linux-gnu/libssl.so.3",
		"/lib/x86_64-linux-gnu/libc.so.6",
	}, libs)
}

func TestOwnerPackage(t *testing.T) {
	r, _ := newResolver(map[string]string{
		"dpkg -S /lib/x86_64-linux-gnu/libc.so.6": "libc6:amd64: /lib/x86_64-linux-gnu/libc.so.6\n",
	})
	pkg, err := r.ownerPackage(context.Background(), "/lib/x86_64-linux-gnu/libc.so.6")
	require.NoError(t, err)
	assert.Equal(t, "libc6", pkg)
}

func TestOwnerPackageSkipsDiversion(t *testing.T) {
	r, _ := newResolver(map[string]string{
		"dpkg -S /usr/lib/x86_64-linux-gnu/libGL.so.1": "diversion by glx-diversions from: /usr/lib/x86_64-linux-gnu/libGL.so.1\n" +
			"diversion by glx-diversions to: /usr/lib/mesa-diverted/x86_64-linux-gnu/libGL.so.1\n" +
			"libgl1-mesa-glx:amd64: /usr/lib/x86_64-linux-gnu/libGL.so.1\n",
	})
	pkg, err := r.ownerPackage(context.Background(), "/usr/lib/x86_64-linux-gnu/libGL.so.1")
	require.NoError(t, err)
	assert.Equal(t, "libgl1-mesa-glx", pkg)
}

func TestOwnerPackageUsrFallback(t *testing.T) {
	r, runner := newResolver(map[string]string{
		"dpkg -S /usr/lib/x86_64-linux-gnu/libz.so.1": "zlib1g:amd64: /usr/lib/x86_64-linux-gnu/libz.so.1\n",
	})
	// The direct path is unknown to dpkg, the /usr-prefixed one hits.
	pkg, err := r.ownerPackage(context.Background(), "/lib/x86_64-linux-gnu/libz.so.1")
	require.NoError(t, err)
	assert.Equal(t, "zlib1g", pkg)
	assert.Len(t, runner.calls, 2)
}

func TestPackageVersionStripsRevision(t *testing.T) {
	r, _ := newResolver(map[string]string{
		"dpkg-query --showformat=${Version} --show libc6": "2.36-9+deb12u4",
	})
	version, err := r.packageVersion(context.Background(), "libc6")
	require.NoError(t, err)
	assert.Equal(t, "2.36", version)
}

func TestLibraryAtom(t *testing.T) {
	r, _ := newResolver(map[string]string{
		"dpkg -S /lib/libssl.so.3":                          "libssl3:amd64: /lib/libssl.so.3\n",
		"dpkg-query --showformat=${Version} --show libssl3": "3.0.11-1~deb12u2",
	})
	atom, err := r.libraryAtom(context.Background(), "/lib/libssl.so.3")
	require.NoError(t, err)
	assert.Equal(t, "libssl3 (>= 3.0.11)", atom)
}

func TestLibraryAtomUnownedSkipped(t *testing.T) {
	r, _ := newResolver(map[string]string{})
	atom, err := r.libraryAtom(context.Background(), "/opt/custom/libprivate.so")
	require.NoError(t, err)
	assert.Equal(t, "", atom)
}

func TestContainsAuto(t *testing.T) {
	assert.True(t, containsAuto("$auto"))
	assert.True(t, containsAuto("libc6, $auto , git"))
	assert.False(t, containsAuto("libc6"))
	assert.False(t, containsAuto("my$auto"))
}
