package systemd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debpack/debpack/manifest"
)

const serviceWithInstall = `[Unit]
Description=demo

[Service]
ExecStart=/usr/bin/demo

[Install]
WantedBy=multi-user.target
Alias=demo-alias.service
`

const serviceNoInstall = `[Unit]
Description=helper

[Service]
ExecStart=/usr/bin/helper
`

func writeUnits(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestFindUnitsByPackageName(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"demo.service": serviceWithInstall,
		"demo.socket":  "[Socket]\nListenStream=9000\n",
		"demo.tmpfile": "d /var/lib/demo 0755 root root -\n",
		"unrelated":    "ignored",
	})

	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)
	require.Len(t, units, 3)

	byName := map[string]UnitFile{}
	for _, u := range units {
		byName[u.Name] = u
	}
	assert.Equal(t, "lib/systemd/system/demo.service", byName["demo.service"].Dest)
	assert.Equal(t, "lib/systemd/system/demo.socket", byName["demo.socket"].Dest)
	assert.Equal(t, "usr/lib/tmpfiles.d/demo.conf", byName["demo.conf"].Dest)
	assert.True(t, byName["demo.conf"].IsTmpfile)
}

func TestFindUnitsUnitNameFilter(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"demo.worker.service": serviceWithInstall,
		"demo.service":        serviceNoInstall,
	})

	units, err := FindUnits(dir, "demo", "worker")
	require.NoError(t, err)
	require.Len(t, units, 1)
	// The package-prefixed unit file wins and installs under the unit name.
	assert.Equal(t, "worker.service", units[0].Name)
	assert.Equal(t, filepath.Join(dir, "demo.worker.service"), units[0].Source)
}

func TestFindUnitsPackageFileBeatsUnitFile(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"demo.service":   serviceNoInstall,
		"worker.service": serviceWithInstall,
	})

	units, err := FindUnits(dir, "demo", "worker")
	require.NoError(t, err)
	require.Len(t, units, 1)
	// Between a file named after the package and one named after the
	// unit, the package one is the more specific match. It still
	// installs under the unit name.
	assert.Equal(t, filepath.Join(dir, "demo.service"), units[0].Source)
	assert.Equal(t, "worker.service", units[0].Name)
}

func TestFindUnitsTemplate(t *testing.T) {
	dir := writeUnits(t, map[string]string{
		"demo@.service": serviceNoInstall,
	})

	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "demo@.service", units[0].Name)
	assert.True(t, units[0].IsTemplate)
}

func TestFindUnitsMissingDir(t *testing.T) {
	units, err := FindUnits(filepath.Join(t.TempDir(), "nope"), "demo", "")
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestFragmentsEnableAndStart(t *testing.T) {
	dir := writeUnits(t, map[string]string{"demo.service": serviceWithInstall})
	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)

	frags, err := Fragments(units, &manifest.SystemdUnits{})
	require.NoError(t, err)

	assert.Contains(t, frags["postinst"], "deb-systemd-helper enable demo.service")
	assert.Contains(t, frags["postinst"], "deb-systemd-helper enable demo-alias.service")
	assert.Contains(t, frags["postinst"], "deb-systemd-invoke start demo.service")
	// Default behavior leaves a running service alone on upgrade.
	assert.Contains(t, frags["postinst"], `if [ -z "$2" ]`)
	assert.Contains(t, frags["prerm"], `[ "$1" = remove ]`)
	assert.Contains(t, frags["postrm"], "deb-systemd-helper purge")
}

func TestFragmentsRestartAfterUpgrade(t *testing.T) {
	dir := writeUnits(t, map[string]string{"demo.service": serviceWithInstall})
	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)

	frags, err := Fragments(units, &manifest.SystemdUnits{RestartAfterUpgrade: true})
	require.NoError(t, err)

	assert.Contains(t, frags["postinst"], "_dh_action=restart")
	assert.Contains(t, frags["prerm"], `[ "$1" = remove ]`)
}

func TestFragmentsStopOnUpgrade(t *testing.T) {
	dir := writeUnits(t, map[string]string{"demo.service": serviceWithInstall})
	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)

	frags, err := Fragments(units, &manifest.SystemdUnits{StopOnUpgrade: true})
	require.NoError(t, err)

	// The service is stopped across the upgrade and started again.
	assert.NotContains(t, frags["prerm"], `[ "$1" = remove ]`)
	assert.Contains(t, frags["prerm"], "deb-systemd-invoke stop")
	assert.Contains(t, frags["postinst"], "_dh_action=start")
}

func TestFragmentsNoEnableNoStart(t *testing.T) {
	no := false
	dir := writeUnits(t, map[string]string{"demo.service": serviceWithInstall})
	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)

	frags, err := Fragments(units, &manifest.SystemdUnits{Enable: &no, Start: &no})
	require.NoError(t, err)

	assert.Contains(t, frags["postinst"], "deb-systemd-helper debian-installed")
	assert.NotContains(t, frags["postinst"], "deb-systemd-invoke")
}

func TestFragmentsTmpfilesOnly(t *testing.T) {
	dir := writeUnits(t, map[string]string{"demo.tmpfile": "d /run/demo 0755 root root -\n"})
	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)

	frags, err := Fragments(units, &manifest.SystemdUnits{})
	require.NoError(t, err)

	assert.Contains(t, frags["postinst"], "systemd-tmpfiles --create demo.conf")
	assert.Empty(t, frags["prerm"])
	assert.Empty(t, frags["postrm"])
}

func TestFragmentsTemplateNotStarted(t *testing.T) {
	dir := writeUnits(t, map[string]string{"demo@.service": serviceNoInstall})
	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)

	frags, err := Fragments(units, &manifest.SystemdUnits{})
	require.NoError(t, err)
	assert.NotContains(t, frags["postinst"], "deb-systemd-invoke start")
}

func TestParseUnit(t *testing.T) {
	info := parseUnit("[Install]\nAlias=a.service b.service\nAlso=c.socket\n")
	assert.True(t, info.hasInstall)
	assert.Equal(t, []string{"a.service", "b.service"}, info.aliases)
	assert.Equal(t, []string{"c.socket"}, info.also)

	info = parseUnit(serviceNoInstall)
	assert.False(t, info.hasInstall)
}

func TestShellEscape(t *testing.T) {
	assert.Equal(t, "demo.service", shellEscape("demo.service"))
	assert.Equal(t, `'demo instance.service'`, shellEscape("demo instance.service"))
}

func TestAssets(t *testing.T) {
	dir := writeUnits(t, map[string]string{"demo.service": serviceWithInstall})
	units, err := FindUnits(dir, "demo", "")
	require.NoError(t, err)

	assets := Assets(units)
	require.Len(t, assets, 1)
	assert.Equal(t, "lib/systemd/system/demo.service", assets[0].Dest)
	assert.Equal(t, int64(0o644), assets[0].Mode)
	assert.False(t, assets[0].IsBuilt)
}
