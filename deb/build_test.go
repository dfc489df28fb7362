package deb

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/debpack/debpack/manifest"
)

// buildProject lays out a minimal project on disk and returns a
// configuration pointing at it.
func buildProject(t *testing.T) *manifest.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, body string) {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("target/release/tool", "#!/bin/sh\necho tool\n")
	write("tool.conf", "key=value\n")
	write("LICENSE", "Permission is hereby granted.\n")
	write("debian/postinst", "#!/bin/sh\nset -e\n#DEBHELPER#\nexit 0\n")
	write("debian/test-pkg.service", "[Unit]\nDescription=tool\n\n[Service]\nExecStart=/usr/bin/tool\n\n[Install]\nWantedBy=multi-user.target\n")

	cfg := &manifest.Config{
		ProjectDir:          dir,
		TargetDir:           filepath.Join(dir, "target"),
		Name:                "test-pkg",
		DebName:             "test-pkg",
		Version:             "1.2.3",
		Revision:            "1",
		Architecture:        "amd64",
		Maintainer:          "Maintainer <m@example.com>",
		Description:         "A tool under test",
		ExtendedDescription: "Longer text about the tool.",
		Copyright:           "2026, Maintainer",
		License:             "MIT",
		LicenseFile:         "LICENSE",
		Priority:            "optional",
		Depends:             "$auto, libssl3",
		MaintainerScripts:   "debian",
		SystemdUnits:        &manifest.SystemdUnits{},
		OutputPath:          t.TempDir() + "/",
	}
	cfg.SetSpecs([]manifest.AssetSpec{
		{Source: "target/release/tool", Dest: "usr/bin/", Mode: 0o755, IsBuilt: true},
		{Source: "tool.conf", Dest: "etc/tool/tool.conf", Mode: 0o644},
	})
	return cfg
}

func readBuilt(t *testing.T, path string) *Contents {
	t.Helper()
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	contents, err := Read(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return contents
}

func TestBuilderBuild(t *testing.T) {
	cfg := buildProject(t)
	b := &Builder{}

	path, err := b.Build(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "test-pkg_1.2.3-1_amd64.deb" {
		t.Errorf("unexpected output name %s", filepath.Base(path))
	}

	contents := readBuilt(t, path)

	if got := contents.Field(FieldVersion); got != "1.2.3-1" {
		t.Errorf("Version = %q", got)
	}
	// The test binary is not a dynamic ELF, so $auto resolves to
	// nothing and only the declared dependency remains.
	if got := contents.Field(FieldDepends); got != "libssl3" {
		t.Errorf("Depends = %q", got)
	}
	if got := contents.Field(FieldInstalledSize); got == "" || got == "0" {
		t.Errorf("Installed-Size = %q", got)
	}

	if len(contents.Conffiles) != 1 || contents.Conffiles[0] != "/etc/tool/tool.conf" {
		t.Errorf("conffiles = %v", contents.Conffiles)
	}

	postinst := contents.Scripts[FilePostinst]
	if strings.Contains(postinst, "#DEBHELPER#") {
		t.Error("debhelper token survived into the built package")
	}
	if !strings.Contains(postinst, "deb-systemd-helper") {
		t.Errorf("postinst lacks the enable fragment:\n%s", postinst)
	}
	if !strings.Contains(contents.Scripts[FilePrerm], "deb-systemd-invoke stop") {
		t.Error("prerm lacks the stop fragment")
	}

	for _, name := range []string{
		"./usr/bin/tool",
		"./etc/tool/tool.conf",
		"./lib/systemd/system/test-pkg.service",
		"./usr/share/doc/test-pkg/copyright",
	} {
		if _, ok := contents.File(name); !ok {
			t.Errorf("data archive missing %s", name)
		}
	}

	copyright, _ := contents.File("./usr/share/doc/test-pkg/copyright")
	if !strings.Contains(string(copyright.Body), "Permission is hereby granted.") {
		t.Error("license text missing from copyright file")
	}

	// md5sums must cover every regular file.
	lines := strings.Count(strings.TrimSpace(contents.Md5sums), "\n") + 1
	if lines != 4 {
		t.Errorf("expected 4 md5sums entries, got %d:\n%s", lines, contents.Md5sums)
	}
}

func TestBuilderBuildDeterministic(t *testing.T) {
	cfg := buildProject(t)
	b := &Builder{}
	path, err := b.Build(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg2 := buildProject(t)
	path2, err := b.Build(context.Background(), cfg2)
	if err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two builds of equal projects are not byte-identical")
	}
}

func TestBuilderBuildCanceled(t *testing.T) {
	cfg := buildProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &Builder{}
	if _, err := b.Build(ctx, cfg); err == nil {
		t.Fatal("expected error from canceled context")
	}
	entries, err := os.ReadDir(cfg.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("canceled build left %s behind", e.Name())
	}
}

func TestBuilderBuildMissingUnit(t *testing.T) {
	cfg := buildProject(t)
	if err := os.Remove(filepath.Join(cfg.ProjectDir, "debian", "test-pkg.service")); err != nil {
		t.Fatal(err)
	}
	b := &Builder{}
	if _, err := b.Build(context.Background(), cfg); err == nil {
		t.Fatal("expected error when systemd-units finds no unit files")
	}
}

// TestDpkgDeb verifies the output against the real dpkg toolchain when
// it is available.
func TestDpkgDeb(t *testing.T) {
	if _, err := exec.LookPath("dpkg-deb"); err != nil {
		t.Skip("dpkg-deb not installed")
	}
	cfg := buildProject(t)
	b := &Builder{}
	path, err := b.Build(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	out, err := exec.Command("dpkg-deb", "--info", path).CombinedOutput()
	if err != nil {
		t.Fatalf("dpkg-deb --info failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Package: test-pkg") {
		t.Errorf("unexpected dpkg-deb output:\n%s", out)
	}

	out, err = exec.Command("dpkg-deb", "--contents", path).CombinedOutput()
	if err != nil {
		t.Fatalf("dpkg-deb --contents failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "./usr/bin/tool") {
		t.Errorf("payload missing from dpkg-deb contents:\n%s", out)
	}
}
