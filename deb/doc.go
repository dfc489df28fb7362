// Package deb assembles Debian binary packages.
//
// The package operates in-memory: archives are built as structured
// objects and written to streams, with no temporary staging directory
// and no dependency on dpkg-deb. Output is deterministic, so building
// the same inputs twice yields byte-identical .deb files.
//
// A .deb is an ar archive with exactly three members in fixed order:
// debian-binary, control.tar.gz and data.tar.xz. The control archive
// carries the control paragraph, md5sums, conffiles, triggers and
// maintainer scripts; the data archive carries the installed files with
// every parent directory spelled out explicitly.
//
// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html
package deb
