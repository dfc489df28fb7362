package deb

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// debhelperToken marks where generated fragments are spliced into a
// hand-written maintainer script.
const debhelperToken = "#DEBHELPER#"

// LoadMaintainerScripts reads the hook scripts from dir. For each
// script name, files are tried as "<prefix>.<script>" for every prefix
// in order, then as the bare script name. Missing scripts are simply
// absent from the result.
func LoadMaintainerScripts(dir string, prefixes []string) (map[ControlFile][]byte, error) {
	scripts := make(map[ControlFile][]byte)
	if dir == "" {
		return scripts, nil
	}
	for _, name := range MaintainerScripts {
		path, ok := findScript(dir, prefixes, string(name))
		if !ok {
			continue
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read maintainer script %s: %w", path, err)
		}
		scripts[name] = body
	}
	return scripts, nil
}

func findScript(dir string, prefixes []string, script string) (string, bool) {
	for _, prefix := range prefixes {
		path := filepath.Join(dir, prefix+"."+script)
		if fileExists(path) {
			return path, true
		}
	}
	path := filepath.Join(dir, script)
	return path, fileExists(path)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// ApplyFragments splices generated script fragments into the maintainer
// scripts. A script that carries the #DEBHELPER# token has it replaced
// in place; a script that lacks the token keeps its body and gains the
// fragment before the final exit; a missing script is synthesized from
// scratch.
//
// Reference: https://manpages.debian.org/unstable/debhelper/dh_installdeb.1.en.html
func ApplyFragments(scripts map[ControlFile][]byte, fragments map[ControlFile]string) {
	for name, fragment := range fragments {
		if fragment == "" {
			continue
		}
		body, ok := scripts[name]
		if !ok {
			scripts[name] = []byte("#!/bin/sh\nset -e\n" + fragment)
			continue
		}
		if bytes.Contains(body, []byte(debhelperToken)) {
			scripts[name] = bytes.Replace(body, []byte(debhelperToken), []byte(fragment), 1)
			continue
		}
		scripts[name] = append(body, []byte("\n"+fragment)...)
	}
}
