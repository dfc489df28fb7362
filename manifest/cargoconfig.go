package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// cargoConfig is the subset of .cargo/config.toml we care about: per
// target tool overrides used for cross builds.
type cargoConfig struct {
	Target map[string]cargoTargetConfig `toml:"target"`
}

type cargoTargetConfig struct {
	Linker  string    `toml:"linker"`
	Strip   toolEntry `toml:"strip"`
	Objcopy toolEntry `toml:"objcopy"`
}

// toolEntry accepts both forms the file allows: a bare string and a
// { path = "..." } table.
type toolEntry struct {
	Path string
}

func (t *toolEntry) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		t.Path = val
	case map[string]interface{}:
		if p, ok := val["path"].(string); ok {
			t.Path = p
		}
	}
	return nil
}

// ApplyCargoConfig fills unset strip/objcopy tool paths from the
// project's .cargo/config.toml, searching the project directory and its
// ancestors the way cargo does. Cross builds routinely need a prefixed
// binutils, and the linker entry gives away the toolchain prefix when no
// explicit override exists.
func (c *Config) ApplyCargoConfig() error {
	if c.Target == "" {
		return nil
	}
	cfg, err := findCargoConfig(c.ProjectDir)
	if err != nil || cfg == nil {
		return err
	}
	target, ok := cfg.Target[c.Target]
	if !ok {
		return nil
	}
	if c.Tools.Strip == "" {
		if target.Strip.Path != "" {
			c.Tools.Strip = target.Strip.Path
		} else if prefix := toolchainPrefix(target.Linker); prefix != "" {
			c.Tools.Strip = prefix + "strip"
		}
	}
	if c.Tools.Objcopy == "" {
		if target.Objcopy.Path != "" {
			c.Tools.Objcopy = target.Objcopy.Path
		} else if prefix := toolchainPrefix(target.Linker); prefix != "" {
			c.Tools.Objcopy = prefix + "objcopy"
		}
	}
	return nil
}

// findCargoConfig walks up from dir looking for .cargo/config.toml,
// then the legacy .cargo/config name.
func findCargoConfig(dir string) (*cargoConfig, error) {
	for {
		for _, name := range []string{"config.toml", "config"} {
			path := filepath.Join(dir, ".cargo", name)
			raw, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			var cfg cargoConfig
			if _, err := toml.Decode(string(raw), &cfg); err != nil {
				return nil, &ConfigError{Msg: "unable to parse " + path + ": " + err.Error()}
			}
			return &cfg, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// toolchainPrefix extracts "aarch64-linux-gnu-" from a linker such as
// /usr/bin/aarch64-linux-gnu-gcc.
func toolchainPrefix(linker string) string {
	base := filepath.Base(linker)
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return ""
	}
	return base[:i+1]
}
