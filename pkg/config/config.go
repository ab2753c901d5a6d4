package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caarlos0/env/v6"
	"gopkg.in/ini.v1"
)

const (
	ReplicatorSection = "container-replicator"

	DefaultDevices  = "/srv/node"
	DefaultSwiftDir = "/etc/swift"
)

var ErrMissingSection = errors.New("config section not found")

// Settings holds the tool's own defaults, overridable from the environment.
type Settings struct {
	ConfDir  string `env:"SHARDINFO_CONF_DIR" envDefault:"/etc/swift/container-server"`
	RingName string `env:"SHARDINFO_RING_NAME" envDefault:"container"`
	Datadir  string `env:"SHARDINFO_DATADIR" envDefault:"containers"`
}

// LoadSettings reads Settings from the environment, applying defaults.
func LoadSettings() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return s, nil
}

// ReplicatorConfig is the subset of a container server config needed to
// find the container databases it serves.
type ReplicatorConfig struct {
	Path     string
	Devices  string
	SwiftDir string
}

// LoadReplicatorConfig reads the container-replicator section of a container
// server config. path may be a single file or a conf.d directory, in which
// case every *.conf file inside is read in lexical order.
func LoadReplicatorConfig(path string) (*ReplicatorConfig, error) {
	sources, err := configSources(path)
	if err != nil {
		return nil, err
	}

	file, err := ini.LoadSources(ini.LoadOptions{AllowPythonMultilineValues: true}, sources[0], sources[1:]...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	section, err := file.GetSection(ReplicatorSection)
	if err != nil {
		return nil, fmt.Errorf("%w: [%s] in %s", ErrMissingSection, ReplicatorSection, path)
	}

	return &ReplicatorConfig{
		Path:     path,
		Devices:  lookup(file, section, "devices", DefaultDevices),
		SwiftDir: lookup(file, section, "swift_dir", DefaultSwiftDir),
	}, nil
}

func configSources(path string) ([]interface{}, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if !info.IsDir() {
		return []interface{}{path}, nil
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.conf"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config dir %s: %w", path, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no config files found in %s", path)
	}
	sort.Strings(matches)

	sources := make([]interface{}, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, m)
	}
	return sources, nil
}

// lookup falls back to [DEFAULT] the way paste-deploy configs are read.
func lookup(file *ini.File, section *ini.Section, key, defaultValue string) string {
	if section.HasKey(key) {
		if v := strings.TrimSpace(section.Key(key).String()); v != "" {
			return v
		}
	}
	if def := file.Section(ini.DefaultSection); def.HasKey(key) {
		if v := strings.TrimSpace(def.Key(key).String()); v != "" {
			return v
		}
	}
	return defaultValue
}

// DiscoverConfPaths lists the container server configs in dir: files and
// conf.d directories whose names end in "conf" or "conf.d".
func DiscoverConfPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, "conf") || strings.HasSuffix(name, "conf.d") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
