// Package config loads the optional YAML file that configures a
// ctxcore deployment's mount mappings and auto-collapse window
// parameters, per SPEC_FULL.md's config section. Grounded on the
// teacher's pkg/subagent/frontmatter.go (gopkg.in/yaml.v3 struct
// tags, a flexible scalar-or-list field type for hand-edited YAML).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/sessioncore"
)

// mountYAML is one entry of the `mounts:` list in the config file.
type mountYAML struct {
	AgentPrefix     string `yaml:"agentPrefix"`
	CanonicalPrefix string `yaml:"canonicalPrefix"`
	FilesystemID    string `yaml:"filesystemId"`
	Writable        bool   `yaml:"writable"`
}

// fileYAML is the on-disk shape of a ctxcore config file.
type fileYAML struct {
	DefaultFilesystemID string      `yaml:"defaultFilesystemId"`
	Mounts              []mountYAML `yaml:"mounts"`
	Window              *windowYAML `yaml:"window"`
}

type windowYAML struct {
	KeepLastPerTurn int `yaml:"keepLastPerTurn"`
	KeepLastTurns   int `yaml:"keepLastTurns"`
}

// Config is the parsed, ready-to-use form of a ctxcore config file.
type Config struct {
	DefaultFilesystemID string
	Mappings            []fsresolver.Mapping
	Window              sessioncore.WindowConfig
}

// Load reads and parses a YAML config file at path. A missing Window
// section falls back to sessioncore.DefaultWindowConfig(); a missing
// or empty defaultFilesystemId falls back to
// fsresolver.DefaultFilesystemID().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed fileYAML
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := Config{
		DefaultFilesystemID: strings.TrimSpace(parsed.DefaultFilesystemID),
		Window:              sessioncore.DefaultWindowConfig(),
	}
	if cfg.DefaultFilesystemID == "" {
		cfg.DefaultFilesystemID = fsresolver.DefaultFilesystemID()
	}
	if parsed.Window != nil && parsed.Window.KeepLastPerTurn > 0 {
		cfg.Window.KeepLastPerTurn = parsed.Window.KeepLastPerTurn
	}
	if parsed.Window != nil && parsed.Window.KeepLastTurns > 0 {
		cfg.Window.KeepLastTurns = parsed.Window.KeepLastTurns
	}

	for _, m := range parsed.Mounts {
		if m.AgentPrefix == "" || m.CanonicalPrefix == "" {
			return Config{}, fmt.Errorf("config: mount entry missing agentPrefix/canonicalPrefix")
		}
		cfg.Mappings = append(cfg.Mappings, fsresolver.Mapping{
			AgentPrefix:     m.AgentPrefix,
			CanonicalPrefix: m.CanonicalPrefix,
			FilesystemID:    m.FilesystemID,
			Writable:        m.Writable,
		})
	}

	return cfg, nil
}

// Resolver builds a fsresolver.Resolver from the parsed config.
func (c Config) Resolver() *fsresolver.Resolver {
	return fsresolver.New(c.DefaultFilesystemID, c.Mappings)
}
