// Package projectconfig parses the optional .repoclean/config.yaml. Loaded
// once at startup and injected into the components that need it.
package projectconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

const DefaultPath = ".repoclean/config.yaml"

type Config struct {
	Backup BackupDefaults `yaml:"backup"`
	Scan   ScanDefaults   `yaml:"scan"`
}

type BackupDefaults struct {
	// Directory overrides the hidden backup directory under the repository
	// root. Relative values resolve against the repository root.
	Directory     string `yaml:"directory"`
	RetentionDays int    `yaml:"retention_days"`
}

type ScanDefaults struct {
	ExtraSuffixes     []string `yaml:"extra_suffixes"`
	IgnoreDirectories []string `yaml:"ignore_directories"`
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Config{}, nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	if configuration.Backup.RetentionDays < 0 {
		return Config{}, fmt.Errorf("backup.retention_days must be >= 0")
	}
	return configuration, nil
}

func (configuration *Config) normalize() {
	configuration.Backup.Directory = strings.TrimSpace(configuration.Backup.Directory)
	configuration.Scan.ExtraSuffixes = trimAll(configuration.Scan.ExtraSuffixes)
	configuration.Scan.IgnoreDirectories = trimAll(configuration.Scan.IgnoreDirectories)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
