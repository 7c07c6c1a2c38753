package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config drives the checker. Defaults fit this repository: server packages
// mint codes through pkg/errors, while cli and pkg/sdk follow their own
// conventions (fmt.Errorf and go-faster/errors respectively) and are left
// alone.
type Config struct {
	ExcludePaths      []string `yaml:"exclude_paths"`
	ForbiddenPatterns []string `yaml:"forbidden_patterns"`
	CheckForbidden    bool     `yaml:"check_forbidden"`
	ExitOnUnused      bool     `yaml:"exit_on_unused"`
	ExitOnForbidden   bool     `yaml:"exit_on_forbidden"`
	Verbose           bool     `yaml:"verbose"`
}

func loadConfig(configPath string) (*Config, error) {
	config := &Config{
		ExcludePaths: []string{
			"_examples/", "cli/", "pkg/sdk/", "pkg/errors/", "cmd/",
			"scripts/", "server/server.go",
			"data/", "logs/", "vendor/", ".git/",
		},
		ForbiddenPatterns: []string{`fmt\.Errorf\(`, `errors\.New\("`},
		CheckForbidden:    true,
		ExitOnUnused:      false,
		ExitOnForbidden:   true,
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	return config, nil
}
