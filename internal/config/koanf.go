// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/deckd/config.yaml",
	"/etc/deckd/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "DECKD_CONFIG_PATH"

// envPrefix namespaces deckd environment variables.
// DECKD_DECK_TTL -> deck.ttl, DECKD_CACHE_ADDR -> cache.addr.
const envPrefix = "DECKD_"

// Load builds the configuration from layered sources, highest priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (DECKD_ prefix)
//
// The merged result is unmarshaled into Config and validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps an environment variable name to a koanf path. The first
// underscore separates the section; an embedded RESILIENCE segment becomes
// its own path element so nested resilience profiles stay overridable:
//
//	DECKD_DECK_REBUILD_RATE_PER_SECOND  -> deck.rebuild_rate_per_second
//	DECKD_PROFILES_RESILIENCE_TIMEOUT   -> profiles.resilience.timeout
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	if sub, subRest, ok := strings.Cut(rest, "_"); ok && sub == "resilience" {
		return section + ".resilience." + subRest
	}
	return section + "." + rest
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
