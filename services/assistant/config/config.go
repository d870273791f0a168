// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the assistant's YAML configuration. Parser rules
// ship embedded so the binary runs with zero config files; an external
// rules file overrides the embedded defaults whole.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Duration accepts "30m"-style strings in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", node.Value)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the assistant's full configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Session     SessionConfig     `yaml:"session"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// CatalogConfig locates the catalog export.
type CatalogConfig struct {
	Path  string `yaml:"path" validate:"required"`
	Watch bool   `yaml:"watch"`
}

// SessionConfig tunes conversation retention.
type SessionConfig struct {
	TTL Duration `yaml:"ttl" validate:"min=0"`
}

// InterpreterConfig tunes interpretation policy.
type InterpreterConfig struct {
	ConfidenceThreshold float64  `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	LLMRateLimit        float64  `yaml:"llm_rate_limit" validate:"gte=0"`
	LLMCooldown         Duration `yaml:"llm_cooldown" validate:"min=0"`
	LLMTimeout          Duration `yaml:"llm_timeout" validate:"min=0"`
}

// LogConfig selects the interaction log backend.
type LogConfig struct {
	// Backend is "file", "badger" or "none".
	Backend string `yaml:"backend" validate:"oneof=file badger none"`
	Path    string `yaml:"path"`
}

// Rules is the parser rule file (embedded default or external override).
type Rules struct {
	FuzzySubjectDistance int               `yaml:"fuzzy_subject_distance" validate:"gte=0,lte=3"`
	SubjectSynonyms      map[string]string `yaml:"subject_synonyms"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Catalog: CatalogConfig{Path: "data/courses.json", Watch: true},
		Session: SessionConfig{TTL: Duration(30 * time.Minute)},
		Interpreter: InterpreterConfig{
			ConfidenceThreshold: 0.5,
			LLMRateLimit:        5,
			LLMCooldown:         Duration(time.Minute),
			LLMTimeout:          Duration(8 * time.Second),
		},
		Log: LogConfig{Backend: "file", Path: "interactions.jsonl"},
	}
}

// Load reads the config at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadRules reads the parser rules. An empty path yields the embedded
// defaults.
func LoadRules(path string) (Rules, error) {
	raw := defaultRulesYAML
	if path != "" {
		external, err := os.ReadFile(path)
		if err != nil {
			return Rules{}, fmt.Errorf("read rules: %w", err)
		}
		raw = external
	}
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := validate(rules); err != nil {
		return Rules{}, err
	}
	if len(rules.SubjectSynonyms) == 0 {
		return Rules{}, fmt.Errorf("rules define no subject synonyms")
	}
	return rules, nil
}

func validate(v any) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(v); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
