// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"fmt"
	"os"
)

// Provider constants for supported LLM providers.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ValidProviders contains the set of valid provider names.
var ValidProviders = []string{ProviderNone, ProviderOllama, ProviderOpenAI}

func isValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if provider == p {
			return true
		}
	}
	return false
}

// ProviderConfig holds the configuration for one LLM provider instance.
type ProviderConfig struct {
	// Provider is the backend to use: "none", "ollama" or "openai".
	Provider string

	// Model is the provider-specific model identifier.
	Model string

	// BaseURL is an optional endpoint override. For Ollama it defaults to
	// OLLAMA_BASE_URL or http://localhost:11434.
	BaseURL string

	// APIKey is the authentication key for cloud providers, loaded from
	// OPENAI_API_KEY.
	APIKey string

	// KeepAlive controls model VRAM lifetime (Ollama-specific).
	KeepAlive string
}

// Enabled reports whether a real provider is configured.
func (c ProviderConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// ResolveOllamaURL resolves the Ollama server URL from the environment,
// defaulting to the local daemon.
func ResolveOllamaURL() string {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:11434"
}

// LoadParserConfig reads the query-parser provider configuration from
// environment variables.
//
// Description:
//
//	Reads COURSEDB_PARSER_PROVIDER and COURSEDB_PARSER_MODEL. With no
//	provider set the parser runs rules-only ("none"), which is the
//	default deployment: the service never requires an LLM to answer.
//
// Outputs:
//   - ProviderConfig: The parser role configuration.
//   - error: Non-nil if an invalid provider is specified.
func LoadParserConfig() (ProviderConfig, error) {
	provider := os.Getenv("COURSEDB_PARSER_PROVIDER")
	if provider == "" {
		provider = ProviderNone
	}
	if !isValidProvider(provider) {
		return ProviderConfig{}, fmt.Errorf("invalid provider %q for COURSEDB_PARSER_PROVIDER (valid: %v)", provider, ValidProviders)
	}

	cfg := ProviderConfig{
		Provider: provider,
		Model:    os.Getenv("COURSEDB_PARSER_MODEL"),
	}

	switch provider {
	case ProviderOllama:
		cfg.BaseURL = ResolveOllamaURL()
		if cfg.Model == "" {
			cfg.Model = "llama3.1:8b"
		}
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.Model == "" {
			cfg.Model = "gpt-4o-mini"
		}
		if cfg.APIKey == "" {
			return ProviderConfig{}, fmt.Errorf("COURSEDB_PARSER_PROVIDER is %q but OPENAI_API_KEY is not set", provider)
		}
	}

	return cfg, nil
}
