// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"fmt"
	"log/slog"
)

// NewChatClient creates the adapter for a provider configuration.
//
// Outputs:
//   - ChatClient: The adapter, nil when the provider is "none".
//   - error: Non-nil for unknown providers or missing credentials.
//
// A nil client with a nil error is the rules-only deployment; callers must
// treat it as "no LLM available", not as a failure.
func NewChatClient(cfg ProviderConfig, logger *slog.Logger) (ChatClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "", ProviderNone:
		logger.Info("no LLM provider configured, parser runs rules-only")
		return nil, nil
	case ProviderOllama:
		logger.Info("using Ollama chat provider",
			slog.String("base_url", cfg.BaseURL),
			slog.String("model", cfg.Model))
		return NewOllamaChatClient(cfg.BaseURL, cfg.Model, cfg.KeepAlive), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		logger.Info("using OpenAI chat provider", slog.String("model", cfg.Model))
		return NewOpenAIChatClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: %v)", cfg.Provider, ValidProviders)
	}
}
