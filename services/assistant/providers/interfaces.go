// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers defines a provider-agnostic chat interface and factories
// for the LLM backends the query parser can use (Ollama locally, OpenAI in
// the cloud). The assistant works without any provider at all; the rule
// parser covers every phrasing the LLM is merely better at.
//
// Thread Safety:
//
//	All interfaces in this package must be implemented as safe for
//	concurrent use.
package providers

import "context"

// Message is one chat turn sent to a provider.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`

	Content string `json:"content"`
}

// ChatClient is the minimal interface the query parser needs.
//
// Description:
//
//	The parser only needs simple chat (no tool calls, no streaming), which
//	keeps adapters trivial for any provider.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - opts: Provider-agnostic chat options.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}

// ChatOptions holds provider-agnostic options for a chat request.
type ChatOptions struct {
	// Temperature controls randomness (0.0-1.0). The parser always sends
	// 0.0; parsing must be as deterministic as the provider allows.
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// Model overrides the model for this request. If empty, the adapter's
	// construction-time default is used.
	Model string

	// KeepAlive controls model VRAM lifetime (Ollama-specific, ignored by
	// cloud providers).
	KeepAlive string
}
