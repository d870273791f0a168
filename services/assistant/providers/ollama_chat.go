// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaChatClient implements ChatClient against a local Ollama daemon.
//
// Thread Safety: safe for concurrent use.
type OllamaChatClient struct {
	baseURL      string
	defaultModel string
	keepAlive    string
	httpClient   *http.Client
}

// NewOllamaChatClient builds an adapter for the daemon at baseURL.
func NewOllamaChatClient(baseURL, model, keepAlive string) *OllamaChatClient {
	if baseURL == "" {
		baseURL = ResolveOllamaURL()
	}
	return &OllamaChatClient{
		baseURL:      baseURL,
		defaultModel: model,
		keepAlive:    keepAlive,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

// ===== Wire types =====

type ollamaChatRequest struct {
	Model     string             `json:"model"`
	Messages  []Message          `json:"messages"`
	Stream    bool               `json:"stream"`
	KeepAlive string             `json:"keep_alive,omitempty"`
	Options   ollamaModelOptions `json:"options"`
}

type ollamaModelOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Chat implements ChatClient.
func (c *OllamaChatClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	keepAlive := opts.KeepAlive
	if keepAlive == "" {
		keepAlive = c.keepAlive
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:     model,
		Messages:  messages,
		Stream:    false,
		KeepAlive: keepAlive,
		Options: ollamaModelOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	return parsed.Message.Content, nil
}
