// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm holds the concrete ports.LLMProvider adapter that
// parse.Orchestrator calls into, built over a plain resty client rather
// than a dedicated SDK.
package llm

import (
	"context"
	"encoding/base64"

	"github.com/go-resty/resty/v2"

	"github.com/bigodinhc/investctr/apperr"
)

const messagesURL = "https://api.anthropic.com/v1/messages"

// Anthropic implements ports.LLMProvider over the Messages API's PDF
// document-block support.
type Anthropic struct {
	client *resty.Client
	model  string
}

// NewAnthropic builds an Anthropic client. model defaults to
// claude-sonnet-4-5 when empty.
func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	client := resty.New().
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetHeader("content-type", "application/json")
	return &Anthropic{client: client, model: model}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Source *source `json:"source,omitempty"`
}

type source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements ports.LLMProvider, sending pdf as a base64 document
// block alongside prompt and returning the first text block of the
// response.
func (a *Anthropic) Complete(ctx context.Context, pdf []byte, prompt string, maxTokens int) (string, error) {
	req := messageRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []message{
			{
				Role: "user",
				Content: []block{
					{
						Type: "document",
						Source: &source{
							Type:      "base64",
							MediaType: "application/pdf",
							Data:      base64.StdEncoding.EncodeToString(pdf),
						},
					},
					{Type: "text", Text: prompt},
				},
			},
		},
	}

	var result messageResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(messagesURL)
	if err != nil {
		return "", apperr.ExternalProvider(err, "anthropic request failed")
	}
	if resp.StatusCode() >= 400 {
		msg := resp.String()
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", apperr.ExternalProvider(nil, "anthropic api returned status %d: %s", resp.StatusCode(), msg)
	}
	if len(result.Content) == 0 {
		return "", apperr.ExternalProvider(nil, "anthropic response had no content blocks")
	}
	return result.Content[0].Text, nil
}
