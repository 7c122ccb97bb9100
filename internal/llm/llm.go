// Package llm proposes advisory essay marks through an OpenAI-compatible API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// markResponse is the JSON object the marking prompt asks for.
type markResponse struct {
	Mark      float64 `json:"mark"`
	Rationale string  `json:"rationale"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. An empty variant means prompts.Standard.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if variant == "" {
		variant = string(prompts.Standard)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.Variant(variant),
	}, nil
}

// Ping checks that the API is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM API ping: %w", err)
	}
	return nil
}

// SuggestEssayMark asks the model for a mark for one essay answer. The mark is
// clamped to the essay's points and is never written to a result.
func (c *Client) SuggestEssayMark(ctx context.Context, essay model.Essay, answer string) (*model.EssaySuggestion, error) {
	maxPoints := essay.MaxPoints()
	systemPrompt, err := prompts.BuildMarkPrompt(c.variant, essay.Prompt, maxPoints, answer)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Mark the answer."},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", essay.ID, "raw", raw)

	mr, err := parseMarkResponse(raw)
	if err != nil {
		return nil, err
	}
	return &model.EssaySuggestion{
		QuestionID: essay.ID,
		Mark:       min(max(mr.Mark, 0), maxPoints),
		MaxPoints:  maxPoints,
		Rationale:  mr.Rationale,
	}, nil
}

// parseMarkResponse decodes the model output, tolerating a fenced code block
// around the JSON.
func parseMarkResponse(raw string) (*markResponse, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	var mr markResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &mr); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return &mr, nil
}
