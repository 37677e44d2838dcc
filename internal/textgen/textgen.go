// Package textgen talks to a chat-completion model and returns plain-text
// replies with markdown decoration removed.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

// Generator produces a reply for prompt under the given system instruction.
// data, when non-empty, is appended to the user message as context.
type Generator interface {
	Generate(ctx context.Context, prompt, system, data string) (string, error)
}

// OpenAIClient implements Generator against the OpenAI chat completions API
// or any compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client. baseURL may be empty to use the public
// endpoint.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

var errEmptyReply = errors.New("textgen: model returned no choices")

func (c *OpenAIClient) Generate(ctx context.Context, prompt, system, data string) (string, error) {
	user := prompt
	if data != "" {
		user += "\nData Source " + data
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("textgen: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyReply
	}
	return Clean(resp.Choices[0].Message.Content), nil
}

var (
	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underlineRe  = regexp.MustCompile(`__(.*?)__`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	headingRe    = regexp.MustCompile(`(?m)^#+\s*(.*)$`)
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	strayTickRe  = regexp.MustCompile("^`|`$")
)

// Clean strips bold and underline markers, replaces links with their URL,
// drops heading markers and inline code ticks, and trims whitespace.
func Clean(s string) string {
	s = boldRe.ReplaceAllString(s, "$1")
	s = underlineRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$2")
	s = headingRe.ReplaceAllString(s, "$1")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = strayTickRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
