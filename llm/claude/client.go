package claude

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"

	"github.com/tracetalk/tracetalk/llm"
)

// ProviderID is the stable identity of this adapter.
const ProviderID = "claude"

// Client is the Claude provider adapter. It hides Anthropic's
// request/response formats behind the provider-neutral Ask capability.
type Client struct {
	client *anthropic.Client

	// model is the model used for completions. Overridable with WithModel.
	model string

	maxTokens int64
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use for completions.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// New creates a new Claude adapter. The API key is a resolved
// credential supplied by the caller; it is never read from ambient
// state here.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("claude API key is empty")
	}

	client := &Client{
		model:     anthropic.ModelClaude3_5SonnetLatest,
		maxTokens: 4096,
	}
	for _, option := range options {
		option(client)
	}

	newClient := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	client.client = &newClient

	return client, nil
}

// ID returns the provider identity.
func (c *Client) ID() string {
	return ProviderID
}

// Ask sends the rendered prompt and conversation history to Claude and
// returns the answer. It never retries; failures are classified into
// the shared provider error taxonomy and returned once.
func (c *Client) Ask(ctx context.Context, prompt string, history []llm.Message) (*llm.Answer, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, msg := range history {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == llm.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return nil, classifyErr(err)
	}

	var texts []string
	for _, content := range resp.Content {
		textBlock := content.AsResponseTextBlock()
		if textBlock.Type == "text" {
			texts = append(texts, textBlock.Text)
		}
	}
	if len(texts) == 0 {
		return nil, llm.NewError(llm.ErrMalformed, ProviderID, goerr.New("response has no text content"))
	}

	return &llm.Answer{
		Text:     strings.Join(texts, "\n"),
		Provider: ProviderID,
		Model:    c.model,
	}, nil
}
