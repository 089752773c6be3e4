package gpt

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/tracetalk/tracetalk/llm"
)

// ProviderID is the stable identity of this adapter.
const ProviderID = "gpt"

// Client is the OpenAI provider adapter.
type Client struct {
	client *openai.Client
	model  string
}

type Option func(*Client)

// WithModel sets the model to use for completions.
// Default: gpt-4-turbo-preview
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new OpenAI adapter with the resolved API key.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("openai API key is empty")
	}

	client := &Client{
		model: "gpt-4-turbo-preview",
	}
	for _, option := range options {
		option(client)
	}

	client.client = openai.NewClient(apiKey)
	return client, nil
}

// ID returns the provider identity.
func (c *Client) ID() string {
	return ProviderID
}

// Ask sends the rendered prompt and conversation history to OpenAI and
// returns the answer. Failures are classified once; no internal retry.
func (c *Client) Ask(ctx context.Context, prompt string, history []llm.Message) (*llm.Answer, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == llm.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return nil, classifyErr(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, llm.NewError(llm.ErrMalformed, ProviderID, goerr.New("response has no choices"))
	}

	return &llm.Answer{
		Text:     resp.Choices[0].Message.Content,
		Provider: ProviderID,
		Model:    c.model,
	}, nil
}
