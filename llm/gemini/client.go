package gemini

import (
	"context"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"

	"github.com/tracetalk/tracetalk/llm"
)

// ProviderID is the stable identity of this adapter.
const ProviderID = "gemini"

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// Client is the Gemini provider adapter backed by Vertex AI.
type Client struct {
	projectID string
	location  string

	client *genai.Client
	model  string

	// gcpOptions are additional options for Google Cloud Platform,
	// e.g. credentials. They can be set using WithGoogleCloudOptions.
	gcpOptions []option.ClientOption
}

// Option is a configuration option for the Gemini client.
type Option func(*Client)

// WithModel sets the model to use for text generation.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithGoogleCloudOptions sets additional Google Cloud options, such as
// authentication credentials or endpoint overrides.
func WithGoogleCloudOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.gcpOptions = append(c.gcpOptions, opts...)
	}
}

// New creates a new Gemini adapter for the given GCP project and location.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	if projectID == "" {
		return nil, goerr.New("gemini project ID is empty")
	}
	if location == "" {
		location = "us-central1"
	}

	client := &Client{
		projectID: projectID,
		location:  location,
		model:     DefaultModel,
	}
	for _, option := range options {
		option(client)
	}

	newClient, err := genai.NewClient(ctx, projectID, location, client.gcpOptions...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("project_id", projectID), goerr.V("location", location))
	}
	client.client = newClient

	return client, nil
}

// ID returns the provider identity.
func (c *Client) ID() string {
	return ProviderID
}

// Ask sends the rendered prompt and conversation history to Gemini and
// returns the answer. Failures are classified once; no internal retry.
func (c *Client) Ask(ctx context.Context, prompt string, history []llm.Message) (*llm.Answer, error) {
	model := c.client.GenerativeModel(c.model)

	chat := model.StartChat()
	chat.History = make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return nil, classifyErr(err)
	}

	var texts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				texts = append(texts, string(text))
			}
		}
	}
	if len(texts) == 0 {
		return nil, llm.NewError(llm.ErrMalformed, ProviderID, goerr.New("response has no text candidates"))
	}

	return &llm.Answer{
		Text:     strings.Join(texts, "\n"),
		Provider: ProviderID,
		Model:    c.model,
	}, nil
}
