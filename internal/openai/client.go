package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
	// DefaultGenerationModel is the OpenAI model used for text generation
	DefaultGenerationModel = openai.GPT4oMini
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionAPI defines the interface for text generation
type CompletionAPI interface {
	CreateCompletion(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// CompletionOptions controls a single generation call.
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
	// JSONOnly forces the model to emit a single JSON object.
	JSONOnly bool
}

// Client wraps the OpenAI API client
type Client struct {
	embeddings EmbeddingAPI
	completion CompletionAPI
	dimensions int
}

// OpenAIAdapter adapts the go-openai SDK to the client interfaces.
type OpenAIAdapter struct {
	client   *openai.Client
	embModel openai.EmbeddingModel
	genModel string
}

func NewOpenAIAdapter(apiKey string, embModel openai.EmbeddingModel, genModel string) *OpenAIAdapter {
	if embModel == "" {
		embModel = DefaultEmbeddingModel
	}
	if genModel == "" {
		genModel = DefaultGenerationModel
	}
	return &OpenAIAdapter{
		client:   openai.NewClient(apiKey),
		embModel: embModel,
		genModel: genModel,
	}
}

// CreateEmbeddings calls the OpenAI API to embed a batch of texts.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// CreateCompletion calls the OpenAI chat API for a single-turn completion.
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.genModel,
		Temperature: opts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.JSONOnly {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	GenerationModel     string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	adapter := NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.GenerationModel)
	return &Client{
		embeddings: adapter,
		completion: adapter,
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for a single text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embeddings, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return embeddings[0], nil
}

// GenerateEmbeddings embeds a batch of texts in one request
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}

	embeddings, err := c.embeddings.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	expected := c.dimensions
	if expected <= 0 {
		expected = DefaultEmbeddingDimensions
	}
	for _, emb := range embeddings {
		if len(emb) != expected {
			return nil, ErrWrongDimensions
		}
	}

	return embeddings, nil
}

// GenerateText runs a single-turn completion and returns the raw text
func (c *Client) GenerateText(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}

	text, err := c.completion.CreateCompletion(ctx, prompt, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	return text, nil
}

// GenerateJSON runs a completion constrained to a single JSON object
func (c *Client) GenerateJSON(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	opts.JSONOnly = true
	return c.GenerateText(ctx, prompt, opts)
}
