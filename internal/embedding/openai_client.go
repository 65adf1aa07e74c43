package embedding

import (
	"context"
	"fmt"
	"sort"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient embeds through an OpenAI-compatible /embeddings endpoint.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIClient creates a client for model. A non-empty baseURL points the
// client at a compatible server; dimensions, when positive, asks models that
// support it for shortened vectors.
func NewOpenAIClient(apiKey, baseURL, model string, dimensions int) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings call failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
