package embedder

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// Embedder is the adapter for the OpenAI embeddings API. The cache
// layer only sees it as a generate callable; nothing vendor-specific
// leaks past this package.
type Embedder struct {
	client openai.Client
	model  string
}

// NewEmbedder creates an embedder for the given API key and model.
func NewEmbedder(apiKey, model string) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedder requires an API key")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Embedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// EmbedTexts returns one vector per input text, in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		logrus.Warnf("[EMBEDDER] Expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// EmbedText is the single-input convenience used by the cache layer's
// generate callable for the embedding data type.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return vectors[0], nil
}
