package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// OpenAIOptions configure the OpenAI embedder.
type OpenAIOptions struct {
	Model      string
	Dimensions int
}

// OpenAIEmbedder calls the OpenAI Embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAI creates an embedder using the default client (OPENAI_API_KEY).
func NewOpenAI(optFns ...func(o *OpenAIOptions)) *OpenAIEmbedder {
	client := openai.NewClient()
	return NewOpenAIFromClient(&client, optFns...)
}

// NewOpenAIFromClient creates an embedder from an existing client.
func NewOpenAIFromClient(client *openai.Client, optFns ...func(o *OpenAIOptions)) *OpenAIEmbedder {
	opts := OpenAIOptions{
		Model:      string(openai.EmbeddingModelTextEmbedding3Small),
		Dimensions: 1536,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OpenAIEmbedder{client: client, opts: opts}
}

// Dimensions implements Embedder.
func (e *OpenAIEmbedder) Dimensions() int { return e.opts.Dimensions }

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(e.opts.Model),
		Dimensions: openai.Int(int64(e.opts.Dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			vec[i] = float32(x)
		}
		out[d.Index] = vec
	}
	return out, nil
}
