package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/vertex"
)

// ContentEmbedder is the subset of *genai.Models used by lang-vertex mode.
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// predictVariant calls the publisher model once per text.
type predictVariant struct {
	client vertex.Predictor
	model  string
}

func (v *predictVariant) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		predictions, err := v.client.Predict(ctx, v.model, []any{map[string]any{"content": text}}, nil)
		if err != nil {
			return nil, err
		}
		if len(predictions) == 0 {
			return nil, fmt.Errorf("embed text %d: empty predictions", i)
		}
		values, err := predictionValues(predictions[0])
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors = append(vectors, values)
	}
	return vectors, nil
}

// predictionValues reads {"embeddings": {"values": [...]}} from a decoded
// predict response.
func predictionValues(prediction any) ([]float32, error) {
	fields, ok := prediction.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected prediction type %T", prediction)
	}
	embeddings, ok := fields["embeddings"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("prediction has no embeddings object")
	}
	raw, ok := embeddings["values"].([]any)
	if !ok {
		return nil, fmt.Errorf("prediction embeddings have no values")
	}
	values := make([]float32, len(raw))
	for i, item := range raw {
		number, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("embedding value %d is %T", i, item)
		}
		values[i] = float32(number)
	}
	return values, nil
}

// serviceVariant asks the embedding service for one text per request.
type serviceVariant struct {
	client     ContentEmbedder
	model      string
	dimensions int
}

func (v *serviceVariant) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var config *genai.EmbedContentConfig
	if v.dimensions > 0 {
		config = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(v.dimensions))}
	}
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}}
		resp, err := v.client.EmbedContent(ctx, v.model, contents, config)
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
			return nil, fmt.Errorf("embed text %d: service returned no embedding", i)
		}
		vectors = append(vectors, resp.Embeddings[0].Values)
	}
	return vectors, nil
}
