package vertex

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// NewGenAIClient returns a genai client bound to the Vertex AI backend.
func NewGenAIClient(ctx context.Context, projectID, region string) (*genai.Client, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("vertex project id is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  strings.TrimSpace(projectID),
		Location: strings.TrimSpace(region),
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}
