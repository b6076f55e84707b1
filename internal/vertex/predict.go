package vertex

import (
	"context"
	"fmt"
	"strings"

	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/option"
)

// Predictor is the legacy publisher-model predict call shared by text
// embedding models and the PaLM-era text generation models.
type Predictor interface {
	Predict(ctx context.Context, model string, instances []any, parameters map[string]any) ([]any, error)
}

type PredictConfig struct {
	ProjectID string
	Region    string
}

type PredictClient struct {
	service   *aiplatform.Service
	projectID string
	region    string
}

func NewPredictClient(ctx context.Context, cfg PredictConfig, opts ...option.ClientOption) (*PredictClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("vertex project id is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("vertex region is required")
	}
	region := strings.TrimSpace(cfg.Region)
	opts = append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("https://%s-aiplatform.googleapis.com/", region)),
	}, opts...)
	service, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create aiplatform service: %w", err)
	}
	return &PredictClient{
		service:   service,
		projectID: strings.TrimSpace(cfg.ProjectID),
		region:    region,
	}, nil
}

func (c *PredictClient) Predict(ctx context.Context, model string, instances []any, parameters map[string]any) ([]any, error) {
	req := &aiplatform.GoogleCloudAiplatformV1PredictRequest{
		Instances: instances,
	}
	if len(parameters) > 0 {
		req.Parameters = parameters
	}
	resp, err := c.service.Projects.Locations.Endpoints.Predict(c.ModelResource(model), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", model, err)
	}
	return resp.Predictions, nil
}

// ModelResource returns the publisher model path used as the predict endpoint.
func (c *PredictClient) ModelResource(model string) string {
	return PublisherModel(c.projectID, c.region, model)
}

func PublisherModel(projectID, region, model string) string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", projectID, region, model)
}
