// Package responder turns a user question and its SQL result into a natural
// language answer, through Gemini content generation or a legacy predict model.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/errs"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vertex"
)

const (
	legacyMaxOutputTokens = 8000
	legacyTemperature     = 0
)

type Family string

const (
	FamilyGemini Family = "gemini"
	FamilyLegacy Family = "legacy"
)

// FamilyOf reports which calling convention a model identifier selects.
func FamilyOf(model string) Family {
	if strings.HasPrefix(model, "gemini") {
		return FamilyGemini
	}
	return FamilyLegacy
}

// ContentGenerator is the subset of *genai.Models used for gemini models.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Clients struct {
	Generator ContentGenerator
	Predictor vertex.Predictor
}

// Generator answers a user's question in prose from a SQL result.
type Generator struct {
	model     string
	family    Family
	generator ContentGenerator
	predictor vertex.Predictor
	logger    *slog.Logger
}

func New(model string, clients Clients, logger *slog.Logger) (*Generator, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("%w: responder model is required", errs.ErrInvalidConfiguration)
	}
	g := &Generator{
		model:     model,
		family:    FamilyOf(model),
		generator: clients.Generator,
		predictor: clients.Predictor,
		logger:    observability.LoggerOrDiscard(logger),
	}
	switch g.family {
	case FamilyGemini:
		if g.generator == nil {
			return nil, fmt.Errorf("%w: model %q requires a content generation client", errs.ErrInvalidConfiguration, model)
		}
	case FamilyLegacy:
		if g.predictor == nil {
			return nil, fmt.Errorf("%w: model %q requires a predict client", errs.ErrInvalidConfiguration, model)
		}
	}
	return g, nil
}

func (g *Generator) Model() string {
	return g.model
}

// Run returns the model's answer unchanged, including empty text.
func (g *Generator) Run(ctx context.Context, userQuestion, sqlResult string) (string, error) {
	prompt := buildPrompt(userQuestion, sqlResult)
	g.logger.DebugContext(ctx, "generating natural response",
		slog.String("model", g.model),
		slog.String("family", string(g.family)),
	)

	var (
		answer string
		err    error
	)
	switch g.family {
	case FamilyGemini:
		answer, err = g.generate(ctx, prompt)
	default:
		answer, err = g.predict(ctx, prompt)
	}
	observability.ObserveResponseGeneration(string(g.family), err)
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.generator.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", g.model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("generate content with %s: %w", g.model, errs.ErrNoCandidates)
	}
	return candidateText(resp.Candidates[0]), nil
}

func candidateText(candidate *genai.Candidate) string {
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func (g *Generator) predict(ctx context.Context, prompt string) (string, error) {
	params := map[string]any{
		"maxOutputTokens": legacyMaxOutputTokens,
		"temperature":     legacyTemperature,
	}
	predictions, err := g.predictor.Predict(ctx, g.model, []any{legacyInstance(g.model, prompt)}, params)
	if err != nil {
		return "", err
	}
	if len(predictions) == 0 {
		return "", fmt.Errorf("predict with %s: %w", g.model, errs.ErrNoCandidates)
	}
	return predictionText(predictions[0])
}

// legacyInstance shapes the request the way each PaLM-era model expects it.
func legacyInstance(model, prompt string) map[string]any {
	switch {
	case strings.HasPrefix(model, "codechat-bison"):
		return map[string]any{"messages": []any{map[string]any{"author": "user", "content": prompt}}}
	case strings.HasPrefix(model, "code-bison"):
		return map[string]any{"prefix": prompt}
	default:
		return map[string]any{"prompt": prompt}
	}
}

func predictionText(prediction any) (string, error) {
	fields, ok := prediction.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected prediction type %T", prediction)
	}
	if content, ok := fields["content"].(string); ok {
		return content, nil
	}
	// Chat models answer with a candidates list.
	if candidates, ok := fields["candidates"].([]any); ok {
		if len(candidates) == 0 {
			return "", errs.ErrNoCandidates
		}
		if first, ok := candidates[0].(map[string]any); ok {
			content, _ := first["content"].(string)
			return content, nil
		}
	}
	return "", fmt.Errorf("prediction has no content")
}
