// Package embedding turns text into fixed-dimension vectors through one of two
// Vertex AI calling conventions chosen once at construction.
//
// Mode "vertex" talks to the publisher text-embedding model directly and issues
// one predict call per input text. Mode "lang-vertex" goes through the genai
// embedding service and sends a sequence in a single request. Neither mode
// caches or retries; every call reaches the service and every service error is
// returned to the caller.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/errs"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vertex"
)

type Mode string

const (
	ModeVertex     Mode = "vertex"
	ModeLangVertex Mode = "lang-vertex"
)

const DefaultDimensions = 768

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.TrimSpace(raw)) {
	case ModeVertex:
		return ModeVertex, nil
	case ModeLangVertex:
		return ModeLangVertex, nil
	default:
		return "", fmt.Errorf("%w: embedding mode must be either %s or %s, got %q",
			errs.ErrInvalidConfiguration, ModeVertex, ModeLangVertex, raw)
	}
}

// Provider is what the storage and HTTP layers need from an embedder.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// Clients carries the vendor handles a variant may need. Only the one matching
// the selected mode has to be set.
type Clients struct {
	Predictor vertex.Predictor
	Service   ContentEmbedder
}

type Option func(*Embedder)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) { e.logger = logger }
}

// WithDimensions sets the output dimensionality requested from the embedding
// service in lang-vertex mode.
func WithDimensions(dimensions int) Option {
	return func(e *Embedder) { e.dimensions = dimensions }
}

// variant is the closed set of embedding backends.
type variant interface {
	embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Embedder struct {
	mode       Mode
	model      string
	dimensions int
	backend    variant
	logger     *slog.Logger
}

func New(mode Mode, model string, clients Clients, opts ...Option) (*Embedder, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("%w: embedding model is required", errs.ErrInvalidConfiguration)
	}

	e := &Embedder{mode: mode, model: model, dimensions: DefaultDimensions}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = observability.LoggerOrDiscard(e.logger)

	switch mode {
	case ModeVertex:
		if clients.Predictor == nil {
			return nil, fmt.Errorf("%w: vertex mode requires a predict client", errs.ErrInvalidConfiguration)
		}
		e.backend = &predictVariant{client: clients.Predictor, model: model}
	case ModeLangVertex:
		if clients.Service == nil {
			return nil, fmt.Errorf("%w: lang-vertex mode requires an embedding service client", errs.ErrInvalidConfiguration)
		}
		e.backend = &serviceVariant{client: clients.Service, model: model, dimensions: e.dimensions}
	}
	return e, nil
}

func (e *Embedder) Mode() Mode {
	return e.mode
}

func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the embedding of a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed text: service returned %d embeddings for 1 input", len(vectors))
	}
	return vectors[0], nil
}

// EmbedAll returns one embedding per text, in input order.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := e.call(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed texts: service returned %d embeddings for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

// Create accepts loosely typed input such as a decoded JSON value: a string
// yields []float32, a []string or []any of strings yields [][]float32.
func (e *Embedder) Create(ctx context.Context, input any) (any, error) {
	switch value := input.(type) {
	case string:
		return e.Embed(ctx, value)
	case []string:
		return e.EmbedAll(ctx, value)
	case []any:
		texts := make([]string, 0, len(value))
		for i, item := range value {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T, want string", errs.ErrInvalidInput, i, item)
			}
			texts = append(texts, text)
		}
		return e.EmbedAll(ctx, texts)
	default:
		return nil, fmt.Errorf("%w: input must be either a string or a list of strings, got %T", errs.ErrInvalidInput, input)
	}
}

func (e *Embedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.backend.embed(ctx, texts)
	observability.ObserveEmbeddingCall(string(e.mode), time.Since(start), err)
	if err != nil {
		e.logger.DebugContext(ctx, "embedding call failed",
			slog.String("mode", string(e.mode)),
			slog.String("model", e.model),
			slog.Int("inputs", len(texts)),
			slog.Any("error", err),
		)
		return nil, err
	}
	return vectors, nil
}
