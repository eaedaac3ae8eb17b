// Package recognizer defines the entity-recognition capability used by the
// final masking stage and builds the configured implementation.
//
// A Recognizer tags spans of text with a category label. The masker only
// depends on that contract, so any tagger satisfying it can be swapped in:
//
//	rec, err := recognizer.New(ctx, cfg.Recognizer, logger)
//	if err != nil {
//	    return err // model or gazetteer unavailable
//	}
//	spans, err := rec.Recognize(ctx, "paid Rs 100 to Swiggy")
//
// Two providers are available: "rules" (built-in dictionary and rule tagger,
// the default) and "ollama" (a local LLM queried through the Ollama API).
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bimmerbailey/stencil/internal/config"
	"github.com/bimmerbailey/stencil/internal/recognizer/ollama"
	"github.com/bimmerbailey/stencil/internal/recognizer/rules"
)

// Category labels produced by recognizers.
const (
	Money    = "MONEY"
	Cardinal = "CARDINAL"
	Date     = "DATE"
	Time     = "TIME"
	Org      = "ORG"
	Person   = "PERSON"
	GPE      = "GPE"
)

// Span is a labelled byte range [Start, End) of the recognized text.
type Span struct {
	Start int
	End   int
	Label string
}

// Recognizer tags spans of text with category labels.
type Recognizer interface {
	// Recognize returns the spans found in text, ordered by Start.
	Recognize(ctx context.Context, text string) ([]Span, error)
}

// Func adapts a plain function to the Recognizer interface.
type Func func(ctx context.Context, text string) ([]Span, error)

// Recognize calls f(ctx, text).
func (f Func) Recognize(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

// ErrModelUnavailable indicates the recognizer could not be initialised
// because its model (or gazetteer) is missing or unreachable.
var ErrModelUnavailable = errors.New("entity recognition model is not available")

// New creates the recognizer selected by cfg.Provider.
// An empty provider selects the rules recognizer.
func New(ctx context.Context, cfg config.RecognizerConfig, logger *slog.Logger) (Recognizer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	logger.Debug("creating entity recognizer", "provider", provider)

	switch provider {
	case "", "rules":
		tagger, err := rules.New(cfg.Gazetteer)
		if err != nil {
			if errors.Is(err, rules.ErrGazetteerNotFound) {
				return nil, fmt.Errorf("%w: gazetteer %q not found", ErrModelUnavailable, cfg.Gazetteer)
			}
			return nil, err
		}
		logger.Info("initialized rules recognizer", "gazetteer", cfg.Gazetteer, "terms", tagger.Terms())
		return &rulesAdapter{tagger: tagger}, nil

	case "ollama":
		client, err := ollama.New(ctx, ollama.Config{
			Host:      cfg.Ollama.Host,
			Model:     cfg.Ollama.Model,
			Timeout:   cfg.Ollama.RequestTimeout(ollama.DefaultTimeout),
			CacheSize: cfg.Ollama.CacheSize,
		}, logger)
		if err != nil {
			if errors.Is(err, ollama.ErrProviderUnavailable) || errors.Is(err, ollama.ErrModelNotFound) {
				return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
			}
			return nil, err
		}
		return &ollamaAdapter{client: client}, nil

	default:
		return nil, fmt.Errorf("unknown recognizer provider: %s (supported: rules, ollama)", provider)
	}
}

// rulesAdapter adapts rules.Tagger to the Recognizer interface.
// This keeps the subpackages free of an import on this package.
type rulesAdapter struct {
	tagger *rules.Tagger
}

func (a *rulesAdapter) Recognize(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entities := a.tagger.Tag(text)
	spans := make([]Span, len(entities))
	for i, e := range entities {
		spans[i] = Span{Start: e.Start, End: e.End, Label: e.Label}
	}
	return spans, nil
}

// ollamaAdapter adapts ollama.Client to the Recognizer interface.
type ollamaAdapter struct {
	client *ollama.Client
}

func (a *ollamaAdapter) Recognize(ctx context.Context, text string) ([]Span, error) {
	entities, err := a.client.Tag(ctx, text)
	if err != nil {
		return nil, err
	}
	spans := make([]Span, len(entities))
	for i, e := range entities {
		spans[i] = Span{Start: e.Start, End: e.End, Label: e.Label}
	}
	return spans, nil
}
