// Package masker turns raw messages into templates by replacing variable
// substrings with placeholder tokens.
//
// Masking runs in two stages over a single string:
//
//  1. Regex stages (date, amount, masked account, "account no" digits),
//     applied in a fixed order so earlier stages own their spans.
//  2. Entity recognition over the partially masked string. Spans are
//     substituted right to left so offsets of the remaining spans stay valid,
//     and a span touching an existing placeholder is skipped. The stage is
//     rerun until the text no longer changes.
//
// The result is deterministic and idempotent: masking a template again
// returns it unchanged.
//
// Basic usage:
//
//	m, err := masker.New(rec, masker.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	template := m.Mask("You have paid Rs 100 to Swiggy on 12-05-2025.")
//	// "You have paid <AMOUNT> to <ENTITY> on <DATE>."
package masker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bimmerbailey/stencil/internal/recognizer"
)

// ErrorSentinel is returned by Mask when the Masker has no recognizer.
const ErrorSentinel = "Error: Model not loaded."

// ErrRecognizerUnavailable indicates New was given no recognizer.
var ErrRecognizerUnavailable = errors.New("entity recognizer is not available")

// Masker applies the masking pipeline. It holds no per-call state and is
// safe for concurrent use if its recognizer is.
type Masker struct {
	recognizer recognizer.Recognizer
	logger     *slog.Logger
}

// Option configures a Masker.
type Option func(*Masker)

// WithLogger sets the logger used to report recognizer failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Masker) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Masker using rec for the entity stage.
func New(rec recognizer.Recognizer, opts ...Option) (*Masker, error) {
	if rec == nil {
		return nil, ErrRecognizerUnavailable
	}

	m := &Masker{
		recognizer: rec,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mask returns the template for text.
func (m *Masker) Mask(text string) string {
	return m.MaskContext(context.Background(), text)
}

// MaskContext returns the template for text, passing ctx to the recognizer.
// A recognizer error is logged and the text masked so far returned.
//
// The entity stage is repeated until it stops changing the text: a
// substitution can expose a neighbour that only matches once it sits next to
// a placeholder (digits glued to a time, a name after an amount). Every pass
// that changes the text replaces at least one byte outside the existing
// placeholders, so the loop is bounded by the length of the text.
func (m *Masker) MaskContext(ctx context.Context, text string) string {
	if m == nil || m.recognizer == nil {
		return ErrorSentinel
	}
	if text == "" {
		return ""
	}

	masked := ApplyPatterns(text)

	for passes := len(masked); passes >= 0; passes-- {
		spans, err := m.recognizer.Recognize(ctx, masked)
		if err != nil {
			m.logger.Warn("entity recognition failed, keeping regex masking", "error", err)
			return masked
		}

		next := ApplyPatterns(applySpans(masked, spans))
		if next == masked {
			break
		}
		masked = next
	}

	return masked
}

// applySpans substitutes spans into text from the rightmost start leftwards.
//
// Offsets refer to text as given. Everything left of the last substituted
// span is untouched, so a span is only applied if it ends at or before that
// point; together with the placeholder checks this means no substitution ever
// lands inside another one.
func applySpans(text string, spans []recognizer.Span) string {
	if len(spans) == 0 {
		return text
	}

	ordered := make([]recognizer.Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	protected := placeholderRegex.FindAllStringIndex(text, -1)

	result := text
	floor := len(text)
	for _, s := range ordered {
		if s.Start < 0 || s.End > floor || s.Start >= s.End {
			continue
		}
		if !utf8.RuneStart(text[s.Start]) || (s.End < len(text) && !utf8.RuneStart(text[s.End])) {
			continue
		}

		current := result[s.Start:s.End]
		if strings.Contains(current, "<") || overlapsAny(s.Start, s.End, protected) {
			continue
		}

		result = result[:s.Start] + placeholderFor(s.Label, current) + result[s.End:]
		floor = s.Start
	}

	return result
}

func overlapsAny(start, end int, regions [][]int) bool {
	for _, r := range regions {
		if start < r[1] && r[0] < end {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
