// Package redact scrubs sensitive values from the raw example messages kept
// alongside each template.
//
// A value always maps to the same placeholder within one Redactor, so
// examples that mention the same address or card still line up:
//
//	"login from 10.0.0.7 failed" -> "login from [IPV4:1f3a] failed"
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownPattern indicates a pattern name that is not built in.
var ErrUnknownPattern = errors.New("unknown redaction pattern")

// Redactor replaces sensitive values with stable placeholders.
type Redactor struct {
	patterns []Pattern
	mu       sync.RWMutex
	seen     map[string]string // value -> placeholder
}

// New creates a Redactor applying the named patterns in order.
// An empty list selects DefaultPatterns.
func New(names []string) (*Redactor, error) {
	if len(names) == 0 {
		names = DefaultPatterns()
	}

	patterns := make([]Pattern, 0, len(names))
	for _, name := range names {
		p, ok := BuiltInPatterns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPattern, name)
		}
		patterns = append(patterns, p)
	}

	return &Redactor{
		patterns: patterns,
		seen:     make(map[string]string),
	}, nil
}

// Redact returns text with every match of the configured patterns replaced.
func (r *Redactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.Regex.ReplaceAllStringFunc(text, func(match string) string {
			return r.placeholder(match, p.Kind)
		})
	}
	return text
}

// Patterns returns the configured pattern names in application order.
func (r *Redactor) Patterns() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.Name
	}
	return names
}

// Values returns a copy of the value to placeholder mapping seen so far.
func (r *Redactor) Values() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.seen))
	for k, v := range r.seen {
		out[k] = v
	}
	return out
}

func (r *Redactor) placeholder(value, kind string) string {
	r.mu.RLock()
	p, ok := r.seen[value]
	r.mu.RUnlock()
	if ok {
		return p
	}

	sum := sha256.Sum256([]byte(value))
	p = fmt.Sprintf("[%s:%s]", kind, hex.EncodeToString(sum[:2]))

	r.mu.Lock()
	r.seen[value] = p
	r.mu.Unlock()
	return p
}
