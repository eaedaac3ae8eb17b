// Package cluster groups masked templates by exact match.
//
// Two templates belong to the same cluster when they are equal after
// whitespace normalisation. Each cluster keeps a count and the first few raw
// messages that produced it. Clusters are reported in the order they were
// first seen.
package cluster

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
)

// DefaultMaxExamples is the number of raw messages kept per record.
const DefaultMaxExamples = 3

// Record is one template cluster.
type Record struct {
	Key      string   `json:"key"`
	Template string   `json:"template"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

// Normalize collapses whitespace runs to single spaces and trims the ends.
func Normalize(template string) string {
	return strings.Join(strings.Fields(template), " ")
}

// Key returns the 32 character hex digest identifying template.
func Key(template string) string {
	sum := md5.Sum([]byte(Normalize(template)))
	return hex.EncodeToString(sum[:])
}

// Aggregate collects records keyed by template digest, preserving first-seen
// order. It is safe for concurrent use.
type Aggregate struct {
	mu          sync.RWMutex
	order       []string
	records     map[string]*Record
	maxExamples int
	total       int
}

// Option configures an Aggregate.
type Option func(*Aggregate)

// WithMaxExamples caps the examples kept per record. Values below zero are
// ignored; zero keeps none.
func WithMaxExamples(n int) Option {
	return func(a *Aggregate) {
		if n >= 0 {
			a.maxExamples = n
		}
	}
}

// New creates an empty Aggregate.
func New(opts ...Option) *Aggregate {
	a := &Aggregate{
		records:     make(map[string]*Record),
		maxExamples: DefaultMaxExamples,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ingest records one occurrence of template under key. The first call for a
// key creates the record; later calls bump its count and keep raw as an
// example while there is room. It reports whether the record is new.
func (a *Aggregate) Ingest(key, template, raw string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++

	rec, ok := a.records[key]
	if !ok {
		rec = &Record{Key: key, Template: template}
		a.records[key] = rec
		a.order = append(a.order, key)
	}

	rec.Count++
	if len(rec.Examples) < a.maxExamples {
		rec.Examples = append(rec.Examples, raw)
	}
	return !ok
}

// Observe computes the key for template and ingests it.
func (a *Aggregate) Observe(template, raw string) (key string, isNew bool) {
	key = Key(template)
	return key, a.Ingest(key, template, raw)
}

// Records returns copies of all records in first-seen order.
func (a *Aggregate) Records() []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Record, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, copyRecord(a.records[key]))
	}
	return out
}

// Top returns the n most frequent records, ties kept in first-seen order.
// n <= 0 returns every record ordered by count.
func (a *Aggregate) Top(n int) []Record {
	records := a.Records()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Count > records[j].Count
	})
	if n > 0 && n < len(records) {
		records = records[:n]
	}
	return records
}

// Lookup returns a copy of the record stored under key.
func (a *Aggregate) Lookup(key string) (Record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rec, ok := a.records[key]
	if !ok {
		return Record{}, false
	}
	return copyRecord(rec), true
}

// Len returns the number of distinct templates.
func (a *Aggregate) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.order)
}

// Total returns the number of ingested messages.
func (a *Aggregate) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

func copyRecord(r *Record) Record {
	out := *r
	out.Examples = append([]string(nil), r.Examples...)
	return out
}
