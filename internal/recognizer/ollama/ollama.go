// Package ollama provides an entity tagger backed by a local Ollama model.
//
// The model is asked for a JSON list of {text, label} pairs; each returned
// text is then located in the input to recover byte offsets. Results are
// cached per input so repeated lines cost one request.
//
// Note: To avoid import cycles, this package defines its own Entity type.
// The parent recognizer package adapts it to recognizer.Span.
package ollama

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultModel     = "llama3.2"
	DefaultTimeout   = 60 * time.Second
	DefaultCacheSize = 4096
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("ollama is not reachable")
	ErrModelNotFound       = errors.New("ollama model has not been pulled")
	ErrInvalidResponse     = errors.New("ollama returned an invalid entity list")
)

// Config holds Ollama-specific configuration.
type Config struct {
	// Host is the Ollama API endpoint (e.g., "http://localhost:11434")
	Host string

	// Model is the model used for tagging (e.g., "llama3.2")
	Model string

	// Timeout bounds each tagging request
	Timeout time.Duration

	// CacheSize caps the number of messages whose entities are remembered.
	// Zero uses DefaultCacheSize; a negative value disables the cache.
	CacheSize int
}

// Entity is a labelled byte range [Start, End) of the tagged text.
type Entity struct {
	Start int
	End   int
	Label string
}

// detection is one item of the model's answer.
type detection struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Client tags entities using an Ollama chat model.
type Client struct {
	client *api.Client
	config Config
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string][]Entity
	order []string // cache keys, oldest first
}

// New creates a Client and verifies the server is up and the model pulled.
// If cfg.Host is empty, it uses the OLLAMA_HOST environment variable or defaults to http://localhost:11434.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client, err := newAPIClient(cfg.Host, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
		logger.Debug("using default model", "model", cfg.Model)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	c := &Client{
		client: client,
		config: cfg,
		logger: logger,
		cache:  make(map[string][]Entity),
	}

	if err := c.Heartbeat(ctx); err != nil {
		return nil, err
	}

	ok, err := c.ModelAvailable(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (run: ollama pull %s)", ErrModelNotFound, cfg.Model, cfg.Model)
	}

	logger.Info("initialized ollama recognizer", "host", cfg.Host, "model", cfg.Model)
	return c, nil
}

func newAPIClient(host string, logger *slog.Logger) (*api.Client, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			logger.Error("failed to create ollama client from environment", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		logger.Debug("created ollama client from environment")
		return client, nil
	}

	parsedURL, err := url.Parse(host)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		logger.Error("invalid ollama host URL", "host", host, "error", err)
		return nil, fmt.Errorf("invalid ollama host: %q", host)
	}
	logger.Debug("created ollama client with explicit host", "host", host)
	return api.NewClient(parsedURL, http.DefaultClient), nil
}

// Heartbeat checks if the Ollama service is reachable and healthy.
func (c *Client) Heartbeat(ctx context.Context) error {
	c.logger.Debug("checking ollama heartbeat")

	if err := c.client.Heartbeat(ctx); err != nil {
		c.logger.Error("ollama heartbeat failed", "error", err)
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}

// ModelAvailable checks if a specific model is available (i.e., has been pulled).
func (c *Client) ModelAvailable(ctx context.Context, model string) (bool, error) {
	listResp, err := c.client.List(ctx)
	if err != nil {
		c.logger.Error("failed to list models", "error", err)
		return false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	for _, m := range listResp.Models {
		if m.Name == model || m.Model == model || strings.TrimSuffix(m.Name, ":latest") == model {
			return true, nil
		}
	}

	c.logger.Debug("model not found", "model", model, "available_count", len(listResp.Models))
	return false, nil
}

const systemPrompt = `You are a named-entity tagger for transaction and log messages.
Return ONLY a JSON object of the form {"entities":[{"text":"...","label":"..."}]}.
"text" must be copied exactly from the message. "label" must be one of:
MONEY, CARDINAL, DATE, TIME, ORG, PERSON, GPE.
Never tag text inside angle-bracket placeholders such as <DATE> or <AMOUNT>.
Return {"entities":[]} when nothing should be tagged.`

// Tag returns the entities found in text ordered by Start.
func (c *Client) Tag(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	key := cacheKey(text)
	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req := &api.ChatRequest{
		Model: c.config.Model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Format: json.RawMessage(`"json"`),
		Options: map[string]any{
			"temperature": 0,
			"seed":        42,
		},
		Stream: new(bool),
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		c.logger.Warn("entity request failed", "error", err, "model", c.config.Model)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	detections, err := parseDetections(content.String())
	if err != nil {
		return nil, err
	}

	entities := locate(text, detections)
	c.logger.Debug("tagged message", "entities", len(entities), "detections", len(detections))

	c.remember(key, entities)
	return entities, nil
}

// remember caches entities under key, evicting the oldest entry once the
// cache is full.
func (c *Client) remember(key string, entities []Entity) {
	if c.config.CacheSize < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache[key]; ok {
		c.cache[key] = entities
		return
	}
	for len(c.order) >= c.config.CacheSize {
		delete(c.cache, c.order[0])
		c.order = c.order[1:]
	}
	c.cache[key] = entities
	c.order = append(c.order, key)
}

// cached returns the number of cached messages.
func (c *Client) cached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// parseDetections accepts either {"entities":[...]} or a bare JSON array,
// tolerating prose around it.
func parseDetections(raw string) ([]detection, error) {
	raw = strings.TrimSpace(raw)

	var wrapped struct {
		Entities []detection `json:"entities"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil {
		return wrapped.Entities, nil
	}

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResponse, raw)
	}

	var list []detection
	if err := json.Unmarshal([]byte(raw[start:end+1]), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return list, nil
}

// locate maps detections back to byte offsets. Each detection is searched
// after the previous match so repeated values map to successive
// occurrences; detections that cannot be found or would overlap are dropped.
func locate(text string, detections []detection) []Entity {
	entities := make([]Entity, 0, len(detections))
	taken := func(start, end int) bool {
		for _, e := range entities {
			if start < e.End && e.Start < end {
				return true
			}
		}
		return false
	}

	cursor := 0
	for _, d := range detections {
		label := strings.ToUpper(strings.TrimSpace(d.Label))
		if d.Text == "" || label == "" {
			continue
		}

		start := -1
		if i := strings.Index(text[cursor:], d.Text); i >= 0 {
			start = cursor + i
		} else if i := strings.Index(text, d.Text); i >= 0 {
			start = i
		}
		if start < 0 {
			continue
		}

		end := start + len(d.Text)
		if taken(start, end) {
			continue
		}
		entities = append(entities, Entity{Start: start, End: end, Label: label})
		if end > cursor {
			cursor = end
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})
	return entities
}

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
