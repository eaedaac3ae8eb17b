// Package input reads raw messages from newline-delimited sources.
//
// Every physical line counts toward the line total; lines are trimmed and
// blank ones are skipped. With JSON extraction enabled, a line holding a
// JSON object contributes its message field instead of the whole line.
package input

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// ErrInputNotFound indicates the input file does not exist.
var ErrInputNotFound = errors.New("input file not found")

// Message is one non-blank input line.
type Message struct {
	Raw  string // trimmed line, or the extracted JSON message
	Line int    // 1-based line number in the source
}

// Stats summarises a read.
type Stats struct {
	Lines    int // every line read, blank ones included
	Messages int // lines passed to the callback
}

// messageKeys are the JSON fields tried, in order, for the message text.
var messageKeys = []string{"msg", "message", "text"}

// Reader streams messages from files or readers.
type Reader struct {
	jsonMessages bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithJSONMessages makes the reader take the msg, message or text field of
// JSON object lines as the message.
func WithJSONMessages() Option {
	return func(r *Reader) {
		r.jsonMessages = true
	}
}

// New creates a Reader.
func New(opts ...Option) *Reader {
	r := &Reader{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile opens path and streams its messages to fn.
// A missing file is reported as ErrInputNotFound.
func (r *Reader) ReadFile(path string, fn func(Message) error) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stats{}, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return Stats{}, err
	}
	defer f.Close()

	return r.Read(f, fn)
}

// Read streams the messages of src to fn, stopping at the first error fn
// returns.
func (r *Reader) Read(src io.Reader, fn func(Message) error) (Stats, error) {
	var stats Stats
	br := bufio.NewReader(src)

	for {
		line, err := ReadLine(br)
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("reading input: %w", err)
		}

		stats.Lines++
		text, ok := r.Normalize(line)
		if !ok {
			continue
		}

		stats.Messages++
		if err := fn(Message{Raw: text, Line: stats.Lines}); err != nil {
			return stats, err
		}
	}
}

// ReadLine returns the next line of br without its line ending. Lines of
// any length are returned whole; a final line without a newline is still
// returned. io.EOF is reported only once nothing is left.
func ReadLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Normalize returns the message carried by a single line and whether the
// line holds one.
func (r *Reader) Normalize(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if r.jsonMessages {
		if msg, ok := jsonMessage(line); ok {
			return msg, true
		}
	}
	return line, true
}

// jsonMessage extracts the message field of a JSON object line.
func jsonMessage(line string) (string, bool) {
	if line[0] != '{' {
		return "", false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return "", false
	}

	for _, key := range messageKeys {
		if v, ok := data[key].(string); ok {
			v = strings.TrimSpace(v)
			if v == "" {
				return "", false
			}
			return v, true
		}
	}
	return "", false
}
