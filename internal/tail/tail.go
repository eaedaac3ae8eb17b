// Package tail follows a growing message file.
//
// It implements "tail -f" like functionality with optional pattern matching
// and log rotation handling. Lines are normalised the same way as batch
// input, so a followed file yields the same messages a batch read would.
package tail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/bimmerbailey/stencil/internal/input"
	"github.com/fsnotify/fsnotify"
)

// DefaultRotationTimeout bounds the wait for a rotated file to reappear.
const DefaultRotationTimeout = 10 * time.Second

// ErrFileRotated is returned when the file is rotated and FollowRotate is off.
var ErrFileRotated = errors.New("file rotated")

// Options configures the tailer behavior.
type Options struct {
	FilePath        string                    // Path to the message file
	FromStart       bool                      // Emit existing content before following
	Follow          bool                      // Whether to follow the file for new content
	FollowRotate    bool                      // Whether to follow through log rotations
	Pattern         *regexp.Regexp            // Optional regex pattern to filter lines
	Reader          *input.Reader             // Line normalisation; defaults to input.New()
	RotationTimeout time.Duration             // Defaults to DefaultRotationTimeout
	Logger          *slog.Logger              // Defaults to a discarding logger
	OnCaughtUp      func(lines int) error     // Called once existing content is consumed
	OutputFunc      func(input.Message) error // Function called for each matching message
}

// Tailer handles tailing a message file with filtering.
type Tailer struct {
	opts    Options
	reader  *input.Reader
	logger  *slog.Logger
	file    *os.File
	offset  int64
	lines   int
	watcher *fsnotify.Watcher
}

// New creates a new Tailer with the given options.
func New(opts Options) *Tailer {
	if opts.RotationTimeout <= 0 {
		opts.RotationTimeout = DefaultRotationTimeout
	}

	reader := opts.Reader
	if reader == nil {
		reader = input.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Tailer{
		opts:   opts,
		reader: reader,
		logger: logger,
	}
}

// Run starts the tailing process. It blocks until context is cancelled or an error occurs.
func (t *Tailer) Run(ctx context.Context) error {
	if t.opts.OutputFunc == nil {
		return errors.New("output function is required")
	}

	if err := t.openFile(); err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer t.close()

	// Watch before the first read so appends made meanwhile still raise events.
	if t.opts.Follow {
		if err := t.setupWatcher(); err != nil {
			return fmt.Errorf("failed to setup watcher: %w", err)
		}
	}

	if t.opts.FromStart {
		if err := t.readNewContent(); err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
	}

	if t.opts.OnCaughtUp != nil {
		if err := t.opts.OnCaughtUp(t.lines); err != nil {
			return err
		}
	}

	if !t.opts.Follow {
		return nil
	}

	return t.watch(ctx)
}

// Lines returns the number of lines read so far, blank ones included.
func (t *Tailer) Lines() int {
	return t.lines
}

// openFile opens the file and, unless reading from the start, records the
// current end as the starting offset.
func (t *Tailer) openFile() error {
	f, err := os.Open(t.opts.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", input.ErrInputNotFound, t.opts.FilePath)
		}
		return err
	}
	t.file = f

	if !t.opts.FromStart {
		stat, err := f.Stat()
		if err != nil {
			return err
		}
		t.offset = stat.Size()
	}

	return nil
}

// setupWatcher initializes the fsnotify watcher.
func (t *Tailer) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	t.watcher = watcher

	return watcher.Add(t.opts.FilePath)
}

// watch monitors the file for changes and outputs new lines.
func (t *Tailer) watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-t.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}

			if err := t.handleEvent(ctx, event); err != nil {
				return err
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// handleEvent processes a file system event.
func (t *Tailer) handleEvent(ctx context.Context, event fsnotify.Event) error {
	switch {
	case event.Has(fsnotify.Write):
		return t.readNewContent()

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return t.handleRotation(ctx)

	case event.Has(fsnotify.Chmod):
		// Unlinking a file we still hold open only changes its link count.
		if t.replaced() {
			return t.handleRotation(ctx)
		}
	}

	return nil
}

// replaced reports whether the path no longer refers to the open file.
func (t *Tailer) replaced() bool {
	current, err := t.file.Stat()
	if err != nil {
		return true
	}
	onDisk, err := os.Stat(t.opts.FilePath)
	if err != nil {
		return true
	}
	return !os.SameFile(current, onDisk)
}

// readNewContent reads and outputs content added since the last read.
func (t *Tailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < t.offset {
		t.logger.Info("file truncated, reading from start", "file", t.opts.FilePath)
		t.offset = 0
	}

	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	br := bufio.NewReader(t.file)
	for {
		line, err := input.ReadLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		t.lines++
		text, ok := t.reader.Normalize(line)
		if !ok || !t.matches(text) {
			continue
		}

		if err := t.opts.OutputFunc(input.Message{Raw: text, Line: t.lines}); err != nil {
			return err
		}
	}

	t.offset, err = t.file.Seek(0, io.SeekCurrent)
	return err
}

// matches checks a message against the pattern filter.
func (t *Tailer) matches(text string) bool {
	return t.opts.Pattern == nil || t.opts.Pattern.MatchString(text)
}

// handleRotation reopens the file once it reappears at its path.
func (t *Tailer) handleRotation(ctx context.Context) error {
	if !t.opts.FollowRotate {
		return ErrFileRotated
	}

	// Drain whatever was written before the rotation.
	if err := t.readNewContent(); err != nil {
		t.logger.Debug("reading rotated file failed", "error", err)
	}

	if t.file != nil {
		t.file.Close()
		t.file = nil
	}

	timeout := time.After(t.opts.RotationTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			return fmt.Errorf("timeout waiting for rotated file to reappear")
		case <-ticker.C:
			f, err := os.Open(t.opts.FilePath)
			if err != nil {
				continue
			}
			t.file = f
			t.offset = 0

			if err := t.watcher.Add(t.opts.FilePath); err != nil {
				return fmt.Errorf("failed to watch rotated file: %w", err)
			}

			t.logger.Info("file rotated, following new file", "file", t.opts.FilePath)
			return t.readNewContent()
		}
	}
}

// close closes all resources.
func (t *Tailer) close() {
	if t.file != nil {
		t.file.Close()
	}
	if t.watcher != nil {
		t.watcher.Close()
	}
}
