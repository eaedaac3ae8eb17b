package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/bimmerbailey/stencil/internal/cluster"
	"github.com/bimmerbailey/stencil/internal/config"
	"github.com/bimmerbailey/stencil/internal/input"
	"github.com/bimmerbailey/stencil/internal/masker"
	"github.com/bimmerbailey/stencil/internal/output"
	"github.com/bimmerbailey/stencil/internal/recognizer"
	"github.com/bimmerbailey/stencil/internal/redact"
	"github.com/bimmerbailey/stencil/internal/tail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [flags] [file...]",
	Short: "Mask messages and group them into templates",
	Long: `Read messages line by line, mask variable data in each one, and group
the masked messages into templates. Every template is printed with its count
and up to three example messages.

With no file argument the configured input (or data/input.txt) is read.

Examples:
  stencil templates data/input.txt
  stencil templates --format table "logs/*.txt"
  stencil templates --max-examples 5 --redact sms.txt
  stencil templates --follow --follow-rotate /var/log/sms.log`,
	RunE: runTemplates,
}

func init() {
	templatesCmd.Flags().Int("max-examples", cluster.DefaultMaxExamples, "examples kept per template")
	templatesCmd.Flags().StringP("match", "m", "", "only process messages matching regex pattern")
	templatesCmd.Flags().Int("top", 0, "print only the N most frequent templates")
	templatesCmd.Flags().Bool("json-input", false, "read the msg/message/text field of JSON lines")
	templatesCmd.Flags().Bool("redact", false, "scrub emails, card numbers, and other secrets from examples")
	templatesCmd.Flags().String("gazetteer", "", "YAML file of known entities for the rules recognizer")
	templatesCmd.Flags().Bool("follow", false, "keep watching the file and print new templates as they appear")
	templatesCmd.Flags().Bool("follow-rotate", false, "follow through log rotations (implies --follow)")

	_ = viper.BindPFlag("max_examples", templatesCmd.Flags().Lookup("max-examples"))
	_ = viper.BindPFlag("json_input", templatesCmd.Flags().Lookup("json-input"))
	_ = viper.BindPFlag("redaction.enabled", templatesCmd.Flags().Lookup("redact"))
	_ = viper.BindPFlag("recognizer.gazetteer", templatesCmd.Flags().Lookup("gazetteer"))

	rootCmd.AddCommand(templatesCmd)
}

// pipeline holds everything needed to turn a raw message into a record.
type pipeline struct {
	masker    *masker.Masker
	aggregate *cluster.Aggregate
	redactor  *redact.Redactor
	pattern   *regexp.Regexp
	top       int
}

// process masks one message and records it. It reports the record key and
// whether the template was new; skipped messages return an empty key.
func (p *pipeline) process(ctx context.Context, msg input.Message) (string, bool) {
	if p.pattern != nil && !p.pattern.MatchString(msg.Raw) {
		return "", false
	}

	template := p.masker.MaskContext(ctx, msg.Raw)
	example := msg.Raw
	if p.redactor != nil {
		example = p.redactor.Redact(example)
	}
	return p.aggregate.Observe(template, example)
}

// report builds the output report after lines input lines.
func (p *pipeline) report(lines int) output.Report {
	templates := p.aggregate.Records()
	if p.top > 0 {
		templates = p.aggregate.Top(p.top)
	}
	return output.Report{
		Lines:     lines,
		Unique:    p.aggregate.Len(),
		Templates: templates,
	}
}

func runTemplates(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	matchStr, _ := cmd.Flags().GetString("match")
	top, _ := cmd.Flags().GetInt("top")
	follow, _ := cmd.Flags().GetBool("follow")
	followRotate, _ := cmd.Flags().GetBool("follow-rotate")
	follow = follow || followRotate

	var pattern *regexp.Regexp
	if matchStr != "" {
		pattern, err = regexp.Compile(matchStr)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}

	m, ok, err := buildMasker(ctx, cmd, cfg, logger)
	if err != nil || !ok {
		return err
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = []string{cfg.Input}
		if cfg.Input == "" {
			patterns = []string{config.DefaultInput}
		}
	}

	files, missing, err := resolveInputs(patterns)
	if err != nil {
		return err
	}
	if missing != "" {
		fmt.Fprintf(out, "File %s not found.\n", missing)
		return nil
	}

	p := &pipeline{
		masker:    m,
		aggregate: cluster.New(cluster.WithMaxExamples(cfg.MaxExamples)),
		pattern:   pattern,
		top:       top,
	}
	if cfg.Redaction.Enabled {
		p.redactor, err = redact.New(cfg.Redaction.Patterns)
		if err != nil {
			return err
		}
	}

	var readerOpts []input.Option
	if cfg.JSONInput {
		readerOpts = append(readerOpts, input.WithJSONMessages())
	}
	reader := input.New(readerOpts...)

	writer := output.New(out, output.ParseFormat(cfg.Format), output.ParseColorMode(cfg.Color))

	if follow {
		if len(files) != 1 {
			return fmt.Errorf("--follow takes exactly one file, got %d", len(files))
		}
		return followTemplates(ctx, cmd, p, reader, writer, logger, files[0], followRotate)
	}

	lines := 0
	for _, file := range files {
		logger.Info("reading input", "file", file)
		stats, err := reader.ReadFile(file, func(msg input.Message) error {
			p.process(ctx, msg)
			return nil
		})
		if err != nil {
			if errors.Is(err, input.ErrInputNotFound) {
				fmt.Fprintf(out, "File %s not found.\n", file)
				return nil
			}
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		lines += stats.Lines
		logger.Info("finished input", "file", file, "lines", stats.Lines, "messages", stats.Messages)
	}

	return writer.WriteReport(p.report(lines))
}

// followTemplates reports the file's current templates, then prints each new
// template as appended lines introduce it.
func followTemplates(ctx context.Context, cmd *cobra.Command, p *pipeline, reader *input.Reader, writer *output.Writer, logger *slog.Logger, file string, followRotate bool) error {
	caughtUp := false

	tailer := tail.New(tail.Options{
		FilePath:     file,
		FromStart:    true,
		Follow:       true,
		FollowRotate: followRotate,
		Reader:       reader,
		Logger:       logger,
		OnCaughtUp: func(lines int) error {
			caughtUp = true
			return writer.WriteReport(p.report(lines))
		},
		OutputFunc: func(msg input.Message) error {
			key, isNew := p.process(ctx, msg)
			if !caughtUp || !isNew {
				return nil
			}
			rec, _ := p.aggregate.Lookup(key)
			return writer.WriteTemplate(rec)
		},
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- tailer.Run(ctx)
	}()

	select {
	case <-sigChan:
		cancel()
		<-errChan
		return nil
	case err := <-errChan:
		if errors.Is(err, tail.ErrFileRotated) {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nFile rotated. Exiting. Use --follow-rotate to follow through rotations.")
			return nil
		}
		return err
	}
}

// buildMasker creates the configured recognizer and wraps it in a Masker.
// When the recognizer's model is unavailable a diagnostic is printed and ok
// is false with a nil error, so the command ends without processing.
func buildMasker(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*masker.Masker, bool, error) {
	rec, err := recognizer.New(ctx, cfg.Recognizer, logger)
	if err != nil {
		if errors.Is(err, recognizer.ErrModelUnavailable) {
			fmt.Fprintf(cmd.OutOrStdout(), "Failed to load entity recognition model: %v\n", err)
			return nil, false, nil
		}
		return nil, false, err
	}

	m, err := masker.New(rec, masker.WithLogger(logger))
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// resolveInputs expands file arguments. A path or glob that matches nothing
// is returned as missing rather than as an error.
func resolveInputs(patterns []string) (files []string, missing string, err error) {
	files, err = config.ExpandGlobs(patterns)
	if err == nil {
		return files, "", nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}

	for _, pattern := range patterns {
		if _, perr := config.ExpandGlobs([]string{pattern}); errors.Is(perr, fs.ErrNotExist) {
			return nil, pattern, nil
		}
	}
	return nil, patterns[0], nil
}
