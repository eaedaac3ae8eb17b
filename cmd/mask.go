package cmd

import (
	"fmt"
	"strings"

	"github.com/bimmerbailey/stencil/internal/cluster"
	"github.com/bimmerbailey/stencil/internal/input"
	"github.com/bimmerbailey/stencil/internal/output"
	"github.com/spf13/cobra"
)

var maskCmd = &cobra.Command{
	Use:   "mask [text...]",
	Short: "Print the masked template of each message",
	Long: `Mask a single message given as arguments, or every line read from
standard input, and print the resulting templates one per line.

Examples:
  stencil mask "You have paid Rs 100 to Swiggy on 12-05-2025."
  cat messages.txt | stencil mask
  cat messages.txt | stencil mask --format json`,
	RunE: runMask,
}

func init() {
	rootCmd.AddCommand(maskCmd)
}

// maskResult is the JSON shape of one masked message.
type maskResult struct {
	Text     string `json:"text"`
	Template string `json:"template"`
	Key      string `json:"key"`
}

func runMask(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	m, ok, err := buildMasker(ctx, cmd, cfg, logger)
	if err != nil || !ok {
		return err
	}

	format := output.ParseFormat(cfg.Format)
	writer := output.New(out, format, output.ColorNever)

	emit := func(msg input.Message) error {
		template := m.MaskContext(ctx, msg.Raw)
		if format == output.FormatJSON {
			return writer.WriteJSON(maskResult{
				Text:     msg.Raw,
				Template: template,
				Key:      cluster.Key(template),
			})
		}
		_, err := fmt.Fprintln(out, template)
		return err
	}

	if len(args) > 0 {
		return emit(input.Message{Raw: strings.Join(args, " "), Line: 1})
	}

	var readerOpts []input.Option
	if cfg.JSONInput {
		readerOpts = append(readerOpts, input.WithJSONMessages())
	}

	stats, err := input.New(readerOpts...).Read(cmd.InOrStdin(), emit)
	if err != nil {
		return err
	}
	logger.Info("masked input", "lines", stats.Lines, "messages", stats.Messages)
	return nil
}
