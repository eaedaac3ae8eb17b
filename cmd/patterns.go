package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/bimmerbailey/stencil/internal/masker"
	"github.com/bimmerbailey/stencil/internal/output"
	"github.com/bimmerbailey/stencil/internal/redact"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the masking stages, label placeholders, and redaction patterns",
	RunE:  runPatterns,
}

func init() {
	rootCmd.AddCommand(patternsCmd)
}

type stageInfo struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

type labelInfo struct {
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
}

type redactionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

type patternsReport struct {
	Stages    []stageInfo     `json:"stages"`
	Labels    []labelInfo     `json:"labels"`
	Redaction []redactionInfo `json:"redaction"`
}

func runPatterns(cmd *cobra.Command, args []string) error {
	report := buildPatternsReport()
	out := cmd.OutOrStdout()

	if output.ParseFormat(viper.GetString("format")) == output.FormatJSON {
		return output.New(out, output.FormatJSON, output.ColorNever).WriteJSON(report)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "STAGE\tREPLACEMENT\tPATTERN")
	for i, s := range report.Stages {
		fmt.Fprintf(tw, "%d. %s\t%s\t%s\n", i+1, s.Name, s.Replacement, s.Pattern)
	}
	fmt.Fprintf(tw, "%d. entities\t<LABEL>\trecognizer spans\n", len(report.Stages)+1)

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "LABEL\tPLACEHOLDER\t")
	for _, l := range report.Labels {
		fmt.Fprintf(tw, "%s\t%s\t\n", l.Label, l.Placeholder)
	}
	fmt.Fprintln(tw, "(digit-only DATE)\t<NUMBER>\t")
	fmt.Fprintln(tw, "(other)\t<LABEL>\t")

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "REDACTION\tDEFAULT\tDESCRIPTION")
	for _, r := range report.Redaction {
		def := ""
		if r.Default {
			def = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, def, r.Description)
	}

	return tw.Flush()
}

func buildPatternsReport() patternsReport {
	var report patternsReport

	for _, s := range masker.Stages() {
		report.Stages = append(report.Stages, stageInfo{
			Name:        s.Name,
			Pattern:     s.Regex.String(),
			Replacement: s.Replacement,
			Description: s.Description,
		})
	}

	placeholders := masker.LabelPlaceholders()
	labels := make([]string, 0, len(placeholders))
	for label := range placeholders {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		report.Labels = append(report.Labels, labelInfo{Label: label, Placeholder: placeholders[label]})
	}

	defaults := make(map[string]bool)
	for _, name := range redact.DefaultPatterns() {
		defaults[name] = true
	}
	for _, name := range redact.Names() {
		report.Redaction = append(report.Redaction, redactionInfo{
			Name:        name,
			Description: redact.BuiltInPatterns[name].Description,
			Default:     defaults[name],
		})
	}

	return report
}
