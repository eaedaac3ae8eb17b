// Package output renders template reports in text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/bimmerbailey/stencil/internal/cluster"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// separator frames the text report.
var separator = strings.Repeat("-", 60)

// maxTableWidth truncates long cells in table output.
const maxTableWidth = 80

// Report is the result of a templates run.
type Report struct {
	Lines     int              // input lines read, blank ones included
	Unique    int              // distinct templates; at least len(Templates)
	Templates []cluster.Record // records to print
}

func (r Report) unique() int {
	if r.Unique < len(r.Templates) {
		return len(r.Templates)
	}
	return r.Unique
}

// jsonReport is the JSON shape of a Report.
type jsonReport struct {
	Messages        int              `json:"messages"`
	UniqueTemplates int              `json:"unique_templates"`
	Templates       []cluster.Record `json:"templates"`
}

// Writer handles writing formatted output.
type Writer struct {
	w        io.Writer
	format   Format
	colorize bool
	styles   styles
}

// New creates a new output Writer. Colour applies to text output only.
func New(w io.Writer, format Format, mode ColorMode) *Writer {
	colorize := format == FormatText && shouldColorize(mode, w)
	return &Writer{
		w:        w,
		format:   format,
		colorize: colorize,
		styles:   newStyles(w, colorize),
	}
}

// WriteReport outputs a full report in the configured format.
func (wr *Writer) WriteReport(r Report) error {
	switch wr.format {
	case FormatJSON:
		return wr.writeJSON(r)
	case FormatTable:
		return wr.writeTable(r)
	default:
		return wr.writeText(r)
	}
}

// WriteTemplate outputs a single record, used when following a file.
func (wr *Writer) WriteTemplate(rec cluster.Record) error {
	switch wr.format {
	case FormatJSON:
		enc := json.NewEncoder(wr.w)
		return enc.Encode(rec)
	case FormatTable:
		_, err := fmt.Fprintf(wr.w, "%d\t%s\t%s\n", rec.Count, rec.Template, firstExample(rec))
		return err
	default:
		return wr.writeRecord(rec)
	}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (wr *Writer) writeJSON(r Report) error {
	templates := r.Templates
	if templates == nil {
		templates = []cluster.Record{}
	}
	return wr.WriteJSON(jsonReport{
		Messages:        r.Lines,
		UniqueTemplates: r.unique(),
		Templates:       templates,
	})
}

func (wr *Writer) writeText(r Report) error {
	if _, err := fmt.Fprintf(wr.w, "Processing %d messages...\n\n", r.Lines); err != nil {
		return err
	}

	rule := wr.paint(wr.styles.rule, separator)
	fmt.Fprintln(wr.w, rule)
	fmt.Fprintln(wr.w, wr.paint(wr.styles.heading, fmt.Sprintf("Found %d unique templates:", r.unique())))
	fmt.Fprintln(wr.w, rule)

	for _, rec := range r.Templates {
		if err := wr.writeRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeRecord(rec cluster.Record) error {
	fmt.Fprintf(wr.w, "%s %s\n", wr.paint(wr.styles.label, "Template:"), wr.highlight(rec.Template))
	fmt.Fprintf(wr.w, "%s    %d\n", wr.paint(wr.styles.label, "Count:"), rec.Count)
	fmt.Fprintln(wr.w, wr.paint(wr.styles.label, "Examples:"))
	for _, ex := range rec.Examples {
		fmt.Fprintf(wr.w, "  - %s\n", ex)
	}
	_, err := fmt.Fprintln(wr.w, wr.paint(wr.styles.rule, separator))
	return err
}

func (wr *Writer) writeTable(r Report) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNT\tTEMPLATE\tEXAMPLE")
	fmt.Fprintln(tw, "-----\t--------\t-------")

	for _, rec := range r.Templates {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", rec.Count, truncate(rec.Template), truncate(firstExample(rec)))
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(wr.w, "\n%d messages, %d unique templates\n", r.Lines, r.unique())
	return err
}

func firstExample(rec cluster.Record) string {
	if len(rec.Examples) == 0 {
		return ""
	}
	return rec.Examples[0]
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= maxTableWidth {
		return s
	}
	cut := maxTableWidth - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
