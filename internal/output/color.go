package output

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// ParseColorMode converts a string to a ColorMode, defaulting to auto.
func ParseColorMode(s string) ColorMode {
	switch strings.ToLower(s) {
	case "always", "on", "true":
		return ColorAlways
	case "never", "off", "false":
		return ColorNever
	default:
		return ColorAuto
	}
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w any) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// placeholderPattern matches placeholder tokens inside templates.
var placeholderPattern = regexp.MustCompile(`<[A-Z][A-Z0-9_]*>`)

type styles struct {
	heading     lipgloss.Style
	label       lipgloss.Style
	placeholder lipgloss.Style
	rule        lipgloss.Style
}

// newStyles builds styles bound to w. The profile is fixed up front so
// rendering does not depend on the environment once colour is decided.
func newStyles(w io.Writer, colorize bool) styles {
	r := lipgloss.NewRenderer(w)
	if colorize {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	return styles{
		heading:     r.NewStyle().Bold(true),
		label:       r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		placeholder: r.NewStyle().Foreground(lipgloss.Color("3")),
		rule:        r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// paint renders s with style when colour is on.
func (wr *Writer) paint(style lipgloss.Style, s string) string {
	if !wr.colorize {
		return s
	}
	return style.Render(s)
}

// highlight colours the placeholder tokens of a template.
func (wr *Writer) highlight(template string) string {
	if !wr.colorize {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(p string) string {
		return wr.styles.placeholder.Render(p)
	})
}
