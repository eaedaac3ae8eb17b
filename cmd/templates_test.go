package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sampleMessages = []string{
	"You have paid Rs 100 to Swiggy and your balance is Rs 1000 on 12-05-2025.",
	"You have paid Rs 200 to Amazon and your balance is Rs 500 on 01-01-2024.",
}

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults()
	t.Cleanup(viper.Reset)
}

func newTemplatesTestCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{Use: "templates"}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.Flags().StringP("match", "m", "", "only process messages matching regex pattern")
	cmd.Flags().Int("top", 0, "print only the N most frequent templates")
	cmd.Flags().Bool("follow", false, "keep watching the file")
	cmd.Flags().Bool("follow-rotate", false, "follow through log rotations")
	return cmd
}

func writeTempFile(t *testing.T, dir string, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(joinLines(lines)), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func TestTemplatesEndToEnd(t *testing.T) {
	resetConfig(t)

	file := writeTempFile(t, t.TempDir(), "input.txt", sampleMessages)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	sep := strings.Repeat("-", 60)
	expected := joinLines([]string{
		"Processing 2 messages...",
		"",
		sep,
		"Found 1 unique templates:",
		sep,
		"Template: You have paid <AMOUNT> to <ENTITY> and your balance is <AMOUNT> on <DATE>.",
		"Count:    2",
		"Examples:",
		"  - " + sampleMessages[0],
		"  - " + sampleMessages[1],
		sep,
	}) + "\n"

	if out.String() != expected {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out.String(), expected)
	}
}

func TestTemplatesCountsBlankLines(t *testing.T) {
	resetConfig(t)

	file := writeTempFile(t, t.TempDir(), "input.txt", []string{"service started", "", "  ", "service started"})

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if !strings.HasPrefix(out.String(), "Processing 4 messages...\n") {
		t.Errorf("unexpected header: %q", out.String())
	}
	if !strings.Contains(out.String(), "Count:    2\n") {
		t.Errorf("expected one template with count 2:\n%s", out.String())
	}
}

func TestTemplatesInsertionOrder(t *testing.T) {
	resetConfig(t)

	file := writeTempFile(t, t.TempDir(), "input.txt", []string{
		"login failed",
		"paid Rs 5",
		"login failed",
		"system ready",
	})

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	output := out.String()
	first := strings.Index(output, "Template: login failed")
	second := strings.Index(output, "Template: paid <AMOUNT>")
	third := strings.Index(output, "Template: system ready")
	if first < 0 || second < 0 || third < 0 || !(first < second && second < third) {
		t.Errorf("templates not in first-seen order:\n%s", output)
	}
}

func TestTemplatesMissingFile(t *testing.T) {
	resetConfig(t)

	missing := filepath.Join(t.TempDir(), "nope.txt")

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{missing}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if out.String() != "File "+missing+" not found.\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestTemplatesMissingGlob(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	existing := writeTempFile(t, dir, "a.txt", []string{"x"})
	pattern := filepath.Join(dir, "*.log")

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{existing, pattern}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if out.String() != "File "+pattern+" not found.\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestTemplatesDefaultInput(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	t.Chdir(dir)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), nil); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}
	if out.String() != "File data/input.txt not found.\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}

	writeTempFile(t, dir, filepath.Join("data", "input.txt"), sampleMessages)
	out.Reset()
	if err := runTemplates(newTemplatesTestCmd(&out), nil); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "Processing 2 messages...") {
		t.Errorf("default input not read: %q", out.String())
	}
}

func TestTemplatesConfiguredInput(t *testing.T) {
	resetConfig(t)

	file := writeTempFile(t, t.TempDir(), "configured.txt", sampleMessages[:1])
	viper.Set("input", file)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), nil); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "Processing 1 messages...") {
		t.Errorf("configured input not read: %q", out.String())
	}
}

func TestTemplatesMultipleFiles(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	writeTempFile(t, dir, "a.txt", sampleMessages[:1])
	writeTempFile(t, dir, "b.txt", sampleMessages[1:])

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{filepath.Join(dir, "*.txt")}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if !strings.HasPrefix(out.String(), "Processing 2 messages...") {
		t.Errorf("unexpected header: %q", out.String())
	}
	if !strings.Contains(out.String(), "Found 1 unique templates:") {
		t.Errorf("files should share one template:\n%s", out.String())
	}
}

func TestTemplatesMissingModel(t *testing.T) {
	resetConfig(t)
	viper.Set("recognizer.gazetteer", filepath.Join(t.TempDir(), "missing.yaml"))

	file := writeTempFile(t, t.TempDir(), "input.txt", sampleMessages)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if !strings.HasPrefix(out.String(), "Failed to load entity recognition model:") {
		t.Errorf("expected model diagnostic, got %q", out.String())
	}
	if !strings.Contains(out.String(), "missing.yaml") {
		t.Errorf("diagnostic should name the missing resource: %q", out.String())
	}
	if strings.Contains(out.String(), "Processing") {
		t.Errorf("no messages should be processed: %q", out.String())
	}
}

func TestTemplatesUnknownProvider(t *testing.T) {
	resetConfig(t)
	viper.Set("recognizer.provider", "spacy")

	file := writeTempFile(t, t.TempDir(), "input.txt", sampleMessages)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestTemplatesJSON(t *testing.T) {
	resetConfig(t)
	viper.Set("format", "json")

	file := writeTempFile(t, t.TempDir(), "input.txt", sampleMessages)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	var got struct {
		Messages        int `json:"messages"`
		UniqueTemplates int `json:"unique_templates"`
		Templates       []struct {
			Key      string   `json:"key"`
			Template string   `json:"template"`
			Count    int      `json:"count"`
			Examples []string `json:"examples"`
		} `json:"templates"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}

	if got.Messages != 2 || got.UniqueTemplates != 1 {
		t.Fatalf("messages = %d, unique = %d", got.Messages, got.UniqueTemplates)
	}
	rec := got.Templates[0]
	if rec.Count != 2 || len(rec.Examples) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if strings.Count(rec.Template, "<AMOUNT>") != 2 || !strings.Contains(rec.Template, "<ENTITY>") || !strings.Contains(rec.Template, "<DATE>") {
		t.Errorf("template = %q", rec.Template)
	}
}

func TestTemplatesMaxExamples(t *testing.T) {
	resetConfig(t)
	viper.Set("max_examples", 1)

	file := writeTempFile(t, t.TempDir(), "input.txt", []string{"paid Rs 1", "paid Rs 2", "paid Rs 3"})

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if !strings.Contains(out.String(), "Count:    3\n") {
		t.Errorf("expected count 3:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "  - paid Rs 1\n") || strings.Contains(out.String(), "paid Rs 2") {
		t.Errorf("expected only the first example:\n%s", out.String())
	}
}

func TestTemplatesNegativeMaxExamples(t *testing.T) {
	resetConfig(t)
	viper.Set("max_examples", -1)

	file := writeTempFile(t, t.TempDir(), "input.txt", sampleMessages)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err == nil {
		t.Fatal("expected error for negative max_examples")
	}
}

func TestTemplatesRedactExamples(t *testing.T) {
	resetConfig(t)
	viper.Set("redaction.enabled", true)

	file := writeTempFile(t, t.TempDir(), "input.txt", []string{"OTP sent to ops@example.com for Rs 100"})

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if !strings.Contains(out.String(), "  - OTP sent to [EMAIL:") {
		t.Errorf("example not redacted:\n%s", out.String())
	}
}

func TestTemplatesUnknownRedactionPattern(t *testing.T) {
	resetConfig(t)
	viper.Set("redaction.enabled", true)
	viper.Set("redaction.patterns", []string{"ssn"})

	file := writeTempFile(t, t.TempDir(), "input.txt", sampleMessages)

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err == nil {
		t.Fatal("expected error for unknown redaction pattern")
	}
}

func TestTemplatesMatch(t *testing.T) {
	resetConfig(t)

	file := writeTempFile(t, t.TempDir(), "input.txt", append([]string{"login failed"}, sampleMessages...))

	var out bytes.Buffer
	cmd := newTemplatesTestCmd(&out)
	if err := cmd.Flags().Set("match", "paid"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := runTemplates(cmd, []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if strings.Contains(out.String(), "login failed") {
		t.Errorf("non-matching message was processed:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Count:    2\n") {
		t.Errorf("matching messages missing:\n%s", out.String())
	}
}

func TestTemplatesInvalidMatch(t *testing.T) {
	resetConfig(t)

	file := writeTempFile(t, t.TempDir(), "input.txt", sampleMessages)

	var out bytes.Buffer
	cmd := newTemplatesTestCmd(&out)
	if err := cmd.Flags().Set("match", "("); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := runTemplates(cmd, []string{file}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestTemplatesJSONInput(t *testing.T) {
	resetConfig(t)
	viper.Set("json_input", true)

	file := writeTempFile(t, t.TempDir(), "input.jsonl", []string{
		`{"level":"info","msg":"paid Rs 100 to Swiggy"}`,
		`{"level":"info","msg":"paid Rs 250 to Zomato"}`,
	})

	var out bytes.Buffer
	if err := runTemplates(newTemplatesTestCmd(&out), []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	if !strings.Contains(out.String(), "Template: paid <AMOUNT> to <ENTITY>\nCount:    2\n") {
		t.Errorf("JSON messages not extracted:\n%s", out.String())
	}
}

func TestTemplatesFollowRequiresSingleFile(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.txt", sampleMessages)
	b := writeTempFile(t, dir, "b.txt", sampleMessages)

	var out bytes.Buffer
	cmd := newTemplatesTestCmd(&out)
	if err := cmd.Flags().Set("follow", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := runTemplates(cmd, []string{a, b}); err == nil {
		t.Fatal("expected error when following more than one file")
	}
}

func TestTemplatesTop(t *testing.T) {
	resetConfig(t)

	file := writeTempFile(t, t.TempDir(), "input.txt", []string{
		"login failed",
		"paid Rs 5",
		"paid Rs 6",
		"system ready",
	})

	var out bytes.Buffer
	cmd := newTemplatesTestCmd(&out)
	if err := cmd.Flags().Set("top", "1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := runTemplates(cmd, []string{file}); err != nil {
		t.Fatalf("runTemplates() error = %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "Found 3 unique templates:") {
		t.Errorf("unique count should cover every template:\n%s", output)
	}
	if !strings.Contains(output, "Template: paid <AMOUNT>\nCount:    2\n") {
		t.Errorf("most frequent template missing:\n%s", output)
	}
	if strings.Contains(output, "login failed") || strings.Contains(output, "system ready") {
		t.Errorf("only the top template should be printed:\n%s", output)
	}
}
