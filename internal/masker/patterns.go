package masker

import (
	"regexp"
	"strings"
)

// Placeholder tokens substituted for variable content.
const (
	PlaceholderDate     = "<DATE>"
	PlaceholderAmount   = "<AMOUNT>"
	PlaceholderAccount  = "<ACCOUNT>"
	PlaceholderNumber   = "<NUMBER>"
	PlaceholderTime     = "<TIME>"
	PlaceholderEntity   = "<ENTITY>"
	PlaceholderLocation = "<LOCATION>"
)

// Stage is one regex rewrite of the masking pipeline.
type Stage struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string // expanded like regexp.ReplaceAllString
	Description string
}

// Built-in stages. Order decides which pattern owns a span.
var (
	// DD-MM-YYYY, DD/MM/YY and friends. Runs first so a numeric date is
	// never read as an amount or bare number.
	dateRegex = regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{2,4}`)

	// Rs 100, INR 5,000, Rp. 100.50. Runs before entity recognition so the
	// marker and number are masked as one amount.
	amountRegex = regexp.MustCompile(`(?i)(rs\.?|inr|rp\.?)\s*(\d+(?:,\d+)*(?:\.\d{1,2})?)`)

	// XXXX1234, **5678, xx9012
	maskedAccountRegex = regexp.MustCompile(`[X*x]{2,}\d{3,}`)

	// "account no 998877", "Account No.998877"; the phrase is kept verbatim.
	accountNoRegex = regexp.MustCompile(`(?i)(account\s+no\.?\s*)(\d+)`)

	// Any placeholder token, including generic <LABEL> fallbacks.
	placeholderRegex = regexp.MustCompile(`<[A-Z][A-Z0-9_]*>`)
)

var stages = []Stage{
	{Name: "date", Regex: dateRegex, Replacement: PlaceholderDate, Description: "numeric dates"},
	{Name: "amount", Regex: amountRegex, Replacement: PlaceholderAmount, Description: "currency marker and amount"},
	{Name: "masked_account", Regex: maskedAccountRegex, Replacement: PlaceholderAccount, Description: "masked account numbers"},
	{Name: "account_no", Regex: accountNoRegex, Replacement: "${1}" + PlaceholderAccount, Description: "digits after \"account no\""},
}

// Stages returns the regex stages in application order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// ApplyPatterns runs every regex stage over text in order.
func ApplyPatterns(text string) string {
	for _, s := range stages {
		text = s.Regex.ReplaceAllString(text, s.Replacement)
	}
	return text
}

// labelPlaceholders maps recognizer categories to placeholders.
var labelPlaceholders = map[string]string{
	"MONEY":    PlaceholderAmount,
	"CARDINAL": PlaceholderNumber,
	"DATE":     PlaceholderDate,
	"TIME":     PlaceholderTime,
	"ORG":      PlaceholderEntity,
	"PERSON":   PlaceholderEntity,
	"GPE":      PlaceholderLocation,
}

// LabelPlaceholders returns a copy of the category to placeholder table.
func LabelPlaceholders() map[string]string {
	out := make(map[string]string, len(labelPlaceholders))
	for k, v := range labelPlaceholders {
		out[k] = v
	}
	return out
}

// placeholderFor returns the token replacing matched text of the given
// category. Digit-only dates become numbers: statistical taggers tend to
// label bare years and long numbers as dates.
func placeholderFor(label, matched string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "DATE" && isDigits(matched) {
		return PlaceholderNumber
	}
	if p, ok := labelPlaceholders[label]; ok {
		return p
	}
	return "<" + sanitizeLabel(label) + ">"
}

// sanitizeLabel keeps generic placeholders within the placeholder alphabet.
// Digits are dropped so no regex stage can match inside a placeholder.
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out[0] < 'A' || out[0] > 'Z' {
		out = "LABEL" + out
	}
	return out
}
