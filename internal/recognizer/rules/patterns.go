package rules

import "regexp"

// rule is a regex-based entity detector.
// Group selects the capture group that forms the entity (0 = whole match).
// Lower Priority wins when two candidates cover the same span.
type rule struct {
	Name     string
	Label    string
	Regex    *regexp.Regexp
	Group    int
	Priority int
}

var (
	// Currency symbol before, or currency word after, a number: $25, ₹ 1,200.50, 40 dollars
	moneySymbolRegex = regexp.MustCompile(`[$€£₹]\s?\d+(?:,\d+)*(?:\.\d+)?`)
	moneyWordRegex   = regexp.MustCompile(`\b\d+(?:,\d+)*(?:\.\d+)?\s?(?:dollars|rupees|euros|cents|paise|USD|EUR|INR|IDR)\b`)

	// Clock times: 10:30, 23:59:59, 9:15 pm, 7am
	clockRegex    = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp]\.?[Mm]\.?)?`)
	meridiemRegex = regexp.MustCompile(`\b\d{1,2}\s?[AaPp][Mm]\b`)

	// ISO dates the numeric DD-MM-YYYY pass does not cover: 2025-05-12
	isoDateRegex = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

	// Month names with optional day and year: 12 Jan 2025, March 3rd, Dec 2024
	monthRegex = regexp.MustCompile(`(?:\b\d{1,2}(?:st|nd|rd|th)?\s+)?\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\b\.?(?:\s+\d{1,2}(?:st|nd|rd|th)?\b)?(?:,?\s+\d{4}\b)?`)

	weekdayRegex  = regexp.MustCompile(`\b(?:Mon|Tues|Wednes|Thurs|Fri|Satur|Sun)day\b`)
	relativeRegex = regexp.MustCompile(`(?i)\b(?:today|yesterday|tomorrow)\b`)

	// Four-digit years. Tagged DATE like a statistical tagger would; the
	// masker turns digit-only dates into <NUMBER>.
	yearRegex = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

	cardinalRegex = regexp.MustCompile(`\b\d+(?:,\d{3})*(?:\.\d+)?\b`)

	// Honorific followed by a capitalised name: Mr. Sharma, Dr Jane Doe
	honorificRegex = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Shri|Smt)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)

	// Capitalised run after a transfer preposition: "paid to Big Basket", "from Acme"
	counterpartyRegex = regexp.MustCompile(`\b(?:to|from|at|with|via)\s+([A-Z][\w&'-]*(?:\s+[A-Z][\w&'-]*)*)`)
)

// builtInRules lists the regex detectors in priority order.
var builtInRules = []rule{
	{Name: "money_symbol", Label: labelMoney, Regex: moneySymbolRegex, Priority: 1},
	{Name: "money_word", Label: labelMoney, Regex: moneyWordRegex, Priority: 2},
	{Name: "clock", Label: labelTime, Regex: clockRegex, Priority: 3},
	{Name: "meridiem", Label: labelTime, Regex: meridiemRegex, Priority: 4},
	{Name: "iso_date", Label: labelDate, Regex: isoDateRegex, Priority: 5},
	{Name: "month", Label: labelDate, Regex: monthRegex, Priority: 6},
	{Name: "weekday", Label: labelDate, Regex: weekdayRegex, Priority: 7},
	{Name: "relative_day", Label: labelDate, Regex: relativeRegex, Priority: 8},
	{Name: "year", Label: labelDate, Regex: yearRegex, Priority: 9},
	{Name: "honorific", Label: labelPerson, Regex: honorificRegex, Group: 1, Priority: 10},
	{Name: "counterparty", Label: labelOrg, Regex: counterpartyRegex, Group: 1, Priority: 11},
	{Name: "cardinal", Label: labelCardinal, Regex: cardinalRegex, Priority: 12},
}
