package checkout

import (
	"log/slog"
	"regexp"
	"strings"
)

// Unknown marks a summary field that could not be read from the page.
const Unknown = "unknown"

// Summary keys.
const (
	FieldSubtotal = "subtotal"
	FieldTax      = "tax"
	FieldTotal    = "total"
	FieldLocation = "pickup_location"
	FieldQuantity = "quantity"
)

const amount = `(?:USD\s*)?(\$\s*[\d,]+(?:\.\d{2})?)`

// totalPattern must not match the tail of "subtotal".
var (
	subtotalPattern = regexp.MustCompile(`(?i)\bsub-?total\s*:?\s*` + amount)
	taxPattern      = regexp.MustCompile(`(?i)\b(?:estimated\s+)?tax(?:es)?\s*:?\s*` + amount)
	totalPattern    = regexp.MustCompile(`(?i)(?:^|[^a-z-])total\s*:?\s*` + amount)
	quantityPattern = regexp.MustCompile(`(?i)\b(?:quantity|qty)\s*:?\s*(\d+)`)
)

// ParseSummary extracts order totals from the visible text of the summary panel.
// Fields that cannot be found are set to Unknown and listed in missing.
func ParseSummary(text, location string) (summary map[string]string, missing []string) {
	summary = map[string]string{
		FieldSubtotal: match(subtotalPattern, text),
		FieldTax:      match(taxPattern, text),
		FieldTotal:    match(totalPattern, text),
		FieldQuantity: match(quantityPattern, text),
		FieldLocation: Unknown,
	}
	if loc := strings.TrimSpace(location); loc != "" {
		summary[FieldLocation] = loc
	}
	for _, key := range []string{FieldSubtotal, FieldTax, FieldTotal, FieldLocation, FieldQuantity} {
		if summary[key] == Unknown {
			missing = append(missing, key)
		}
	}
	return summary, missing
}

func match(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return Unknown
	}
	return strings.ReplaceAll(m[1], " ", "")
}

func warnMissing(log *slog.Logger, missing []string) {
	for _, field := range missing {
		log.Warn("order summary field not found", "field", field)
	}
}
