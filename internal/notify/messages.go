package notify

import (
	"fmt"
	"sort"
	"strings"
)

// Order summary keys shown to the approver, in display order.
var summaryOrder = []string{"subtotal", "tax", "total", "pickup_location", "quantity"}

// ApprovalRequest builds the decision prompt for a pending purchase.
func ApprovalRequest(runID, product string, summary map[string]string, approveURL, rejectURL string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Approve purchase of %s?\n", product)
	b.WriteString(FormatSummary(summary))
	fmt.Fprintf(&b, "\nRun: %s", runID)
	return Message{
		Title:    "Purchase approval needed",
		Body:     b.String(),
		Priority: PriorityHigh,
		Actions: []Action{
			{Label: "Approve", URL: approveURL},
			{Label: "Reject", URL: rejectURL},
		},
	}
}

// Started announces a new attempt.
func Started(runID, product, mode string) Message {
	return Message{
		Title:    "Purchase attempt started",
		Body:     fmt.Sprintf("Run %s started for %s (mode=%s)", runID, product, mode),
		Priority: PriorityNormal,
	}
}

// Succeeded reports a completed order or a completed dry run.
func Succeeded(runID, product, detail string) Message {
	body := fmt.Sprintf("Run %s completed for %s", runID, product)
	if detail != "" {
		body += "\n" + detail
	}
	return Message{Title: "Purchase successful", Body: body, Priority: PriorityHigh}
}

// Failed reports an attempt that ended without an order.
func Failed(runID, reason, detail string) Message {
	body := fmt.Sprintf("Run %s failed: %s", runID, reason)
	if detail != "" {
		body += "\n\nDetails: " + detail
	}
	return Message{Title: "Purchase failed", Body: body, Priority: PriorityEmergency}
}

// NeedsHuman reports a challenge the automation cannot complete.
func NeedsHuman(runID, reason, detail string) Message {
	body := fmt.Sprintf("Run %s requires human assistance: %s", runID, reason)
	if detail != "" {
		body += "\n\n" + detail
	}
	return Message{Title: "Human assistance needed", Body: body, Priority: PriorityEmergency}
}

// Ambiguous reports a submission whose result could not be confirmed.
func Ambiguous(runID, product, landingURL string) Message {
	if landingURL == "" {
		landingURL = "unknown"
	}
	return Message{
		Title: "Purchase outcome unclear",
		Body: fmt.Sprintf("Run %s submitted payment for %s but no confirmation page was detected.\nLanded on: %s\nCheck the order history before retrying.",
			runID, product, landingURL),
		Priority: PriorityEmergency,
	}
}

// SoldOut reports that the product was unavailable.
func SoldOut(runID, product string) Message {
	return Message{
		Title:    "Product sold out",
		Body:     fmt.Sprintf("Run %s: %s is sold out. Waiting for the next availability alert.", runID, product),
		Priority: PriorityEmergency,
	}
}

// FormatSummary renders an order summary as "key: value" lines.
func FormatSummary(summary map[string]string) string {
	var b strings.Builder
	seen := make(map[string]bool, len(summary))
	for _, key := range summaryOrder {
		if v, ok := summary[key]; ok {
			fmt.Fprintf(&b, "%s: %s\n", labelFor(key), v)
			seen[key] = true
		}
	}
	extra := make([]string, 0)
	for key := range summary {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		fmt.Fprintf(&b, "%s: %s\n", labelFor(key), summary[key])
	}
	return b.String()
}

func labelFor(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
