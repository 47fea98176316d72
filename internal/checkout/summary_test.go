package checkout

import "testing"

func TestParseSummaryStorefrontText(t *testing.T) {
	text := "Order summary\nBourbon 750ml\nQuantity: 1\nSubtotal\n$36.50\nShipping\nFree\nEstimated taxes\n$3.61\nTotal\nUSD\n$40.11"

	summary, missing := ParseSummary(text, "South San Francisco")
	want := map[string]string{
		FieldSubtotal: "$36.50",
		FieldTax:      "$3.61",
		FieldTotal:    "$40.11",
		FieldLocation: "South San Francisco",
		FieldQuantity: "1",
	}
	for k, v := range want {
		if summary[k] != v {
			t.Fatalf("%s: expected %q, got %q", k, v, summary[k])
		}
	}
	if len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}
}

func TestParseSummaryTotalIgnoresSubtotal(t *testing.T) {
	summary, _ := ParseSummary("Subtotal: $10.00", "")
	if summary[FieldSubtotal] != "$10.00" {
		t.Fatalf("expected subtotal, got %q", summary[FieldSubtotal])
	}
	if summary[FieldTotal] != Unknown {
		t.Fatalf("expected total to stay unknown, got %q", summary[FieldTotal])
	}
}

func TestParseSummaryMissingFieldsAreUnknown(t *testing.T) {
	summary, missing := ParseSummary("", "  ")
	for _, k := range []string{FieldSubtotal, FieldTax, FieldTotal, FieldLocation, FieldQuantity} {
		if summary[k] != Unknown {
			t.Fatalf("%s: expected unknown, got %q", k, summary[k])
		}
	}
	if len(missing) != 5 {
		t.Fatalf("expected 5 missing fields, got %v", missing)
	}
}

func TestParseSummaryThousands(t *testing.T) {
	summary, _ := ParseSummary("Total $1,204.00", "")
	if summary[FieldTotal] != "$1,204.00" {
		t.Fatalf("unexpected total %q", summary[FieldTotal])
	}
}
