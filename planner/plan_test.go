package planner

import "testing"

func TestBuildFromSecretRangesCoversWholeBuffer(t *testing.T) {
	plan, err := BuildFromSecretRanges(100, []struct{ Start, End int }{{40, 60}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := plan.Validate(); err != nil {
		t.Fatalf("plan failed validation: %v", err)
	}
	if len(plan.Spans) != 3 {
		t.Fatalf("expected 3 spans (reveal, redact, reveal), got %d", len(plan.Spans))
	}
	if plan.Spans[1].Kind != Redact || plan.Spans[1].Start != 40 || plan.Spans[1].End != 60 {
		t.Fatalf("unexpected middle span: %+v", plan.Spans[1])
	}
}

func TestBuildFromSecretRangesRejectsOverlap(t *testing.T) {
	_, err := BuildFromSecretRanges(100, []struct{ Start, End int }{{10, 50}, {40, 60}})
	if err == nil {
		t.Fatal("expected error for overlapping secret ranges")
	}
}

func TestBuildFromFieldRangesNamesRevealSpans(t *testing.T) {
	fields := []struct {
		Name       string
		Start, End int
	}{
		{"status", 10, 20},
		{"amount", 30, 35},
	}
	plan, err := BuildFromFieldRanges(40, fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reveals := plan.RevealSpans()
	if len(reveals) != 2 {
		t.Fatalf("expected 2 reveal spans, got %d", len(reveals))
	}
	if reveals[0].Field != "status" || reveals[1].Field != "amount" {
		t.Fatalf("reveal spans lost field names: %+v", reveals)
	}
	redacts := plan.RedactSpans()
	if len(redacts) != 3 {
		t.Fatalf("expected 3 redact spans filling the gaps, got %d", len(redacts))
	}
}

func TestPlanValidateRejectsGap(t *testing.T) {
	p := Plan{Total: 10, Spans: []Span{{Start: 0, End: 4, Kind: Reveal}, {Start: 5, End: 10, Kind: Redact}}}
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error for a gap between spans")
	}
}

func TestPlanValidateRejectsShortCoverage(t *testing.T) {
	p := Plan{Total: 10, Spans: []Span{{Start: 0, End: 8, Kind: Reveal}}}
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error when spans do not reach Total")
	}
}
