// Package planner builds the ordered, non-overlapping, full-coverage span
// lists (SentPlan, RecvPlan) that mark which bytes of a transcript half are
// revealed in a Presentation and which stay redacted, grounded on
// providers.CreateRequest's RedactedOrHashedArraySlice bookkeeping.
package planner

import (
	"sort"
	"strconv"

	"github.com/zkp2p/tlsn-attest/shared"
)

// Kind distinguishes a reveal span from a redact span.
type Kind int

const (
	Reveal Kind = iota
	Redact
)

func (k Kind) String() string {
	if k == Reveal {
		return "reveal"
	}
	return "redact"
}

// Span is a half-open [Start,End) byte range tagged reveal or redact. A
// Span tagged reveal additionally carries the semantic field name it
// corresponds to, when known (empty for request-side spans).
type Span struct {
	Start, End int
	Kind       Kind
	Field      string
}

func (s Span) Len() int { return s.End - s.Start }

// Plan is an ordered, non-overlapping, full-coverage list of spans over
// exactly [0, Total).
type Plan struct {
	Total int
	Spans []Span
}

// BuildFromSecretRanges builds a SentPlan-shaped Plan from the set of
// byte ranges a request builder marked secret: every secret range becomes
// a redact span, and every gap between them becomes a reveal span. This
// generalizes providers.CreateRequest's single hard-coded secret-header
// block into an arbitrary ordered list of redact spans.
func BuildFromSecretRanges(total int, secretRanges []struct{ Start, End int }) (Plan, error) {
	type r struct{ start, end int }
	ranges := make([]r, len(secretRanges))
	for i, sr := range secretRanges {
		ranges[i] = r{sr.Start, sr.End}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	spans := make([]Span, 0, len(ranges)*2+1)
	cursor := 0
	for _, rr := range ranges {
		if rr.start < cursor {
			return Plan{}, shared.NewRedactionViolationError("overlapping secret ranges in request builder output")
		}
		if rr.start > cursor {
			spans = append(spans, Span{Start: cursor, End: rr.start, Kind: Reveal})
		}
		spans = append(spans, Span{Start: rr.start, End: rr.end, Kind: Redact})
		cursor = rr.end
	}
	if cursor < total {
		spans = append(spans, Span{Start: cursor, End: total, Kind: Reveal})
	}
	plan := Plan{Total: total, Spans: spans}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// BuildFromFieldRanges builds a RecvPlan-shaped Plan from a set of
// resolved field byte ranges: each field range becomes a named reveal
// span, and each gap before, between, or after them becomes a redact
// span, per §4.6's
// "locate each named field and emit a RecvPlan" contract.
func BuildFromFieldRanges(total int, fields []struct {
	Name       string
	Start, End int
}) (Plan, error) {
	type named struct {
		name       string
		start, end int
	}
	sorted := make([]named, len(fields))
	for i, f := range fields {
		sorted[i] = named{f.Name, f.Start, f.End}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	spans := make([]Span, 0, len(sorted)*2+1)
	cursor := 0
	for _, f := range sorted {
		if f.start < cursor {
			return Plan{}, shared.NewRedactionViolationError("overlapping field ranges in response")
		}
		if f.start > cursor {
			spans = append(spans, Span{Start: cursor, End: f.start, Kind: Redact})
		}
		spans = append(spans, Span{Start: f.start, End: f.end, Kind: Reveal, Field: f.name})
		cursor = f.end
	}
	if cursor < total {
		spans = append(spans, Span{Start: cursor, End: total, Kind: Redact})
	}
	plan := Plan{Total: total, Spans: spans}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Validate checks the non-overlap and full-coverage invariants required
// of every SentPlan/RecvPlan.
func (p Plan) Validate() error {
	cursor := 0
	for i, s := range p.Spans {
		if s.Start != cursor {
			return shared.NewRedactionViolationError("plan has a gap or overlap at span index " + strconv.Itoa(i))
		}
		if s.End < s.Start {
			return shared.NewRedactionViolationError("plan span has negative length at index " + strconv.Itoa(i))
		}
		cursor = s.End
	}
	if cursor != p.Total {
		return shared.NewRedactionViolationError("plan does not cover the full transcript half")
	}
	return nil
}

// RevealSpans returns only the spans tagged Reveal.
func (p Plan) RevealSpans() []Span {
	out := make([]Span, 0, len(p.Spans))
	for _, s := range p.Spans {
		if s.Kind == Reveal {
			out = append(out, s)
		}
	}
	return out
}

// RedactSpans returns only the spans tagged Redact.
func (p Plan) RedactSpans() []Span {
	out := make([]Span, 0, len(p.Spans))
	for _, s := range p.Spans {
		if s.Kind == Redact {
			out = append(out, s)
		}
	}
	return out
}

