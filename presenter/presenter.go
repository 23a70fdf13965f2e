// Package presenter builds a Presentation from an Attestation, its
// Secrets, and a field whitelist: it opens exactly the spans marked
// reveal in the caller's plans, subject to the provider profile's
// disclosable-field policy, and leaves every other span as an opaque
// commitment reference. Grounded in libclient/redaction_build.go and
// libclient/results_build.go's "reduce full session state down to a
// disclosure-only view" shape; the policy checks follow
// libclient/redaction.go's validateRedactionRanges bounds-checking style.
package presenter

import (
	"github.com/zkp2p/tlsn-attest/attestation"
	"github.com/zkp2p/tlsn-attest/planner"
	"github.com/zkp2p/tlsn-attest/providers"
	"github.com/zkp2p/tlsn-attest/shared"
)

// Whitelist names the recv-side field names a caller wants revealed.
// Fields not present here stay redacted even if their plan span is
// Reveal-capable; fields present here that the provider profile does not
// allow to be disclosed are a PolicyViolation.
type Whitelist map[string]bool

// Present derives a Presentation. sentPlan and recvPlan must have as many
// spans as secrets has opening keys and the attestation has commitments
// for the corresponding half (attestation.Secrets and
// attestation.Attestation are built together by the same session); a
// mismatch is reported as a RedactionViolation. maxSentBytes and
// maxRecvBytes are the session's configured
// MAX_SENT_DATA/MAX_RECV_DATA caps (SPEC_FULL.md §4.8): the revealed byte
// count on each half, not just the transcript's total size, must stay
// within them, since a transcript can legally be larger than the cap as
// long as most of it stays redacted.
func Present(att *attestation.Attestation, secrets *attestation.Secrets, profile providers.Profile, sentPlan, recvPlan planner.Plan, whitelist Whitelist, maxSentBytes, maxRecvBytes int) (*attestation.Presentation, error) {
	for field := range whitelist {
		if !profile.IsDisclosable(field) {
			return nil, shared.NewPolicyViolationError(field)
		}
	}

	revealedSent, redactedSent, err := revealSpans(sentPlan, att.SentCommitments, secrets.SentOpeningKeys, secrets.SentPlaintext, nil)
	if err != nil {
		return nil, err
	}
	revealedRecv, redactedRecv, err := revealSpans(recvPlan, att.RecvCommitments, secrets.RecvOpeningKeys, secrets.RecvPlaintext, whitelist)
	if err != nil {
		return nil, err
	}

	if n := revealedByteCount(revealedSent); n > maxSentBytes {
		return nil, shared.NewRedactionViolationError("revealed sent byte count exceeds MAX_SENT_DATA")
	}
	if n := revealedByteCount(revealedRecv); n > maxRecvBytes {
		return nil, shared.NewRedactionViolationError("revealed recv byte count exceeds MAX_RECV_DATA")
	}

	return &attestation.Presentation{
		Attestation:          *att,
		RevealedSent:         revealedSent,
		RedactedSent:         redactedSent,
		RevealedRecv:         revealedRecv,
		RedactedRecv:         redactedRecv,
		ServerCertDER:        secrets.ServerCertDER,
		IntermediateCertsDER: secrets.IntermediateCertsDER,
	}, nil
}

// revealSpans walks one half's plan span-by-span. Sent-side spans have no
// field name and no whitelist gate: a span already marked Reveal at
// request-build time carries no secret (credentials are always marked
// Redact by the planner) so it is always safe to open. Recv-side spans
// carry a field name and are additionally gated by whitelist: passing a
// nil whitelist reveals nothing on that half (an explicit opt-in is
// required to disclose any parsed field).
func revealSpans(plan planner.Plan, commitments []attestation.CommitmentSpan, keys [][]byte, plaintext []byte, whitelist Whitelist) ([]attestation.RevealedSpan, []attestation.RedactedSpanRef, error) {
	if len(plan.Spans) != len(commitments) || len(plan.Spans) != len(keys) {
		return nil, nil, shared.NewRedactionViolationError("plan span count does not match the attestation's commitment structure")
	}

	var revealed []attestation.RevealedSpan
	var redacted []attestation.RedactedSpanRef

	for i, span := range plan.Spans {
		wantsReveal := span.Kind == planner.Reveal
		if span.Field != "" {
			wantsReveal = wantsReveal && whitelist != nil && whitelist[span.Field]
		}

		if !wantsReveal {
			redacted = append(redacted, attestation.RedactedSpanRef{Start: span.Start, End: span.End})
			continue
		}

		if span.Start != commitments[i].Start || span.End != commitments[i].End {
			return nil, nil, shared.NewRedactionViolationError("plan span does not align with its commitment span")
		}
		if span.End > len(plaintext) {
			return nil, nil, shared.NewRedactionViolationError("plan span exceeds the recorded plaintext length")
		}

		revealed = append(revealed, attestation.RevealedSpan{
			Start:     span.Start,
			End:       span.End,
			Plaintext: plaintext[span.Start:span.End],
			Key:       keys[i],
			Field:     span.Field,
		})
	}
	return revealed, redacted, nil
}

func revealedByteCount(spans []attestation.RevealedSpan) int {
	total := 0
	for _, s := range spans {
		total += s.End - s.Start
	}
	return total
}
