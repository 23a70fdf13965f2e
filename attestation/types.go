// Package attestation defines the Notary-signed artifact, its prover-only
// witness material, and the derived selective-disclosure presentation, and
// persists all three as versioned binary blobs. The framing is one version
// byte followed by a CBOR-encoded body (github.com/fxamacker/cbor/v2),
// the same serialization attestation-shaped data tends to use elsewhere
// (yaronf-mint/attestation's CBOR + veraison/cmw envelopes).
package attestation

import (
	"time"

	"github.com/zkp2p/tlsn-attest/planner"
)

// CurrentVersion is the only artifact version this module writes.
const CurrentVersion byte = 1

// CommitmentSpan is one committed span of a transcript half: its byte
// range in that half, the publicly recorded masked view, and the
// HMAC-SHA256 commitment over its one-time-pad redaction stream, per
// mpctls.RedactionCommitment. Every span of a plan has one of these,
// whether it ends up revealed or stays redacted — Recorded and
// Commitment alone never leak the plaintext.
type CommitmentSpan struct {
	Start, End int
	Recorded   []byte
	Commitment []byte
}

// Attestation is the Notary-signed artifact: created at session finalize
// and persisted verbatim thereafter. Mutating any field invalidates
// NotarySignature.
type Attestation struct {
	ProtocolVersion          string
	SessionID                string
	ProviderID               string
	ProviderHost             string
	ServerIdentityCommitment []byte // hash of the leaf certificate presented during Open
	SentCommitments          []CommitmentSpan
	RecvCommitments          []CommitmentSpan
	SentTotal                int
	RecvTotal                int
	NotaryKeyID              string // hex-encoded secp256k1 address
	NotarySignature          []byte
	CreatedAt                time.Time
}

// SigningBody returns the exact bytes the Notary signs over: every field
// except the signature itself and NotaryKeyID, which is the address
// recovered from that signature and is only filled in after signing.
// Re-deriving this and comparing against NotarySignature is how the
// verifier detects tampering.
func (a *Attestation) SigningBody() ([]byte, error) {
	unsigned := *a
	unsigned.NotarySignature = nil
	unsigned.NotaryKeyID = ""
	return Marshal(&unsigned)
}

// Secrets is the prover-only witness material persisted alongside an
// Attestation: never published, and useless without it.
type Secrets struct {
	SessionID       string
	SentOpeningKeys [][]byte // parallel to Attestation.SentCommitments
	RecvOpeningKeys [][]byte // parallel to Attestation.RecvCommitments
	SentPlaintext   []byte       // full sent buffer, kept only in Secrets
	RecvPlaintext   []byte       // full recv buffer, kept only in Secrets
	SentPlan        planner.Plan // kind/field tags needed to re-run Present later
	RecvPlan        planner.Plan
	ServerCertDER   []byte
	// IntermediateCertsDER is the rest of the chain the provider's TLS
	// handshake presented (state.PeerCertificates[1:]), in leaf-to-root
	// order. A verifier needs these to build a chain to a trusted root;
	// without them, validation only succeeds for endpoints whose leaf is
	// directly signed by a root already in the trust store, which real
	// deployments like wise.com/paypal.com are not.
	IntermediateCertsDER [][]byte
}

// RevealedSpan is one disclosed byte range in a Presentation: the
// plaintext bytes plus the opening key needed to recompute its
// commitment.
type RevealedSpan struct {
	Start, End int
	Plaintext  []byte
	Key        []byte
	Field      string // empty for request-side spans
}

// RedactedSpanRef names a span that stays hidden: present so a verifier
// can confirm full coverage without ever seeing its contents.
type RedactedSpanRef struct {
	Start, End int
}

// Presentation is the publishable selective-disclosure artifact: an
// envelope around the signed Attestation plus exactly the openings the
// presenter chose to reveal.
type Presentation struct {
	Attestation   Attestation
	RevealedSent  []RevealedSpan
	RedactedSent  []RedactedSpanRef
	RevealedRecv  []RevealedSpan
	RedactedRecv  []RedactedSpanRef
	ServerCertDER []byte
	// IntermediateCertsDER carries Secrets.IntermediateCertsDER through to
	// the publishable artifact, so a verifier with no out-of-band copy of
	// the provider's issuing chain can still validate it.
	IntermediateCertsDER [][]byte
}
