// Package mpctls defines the boundary between this module and the MPC-TLS
// prover core. Secret-sharing the real TLS session keys with a Notary is
// outside what this module implements natively: tlsn-core does that in the
// upstream protocol. Session is the injectable interface a real prover
// core would satisfy; DefaultSession is a self-contained implementation
// that leaves the TLS record layer to the standard library's crypto/tls
// client and performs the commitment mechanics this module can own
// directly (one-time-pad redaction, HMAC commitments), grounded on
// libclient/tls.go and libclient/client.go's
// generateRedactionStreams/applyRedaction/computeCommitments.
package mpctls

import "context"

// Phase mirrors libclient.ProtocolPhase, generalized to an
// Opened -> Handshaking -> Running -> Closed state machine.
type Phase int

const (
	PhaseOpened Phase = iota
	PhaseHandshaking
	PhaseRunning
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpened:
		return "Opened"
	case PhaseHandshaking:
		return "Handshaking"
	case PhaseRunning:
		return "Running"
	case PhaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// RedactionCommitment is one committed one-time-pad stream over a byte
// span of a transcript half. Recorded is the publicly committed masked
// view (plaintext XOR Stream) that lands in the Attestation; Key and the
// plaintext stay in Secrets (Stream itself is not persisted) until the
// Presenter decides to open the span, per §4.8. Every span of a plan gets
// one of these, whether it will end up revealed or redacted — only the
// decision to publish the span's plaintext and Key differs.
type RedactionCommitment struct {
	SpanStart, SpanEnd int
	Key                []byte // 32-byte HMAC key, kept by the Presenter until opening
	Stream             []byte // one-time-pad stream, same length as the span
	Recorded           []byte // plaintext XOR Stream; safe to publish, binds the commitment to a plaintext
	Commitment         []byte // HMAC-SHA256(Key, Stream)
}

// Opening is the revealed half of a RedactionCommitment: the plaintext
// bytes of the span plus the key, enough for a verifier to recompute the
// pad (Recorded XOR Plaintext = Stream) and check it against the
// commitment.
type Opening struct {
	SpanStart, SpanEnd int
	Plaintext          []byte
	Key                []byte
}

// Session is the "consumed as a library" MPC-TLS prover core contract: a
// single HTTPS exchange against a provider endpoint, co-witnessed by a
// Notary. Exchange only drives the wire I/O; redaction commitments over
// the request and (later, once response fields are located) the response
// are computed separately via CommitSpans so the recv side can commit
// against spans the parser has not identified yet at Exchange time.
type Session interface {
	// Open dials the provider endpoint and completes the TLS handshake,
	// transitioning Opened -> Handshaking -> Running. Notary session setup
	// is not part of Open (pipeline.Prove runs notary.Connect first). On
	// success the session's leaf certificate is available via
	// ServerCertificate.
	Open(ctx context.Context, host string, port int) error

	// Exchange writes request bytes and returns the full raw response.
	Exchange(ctx context.Context, request []byte) (response []byte, err error)

	// ServerCertificate returns the DER-encoded leaf certificate observed
	// during Open, for embedding in Secrets/Attestation.
	ServerCertificate() []byte

	// IntermediateCertificates returns the rest of the chain (excluding
	// the leaf) the provider's TLS handshake presented during Open, in
	// leaf-to-root order, for embedding alongside the leaf so a verifier
	// can build a path to a trusted root.
	IntermediateCertificates() [][]byte

	// Close finalizes the session, transitioning to Closed.
	Close() error

	Phase() Phase
}

// Span is a byte range within a buffer the caller asked the session to
// redact via a one-time-pad commitment.
type Span struct{ Start, End int }
