package mpctls

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/zkp2p/tlsn-attest/shared"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

// DefaultSession is the concrete Session implementation carried by this
// module. It dials the provider over real TLS (the Notary's secret-share
// of the session keys is not modeled; a production deployment swaps this
// implementation for one backed by tlsn-core), and owns the record-level
// redaction machinery: XOR one-time-pad streams plus HMAC-SHA256
// commitments over every span of a plan, mirroring
// libclient/client.go#generateRedactionStreams/applyRedaction/computeCommitments.
type DefaultSession struct {
	logger *zap.Logger

	mu                   sync.Mutex
	phase                Phase
	conn                 net.Conn
	leafCertDER          []byte
	intermediateCertsDER [][]byte

	maxSent int
	maxRecv int

	// TrustRoots overrides the certificate pool Open validates the
	// provider's chain against; nil (the production default) uses the
	// standard library's system trust store. Grounded on
	// minitls/types.go's InsecureSkipVerify escape hatch, narrowed here to
	// a specific root pool instead of disabling verification outright, so
	// tests can hand the session a self-signed test CA without weakening
	// the production path.
	TrustRoots *x509.CertPool
}

// NewDefaultSession constructs a session bound to the sent/received byte
// caps from SessionConfig.
func NewDefaultSession(logger *zap.Logger, maxSent, maxRecv int) *DefaultSession {
	return &DefaultSession{logger: logger, phase: PhaseOpened, maxSent: maxSent, maxRecv: maxRecv}
}

func (s *DefaultSession) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *DefaultSession) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("mpctls session phase transition", zap.String("from", s.phase.String()), zap.String("to", p.String()))
	s.phase = p
}

// Open dials host:port over TLS 1.2+ and verifies the server's identity
// using the standard library chain/hostname validation.
func (s *DefaultSession) Open(ctx context.Context, host string, port int) error {
	if s.Phase() != PhaseOpened {
		return shared.NewTLSError("session already opened", nil)
	}
	s.setPhase(PhaseHandshaking)

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	address := fmt.Sprintf("%s:%d", host, port)
	tlsConfig := &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}

	if s.TrustRoots != nil {
		tlsConfig.RootCAs = s.TrustRoots
	}

	rawConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return shared.NewNotaryUnreachableError(address, err)
	}

	conn := tls.Client(rawConn, tlsConfig)
	if err := conn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return shared.NewTLSError("TLS handshake with provider endpoint failed", err)
	}

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		conn.Close()
		return shared.NewServerIdentityMismatchError(host, "")
	}
	leaf := state.PeerCertificates[0]
	if err := leaf.VerifyHostname(host); err != nil {
		conn.Close()
		return shared.NewServerIdentityMismatchError(host, leaf.Subject.CommonName)
	}

	intermediates := make([][]byte, 0, len(state.PeerCertificates)-1)
	for _, c := range state.PeerCertificates[1:] {
		intermediates = append(intermediates, c.Raw)
	}

	s.mu.Lock()
	s.conn = conn
	s.leafCertDER = leaf.Raw
	s.intermediateCertsDER = intermediates
	s.mu.Unlock()
	s.setPhase(PhaseRunning)
	return nil
}

// ServerCertificate returns the DER-encoded leaf certificate captured
// during Open.
func (s *DefaultSession) ServerCertificate() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leafCertDER
}

// IntermediateCertificates returns the rest of the chain (excluding the
// leaf) presented during Open, in leaf-to-root order.
func (s *DefaultSession) IntermediateCertificates() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intermediateCertsDER
}

// Exchange writes the request over the live TLS connection and reads the
// full response. Redaction commitments are computed separately via
// CommitSpans, once the caller knows which spans of each half it wants
// committed.
func (s *DefaultSession) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	if s.Phase() != PhaseRunning {
		return nil, shared.NewTLSError("session is not running", nil)
	}
	if len(request) > s.maxSent {
		return nil, shared.NewCapExceededError("sent", s.maxSent)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(request); err != nil {
		return nil, shared.NewRequestWriteFailedError(err)
	}

	response, err := readCapped(conn, s.maxRecv)
	if err != nil {
		if errors.Is(err, errRecvCapExceeded) {
			return nil, shared.NewCapExceededError("recv", s.maxRecv)
		}
		return nil, shared.NewResponseTruncatedError(err)
	}

	return response, nil
}

// Close tears down the underlying connection.
func (s *DefaultSession) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	s.setPhase(PhaseClosed)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// CommitSpans produces one fresh one-time-pad stream, HMAC key, and
// commitment per span of plaintext, covering both reveal and redact
// spans of a plan uniformly: every byte of a transcript half is masked
// and committed at session time, and the decision to later open a span's
// mask (reveal) or withhold it (redact) is made by the Presenter, not
// here. Grounded directly on
// libclient/redaction_build.go#generateRedactionStreams and
// #computeCommitments, generalized from a single secret-header block to
// an arbitrary span list and extended to record the public masked view.
//
// Rather than drawing two independent crypto/rand reads per span, it
// draws one 32-byte seed for the whole call and derives every span's
// stream and HMAC key from it with HKDF-Expand (RFC 5869), labeled by
// span index the way minitls/crypto.go's hkdfExpandLabel derives a TLS
// 1.3 traffic secret's children from one handshake secret.
func CommitSpans(plaintext []byte, spans []Span) ([]RedactionCommitment, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate commitment seed: %w", err)
	}

	out := make([]RedactionCommitment, len(spans))
	for i, sp := range spans {
		length := sp.End - sp.Start
		if length < 0 || sp.End > len(plaintext) {
			return nil, fmt.Errorf("span %d [%d,%d) is out of bounds for %d plaintext bytes", i, sp.Start, sp.End, len(plaintext))
		}
		stream, err := hkdfExpandSpan(seed, i, "stream", length)
		if err != nil {
			return nil, fmt.Errorf("failed to derive stream %d: %w", i, err)
		}
		key, err := hkdfExpandSpan(seed, i, "key", 32)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key %d: %w", i, err)
		}
		recorded := ApplyOneTimePad(plaintext[sp.Start:sp.End], stream)

		h := hmac.New(sha256.New, key)
		h.Write(stream)

		out[i] = RedactionCommitment{
			SpanStart:  sp.Start,
			SpanEnd:    sp.End,
			Key:        key,
			Stream:     stream,
			Recorded:   recorded,
			Commitment: h.Sum(nil),
		}
	}
	return out, nil
}

// hkdfExpandSpan derives length bytes for one span's stream or key from
// the call's shared seed, the span's index, and purpose ("stream" or
// "key") so the two never collide even for a zero-length span.
func hkdfExpandSpan(seed []byte, spanIndex int, purpose string, length int) ([]byte, error) {
	info := fmt.Sprintf("tlsn-attest span %d %s", spanIndex, purpose)
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, seed, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyOneTimePad XORs plaintext against a commitment's stream, the
// operation a Presenter runs in reverse to recover an opening, grounded
// on libclient/redaction_build.go#applyRedaction.
func ApplyOneTimePad(plaintext []byte, stream []byte) []byte {
	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	for i := 0; i < len(stream) && i < len(out); i++ {
		out[i] ^= stream[i]
	}
	return out
}

// Open produces the Opening for a commitment given the original
// plaintext span, to be embedded in a Presentation.
func Open(c RedactionCommitment, plaintext []byte) Opening {
	return Opening{SpanStart: c.SpanStart, SpanEnd: c.SpanEnd, Plaintext: plaintext, Key: c.Key}
}

// RecoverStream is ApplyOneTimePad's use on the verifying side: given the
// publicly recorded masked view of a span and the opened plaintext, it
// recovers the one-time-pad stream so VerifyOpening can check it against
// the span's commitment. XOR is its own inverse, so this is literally
// ApplyOneTimePad again, named for the direction it runs in.
func RecoverStream(recorded, plaintext []byte) []byte {
	return ApplyOneTimePad(recorded, plaintext)
}

// VerifyOpening checks that HMAC-SHA256(key, stream) equals commitment,
// the check a verifier runs after recovering stream via RecoverStream.
func VerifyOpening(key, stream, commitment []byte) bool {
	h := hmac.New(sha256.New, key)
	h.Write(stream)
	computed := h.Sum(nil)
	return hmac.Equal(computed, commitment)
}

// errRecvCapExceeded is a sentinel distinguishing a recv-side byte-cap
// overrun from a genuine truncated-framing failure: readCapped's caller
// maps the two to different AttestError subtypes (CapExceeded vs.
// ResponseTruncated) per SPEC_FULL.md §4.4.
var errRecvCapExceeded = errors.New("response exceeded recv byte cap")

func readCapped(r io.Reader, cap int) ([]byte, error) {
	limited := io.LimitReader(r, int64(cap)+1)
	data, err := io.ReadAll(limited)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(data) > cap {
		return nil, errRecvCapExceeded
	}
	return data, nil
}
