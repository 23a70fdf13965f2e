// Package pipeline orchestrates one end-to-end run of the attestation
// protocol: notary connect, provider handshake, request/response
// exchange, commitment, signing, selective disclosure, and verification.
// It is the thing cmd/prove and cmd/verify call into, grounded on the
// ordering libclient/client.go's driving goroutine enforces over its
// ProtocolPhase state machine — (1) notary connect, (2) provider connect
// and handshake, (3) request write, (4) response read, (5) finalize —
// generalized here to the Session/Client interfaces owned by mpctls and
// notary instead of one combined driver.
package pipeline

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zkp2p/tlsn-attest/attestation"
	"github.com/zkp2p/tlsn-attest/config"
	"github.com/zkp2p/tlsn-attest/mpctls"
	"github.com/zkp2p/tlsn-attest/notary"
	"github.com/zkp2p/tlsn-attest/planner"
	"github.com/zkp2p/tlsn-attest/presenter"
	"github.com/zkp2p/tlsn-attest/providers"
	"github.com/zkp2p/tlsn-attest/shared"
	"github.com/zkp2p/tlsn-attest/verifier"
	"go.uber.org/zap"
)

const protocolVersion = "tlsn-attest/v1"

// ScopePaths names the three persistent artifact paths for a scope, per
// §6: "<scope>.attestation, <scope>.secrets, <scope>.presentation".
type ScopePaths struct {
	Attestation  string
	Secrets      string
	Presentation string
	Lock         string
}

// PathsForScope resolves the artifact paths a scope uses under cfg's
// ArtifactDir.
func PathsForScope(cfg *config.SessionConfig, scope string) ScopePaths {
	base := filepath.Join(cfg.ArtifactDir, scope)
	return ScopePaths{
		Attestation:  base + ".attestation",
		Secrets:      base + ".secrets",
		Presentation: base + ".presentation",
		Lock:         base + ".lock",
	}
}

// RequestParams is the full input a Prove run needs beyond the resolved
// SessionConfig and provider profile: the request template to use, the
// credentials the builder folds into it, and the template's path
// parameters.
type RequestParams struct {
	TemplateName string
	Credentials  providers.Credentials
	PathParams   map[string]string

	// ProviderTrustRoots overrides the certificate pool the provider TLS
	// handshake is validated against; nil uses the system trust store.
	// Exists so tests can point Prove at a local TLS listener signed by a
	// throwaway CA instead of a real payment provider.
	ProviderTrustRoots *x509.CertPool
}

// Prove runs steps 1-5 of §5's ordering against profile and returns the
// signed Attestation plus the prover-only Secrets. It does not touch the
// filesystem; callers that want the artifacts persisted call WriteProve
// (which also takes the advisory scope lock) with the results.
func Prove(ctx context.Context, cfg *config.SessionConfig, logger *zap.Logger, profile providers.Profile, params RequestParams) (*attestation.Attestation, *attestation.Secrets, error) {
	request, secretRanges, err := providers.BuildRequest(profile, params.TemplateName, params.Credentials, params.PathParams, cfg.UserAgent)
	if err != nil {
		return nil, nil, err
	}
	if len(request) > cfg.MaxSentBytes {
		return nil, nil, shared.NewCapExceededError("sent", cfg.MaxSentBytes)
	}

	sentPlan, err := planner.BuildFromSecretRanges(len(request), toPlannerRanges(secretRanges))
	if err != nil {
		return nil, nil, err
	}

	nc, err := notary.Connect(ctx, logger, cfg.Notary, cfg.MaxSentBytes, cfg.MaxRecvBytes)
	if err != nil {
		return nil, nil, err
	}
	defer nc.Close()

	session := mpctls.NewDefaultSession(logger, cfg.MaxSentBytes, cfg.MaxRecvBytes)
	session.TrustRoots = params.ProviderTrustRoots
	if err := session.Open(ctx, profile.Host, profile.Port); err != nil {
		return nil, nil, err
	}
	defer session.Close()

	sentCommitments, err := mpctls.CommitSpans(request, toMpctlsSpans(sentPlan.Spans))
	if err != nil {
		return nil, nil, shared.NewIOError("failed to commit sent-side spans", err)
	}

	response, err := session.Exchange(ctx, request)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := providers.ParseResponse(response)
	if err != nil {
		return nil, nil, err
	}
	if parsed.StatusCode < 200 || parsed.StatusCode >= 300 {
		return nil, nil, shared.NewHTTPStatusError(parsed.StatusCode)
	}
	contentType := parsed.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return nil, nil, shared.NewUnexpectedContentTypeError(contentType)
	}

	fieldRanges, err := providers.LocateFields(parsed.Body, profile.FieldCatalog)
	if err != nil {
		return nil, nil, err
	}
	recvPlan, err := planner.BuildFromFieldRanges(len(parsed.Body), toPlannerFields(fieldRanges))
	if err != nil {
		return nil, nil, err
	}
	recvCommitments, err := mpctls.CommitSpans(parsed.Body, toMpctlsSpans(recvPlan.Spans))
	if err != nil {
		return nil, nil, shared.NewIOError("failed to commit recv-side spans", err)
	}

	leafDER := session.ServerCertificate()
	intermediatesDER := session.IntermediateCertificates()
	identityDigest := sha256.Sum256(leafDER)

	att := &attestation.Attestation{
		ProtocolVersion:          protocolVersion,
		SessionID:                nc.SessionID,
		ProviderID:               string(profile.ID),
		ProviderHost:             profile.Host,
		ServerIdentityCommitment: identityDigest[:],
		SentCommitments:          toAttestationSpans(sentCommitments),
		RecvCommitments:          toAttestationSpans(recvCommitments),
		SentTotal:                len(request),
		RecvTotal:                len(parsed.Body),
		CreatedAt:                time.Now().UTC(),
	}

	if err := nc.SendCommitments(struct {
		Sent []attestation.CommitmentSpan `json:"sent"`
		Recv []attestation.CommitmentSpan `json:"recv"`
	}{att.SentCommitments, att.RecvCommitments}); err != nil {
		return nil, nil, err
	}

	body, err := att.SigningBody()
	if err != nil {
		return nil, nil, err
	}
	sig, err := nc.RequestSignature(body)
	if err != nil {
		return nil, nil, err
	}
	signerID, err := shared.RecoverNotaryKeyID(body, sig)
	if err != nil {
		return nil, nil, shared.NewNotarySignatureInvalidError(err)
	}
	if nc.NotaryKeyHex != "" && signerID != common.HexToAddress(nc.NotaryKeyHex) {
		return nil, nil, shared.NewNotarySignatureInvalidError(fmt.Errorf("signature key %s does not match announced key %s", signerID.Hex(), nc.NotaryKeyHex))
	}
	att.NotarySignature = sig
	att.NotaryKeyID = signerID.Hex()

	secrets := &attestation.Secrets{
		SessionID:            nc.SessionID,
		SentOpeningKeys:      keysOf(sentCommitments),
		RecvOpeningKeys:      keysOf(recvCommitments),
		SentPlaintext:        request,
		RecvPlaintext:        parsed.Body,
		SentPlan:             sentPlan,
		RecvPlan:             recvPlan,
		ServerCertDER:        leafDER,
		IntermediateCertsDER: intermediatesDER,
	}

	return att, secrets, nil
}

// WriteProve persists att/secrets under scope's advisory lock, per §5's
// single-writer contract. It never leaves a partial pair on disk:
// WriteAttestation and WriteSecrets each write-then-rename independently,
// and if the secrets write fails the attestation just written is removed
// again. The lock is released regardless of which write failed, so a
// failed run can be retried after inspection.
func WriteProve(cfg *config.SessionConfig, scope string, att *attestation.Attestation, secrets *attestation.Secrets) error {
	paths := PathsForScope(cfg, scope)
	lock, err := acquireScopeLock(paths.Lock)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := attestation.WriteAttestation(paths.Attestation, att); err != nil {
		return err
	}
	if err := attestation.WriteSecrets(paths.Secrets, secrets); err != nil {
		os.Remove(paths.Attestation)
		return err
	}
	return nil
}

// Present reads a scope's persisted Attestation and Secrets and derives a
// Presentation honoring whitelist, writing it back to the scope's
// presentation path. Per §8 scenario 5, a whitelist naming a
// non-disclosable field fails before anything is written: presenter.Present
// returns the PolicyViolation error before this function ever calls
// WritePresentation.
func Present(cfg *config.SessionConfig, scope string, profile providers.Profile, whitelist presenter.Whitelist) (*attestation.Presentation, error) {
	paths := PathsForScope(cfg, scope)

	att, err := attestation.ReadAttestation(paths.Attestation)
	if err != nil {
		return nil, err
	}
	secrets, err := attestation.ReadSecrets(paths.Secrets)
	if err != nil {
		return nil, err
	}

	pres, err := presenter.Present(att, secrets, profile, secrets.SentPlan, secrets.RecvPlan, whitelist, cfg.MaxSentBytes, cfg.MaxRecvBytes)
	if err != nil {
		return nil, err
	}

	if err := attestation.WritePresentation(paths.Presentation, pres); err != nil {
		return nil, err
	}
	return pres, nil
}

// ProveToPresent runs Prove followed immediately by presenter.Present in
// memory, then persists all three artifacts under one lock acquisition —
// the `--mode prove-to-present` CLI surface of §6, and the happy path of
// §8 scenario 1.
func ProveToPresent(ctx context.Context, cfg *config.SessionConfig, logger *zap.Logger, profile providers.Profile, params RequestParams, scope string, whitelist presenter.Whitelist) (*attestation.Presentation, error) {
	att, secrets, err := Prove(ctx, cfg, logger, profile, params)
	if err != nil {
		return nil, err
	}

	pres, err := presenter.Present(att, secrets, profile, secrets.SentPlan, secrets.RecvPlan, whitelist, cfg.MaxSentBytes, cfg.MaxRecvBytes)
	if err != nil {
		return nil, err
	}

	paths := PathsForScope(cfg, scope)
	lock, err := acquireScopeLock(paths.Lock)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	if err := attestation.WriteAttestation(paths.Attestation, att); err != nil {
		return nil, err
	}
	if err := attestation.WriteSecrets(paths.Secrets, secrets); err != nil {
		return nil, err
	}
	if err := attestation.WritePresentation(paths.Presentation, pres); err != nil {
		return nil, err
	}
	return pres, nil
}

// Verify reads a scope's persisted Presentation and runs the four-step
// verification procedure of §4.9 against it.
func Verify(cfg *config.SessionConfig, scope string, profile providers.Profile, expectedHost string, trustedKeys []common.Address, roots *x509.CertPool) (*verifier.Result, error) {
	paths := PathsForScope(cfg, scope)
	pres, err := attestation.ReadPresentation(paths.Presentation)
	if err != nil {
		return nil, err
	}
	return verifier.Verify(pres, trustedKeys, expectedHost, profile, roots)
}

func toPlannerRanges(ranges []providers.SecretRange) []struct{ Start, End int } {
	out := make([]struct{ Start, End int }, len(ranges))
	for i, r := range ranges {
		out[i] = struct{ Start, End int }{r.Start, r.End}
	}
	return out
}

func toPlannerFields(ranges []providers.FieldRange) []struct {
	Name       string
	Start, End int
} {
	out := make([]struct {
		Name       string
		Start, End int
	}, len(ranges))
	for i, r := range ranges {
		out[i] = struct {
			Name       string
			Start, End int
		}{r.Name, r.Start, r.End}
	}
	return out
}

func toMpctlsSpans(spans []planner.Span) []mpctls.Span {
	out := make([]mpctls.Span, len(spans))
	for i, s := range spans {
		out[i] = mpctls.Span{Start: s.Start, End: s.End}
	}
	return out
}

func toAttestationSpans(commitments []mpctls.RedactionCommitment) []attestation.CommitmentSpan {
	out := make([]attestation.CommitmentSpan, len(commitments))
	for i, c := range commitments {
		out[i] = attestation.CommitmentSpan{Start: c.SpanStart, End: c.SpanEnd, Recorded: c.Recorded, Commitment: c.Commitment}
	}
	return out
}

func keysOf(commitments []mpctls.RedactionCommitment) [][]byte {
	out := make([][]byte, len(commitments))
	for i, c := range commitments {
		out[i] = c.Key
	}
	return out
}
