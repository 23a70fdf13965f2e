// Package verifier validates a Presentation against a trusted Notary key
// set and an expected server identity, returning the disclosed fields.
// Grounded in shared/signatures.go's VerifySignatureWithETH-style
// secp256k1 recovery and shared/cert_manager.go's certificate-chain
// handling, generalized away from ACME issuance to pure chain validation
// against the standard library trust store.
package verifier

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"time"

	gojson "github.com/coreos/go-json"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zkp2p/tlsn-attest/attestation"
	"github.com/zkp2p/tlsn-attest/mpctls"
	"github.com/zkp2p/tlsn-attest/providers"
	"github.com/zkp2p/tlsn-attest/shared"
)

// DisclosedField is one (name, value) pair recovered from a verified
// Presentation's revealed recv spans.
type DisclosedField struct {
	Name  string
	Value string
}

// Result is the outcome of a successful verification. Any failure is
// terminal; there is no partial Result.
type Result struct {
	ServerIdentity     string
	DisclosedSentSpans int
	DisclosedRecvSpans int
	DisclosedFields    []DisclosedField
	NotaryPublicKeyID  common.Address
	AttestationTime    time.Time
}

// Verify runs the four-step procedure of SPEC_FULL.md §4.9 against p:
// notary signature, server identity, per-span commitment openings, then
// JSON-fragment extraction of the disclosed recv fields. roots is the
// trust store to validate the server's certificate chain against; pass
// nil to use the host's system trust store (the production default).
func Verify(p *attestation.Presentation, trustedKeys []common.Address, expectedHost string, profile providers.Profile, roots *x509.CertPool) (*Result, error) {
	keyID, err := verifyNotarySignature(&p.Attestation, trustedKeys)
	if err != nil {
		return nil, err
	}

	if err := verifyServerIdentity(p, expectedHost, roots); err != nil {
		return nil, err
	}

	if err := verifyOpenings(p.RevealedSent, p.Attestation.SentCommitments); err != nil {
		return nil, err
	}
	if err := verifyOpenings(p.RevealedRecv, p.Attestation.RecvCommitments); err != nil {
		return nil, err
	}

	fields, err := disclosedFields(p.RevealedRecv, profile)
	if err != nil {
		return nil, err
	}

	return &Result{
		ServerIdentity:     expectedHost,
		DisclosedSentSpans: len(p.RevealedSent),
		DisclosedRecvSpans: len(p.RevealedRecv),
		DisclosedFields:    fields,
		NotaryPublicKeyID:  keyID,
		AttestationTime:    p.Attestation.CreatedAt,
	}, nil
}

func verifyNotarySignature(att *attestation.Attestation, trustedKeys []common.Address) (common.Address, error) {
	body, err := att.SigningBody()
	if err != nil {
		return common.Address{}, shared.NewNotarySignatureInvalidError(err)
	}
	recovered, err := shared.RecoverNotaryKeyID(body, att.NotarySignature)
	if err != nil {
		return common.Address{}, shared.NewNotarySignatureInvalidError(err)
	}
	for _, k := range trustedKeys {
		if k == recovered {
			return recovered, nil
		}
	}
	return common.Address{}, shared.NewNotarySignatureInvalidError(nil)
}

func verifyServerIdentity(p *attestation.Presentation, expectedHost string, roots *x509.CertPool) error {
	if len(p.ServerCertDER) == 0 {
		return shared.NewServerIdentityMismatchError(expectedHost, "")
	}
	leaf, err := x509.ParseCertificate(p.ServerCertDER)
	if err != nil {
		return shared.NewServerIdentityMismatchError(expectedHost, "")
	}
	digest := sha256.Sum256(p.ServerCertDER)
	if !bytes.Equal(digest[:], p.Attestation.ServerIdentityCommitment) {
		return shared.NewServerIdentityMismatchError(expectedHost, leaf.Subject.CommonName)
	}
	if err := leaf.VerifyHostname(expectedHost); err != nil {
		return shared.NewServerIdentityMismatchError(expectedHost, leaf.Subject.CommonName)
	}

	// A real deployment's leaf is signed by an intermediate, not directly
	// by a root in the trust store, so the chain presented during Open
	// must be replayed here or VerifyHostname's success is followed by a
	// Verify failure for almost every real provider.
	intermediates := x509.NewCertPool()
	for _, der := range p.IntermediateCertsDER {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return shared.NewServerIdentityMismatchError(expectedHost, leaf.Subject.CommonName)
		}
		intermediates.AddCert(cert)
	}
	if _, err := leaf.Verify(x509.VerifyOptions{DNSName: expectedHost, Roots: roots, Intermediates: intermediates}); err != nil {
		return shared.NewServerIdentityMismatchError(expectedHost, leaf.Subject.CommonName)
	}
	return nil
}

// verifyOpenings recomputes each revealed span's one-time-pad stream from
// its publicly recorded masked view and the opened plaintext, then checks
// it against the commitment the Notary co-signed.
func verifyOpenings(revealed []attestation.RevealedSpan, commitments []attestation.CommitmentSpan) error {
	for i, r := range revealed {
		idx := indexOf(commitments, r.Start, r.End)
		if idx < 0 {
			return shared.NewCommitmentOpeningInvalidError(i)
		}
		c := commitments[idx]
		stream := mpctls.RecoverStream(c.Recorded, r.Plaintext)
		if !mpctls.VerifyOpening(r.Key, stream, c.Commitment) {
			return shared.NewCommitmentOpeningInvalidError(i)
		}
	}
	return nil
}

func indexOf(commitments []attestation.CommitmentSpan, start, end int) int {
	for i, c := range commitments {
		if c.Start == start && c.End == end {
			return i
		}
	}
	return -1
}

// disclosedFields enforces the disclosure policy one more time on the
// verifying side (a Presentation forged to reveal a non-disclosable
// field must still be rejected, not merely trusted from the prover) and
// then maps each revealed recv span back to a plain (name, value) pair.
// A revealed span is the raw JSON fragment planner.BuildFromFieldRanges
// located in the response body (e.g. `"COMPLETED"`, `555`, `true`), not
// a bare string, so it is parsed per SPEC_FULL.md §4.9 step 4 rather than
// surfaced byte-for-byte — a string field's surrounding quote characters
// are not part of its disclosed value.
func disclosedFields(revealed []attestation.RevealedSpan, profile providers.Profile) ([]DisclosedField, error) {
	out := make([]DisclosedField, 0, len(revealed))
	for _, r := range revealed {
		if r.Field == "" {
			continue
		}
		if !profile.IsDisclosable(r.Field) {
			return nil, shared.NewDisclosurePolicyViolationError("revealed field \"" + r.Field + "\" is not in the provider's disclosable set")
		}
		value, err := parseJSONFragmentValue(r.Plaintext)
		if err != nil {
			return nil, shared.NewParseError("revealed field \""+r.Field+"\" is not a well-formed JSON fragment", err)
		}
		out = append(out, DisclosedField{Name: r.Field, Value: value})
	}
	return out, nil
}

// parseJSONFragmentValue decodes a revealed span's raw bytes with the same
// offset-carrying JSON decoder providers/json_positioned.go used to locate
// them, and renders the decoded value as plain text: a string's quotes are
// stripped, a number or bool is its literal textual form, and an object or
// array (not expected from the catalog's current scalar fields, but not
// excluded either) keeps its original JSON text since there is no scalar
// form to reduce it to.
func parseJSONFragmentValue(fragment []byte) (string, error) {
	var node gojson.Node
	if err := gojson.Unmarshal(fragment, &node); err != nil {
		return "", err
	}
	switch v := node.Value.(type) {
	case string:
		return v, nil
	case nil:
		return "null", nil
	case bool, float64:
		return string(bytes.TrimSpace(fragment)), nil
	default:
		return string(fragment), nil
	}
}
