package attestation

import (
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/zkp2p/tlsn-attest/shared"
)

// Marshal CBOR-encodes v. Used both for on-disk framing and for producing
// the exact signing body of an Attestation.
func Marshal(v any) ([]byte, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, shared.NewIOError("cbor encode failed", err)
	}
	return data, nil
}

// Unmarshal decodes a CBOR body into v.
func Unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return shared.NewIOError("cbor decode failed", err)
	}
	return nil
}

// frame prefixes a CBOR body with its version byte.
func frame(version byte, body []byte) []byte {
	out := make([]byte, 1+len(body))
	out[0] = version
	copy(out[1:], body)
	return out
}

// unframe splits a version byte off the front of raw artifact bytes,
// rejecting anything but CurrentVersion.
func unframe(raw []byte) (byte, []byte, error) {
	if len(raw) < 1 {
		return 0, nil, shared.NewArtifactVersionUnsupportedError(0)
	}
	version := raw[0]
	if version != CurrentVersion {
		return 0, nil, shared.NewArtifactVersionUnsupportedError(version)
	}
	return version, raw[1:], nil
}

// WriteAttestation and the sibling Write* functions below persist an
// artifact atomically: write to a temporary path in the same directory,
// then rename over the destination. On failure, the temporary file is
// removed so no partial artifact is ever left at the destination path,
// per the writer's "both on disk or neither" contract.
func WriteAttestation(path string, a *Attestation) error {
	body, err := Marshal(a)
	if err != nil {
		return err
	}
	return atomicWrite(path, frame(CurrentVersion, body))
}

// ReadAttestation loads and version-checks an attestation artifact.
func ReadAttestation(path string) (*Attestation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewIOError("failed to read attestation file", err)
	}
	_, body, err := unframe(raw)
	if err != nil {
		return nil, err
	}
	var a Attestation
	if err := Unmarshal(body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// WriteSecrets persists the prover-only witness material.
func WriteSecrets(path string, s *Secrets) error {
	body, err := Marshal(s)
	if err != nil {
		return err
	}
	return atomicWrite(path, frame(CurrentVersion, body))
}

// ReadSecrets loads and version-checks a secrets artifact.
func ReadSecrets(path string) (*Secrets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewIOError("failed to read secrets file", err)
	}
	_, body, err := unframe(raw)
	if err != nil {
		return nil, err
	}
	var s Secrets
	if err := Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// WritePresentation persists a publishable selective-disclosure artifact.
func WritePresentation(path string, p *Presentation) error {
	body, err := Marshal(p)
	if err != nil {
		return err
	}
	return atomicWrite(path, frame(CurrentVersion, body))
}

// ReadPresentation loads and version-checks a presentation artifact.
func ReadPresentation(path string) (*Presentation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewIOError("failed to read presentation file", err)
	}
	_, body, err := unframe(raw)
	if err != nil {
		return nil, err
	}
	var p Presentation
	if err := Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return shared.NewIOError("failed to create temporary artifact file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return shared.NewIOError("failed to write artifact contents", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return shared.NewIOError("failed to close temporary artifact file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return shared.NewIOError("failed to rename artifact into place", err)
	}
	return nil
}
