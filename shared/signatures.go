package shared

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NotaryKeyPair is the Notary's secp256k1 signing key. Attestations are
// signed the same way libclient signs its transcripts: an Ethereum-style
// message signature over the canonical encoded body, recoverable to an
// address that acts as the key id.
type NotaryKeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// GenerateNotaryKeyPair creates a new secp256k1 signing key for a Notary.
func GenerateNotaryKeyPair() (*NotaryKeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notary key pair: %v", err)
	}
	return &NotaryKeyPair{PrivateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// Sign produces a 65-byte recoverable signature over data.
func (kp *NotaryKeyPair) Sign(data []byte) ([]byte, error) {
	hash := accounts.TextHash(data)
	sig, err := crypto.Sign(hash, kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign attestation body: %v", err)
	}
	return sig, nil
}

// KeyID returns the address-form identifier for this key pair, used as
// VerificationResult.NotaryPublicKeyID.
func (kp *NotaryKeyPair) KeyID() common.Address {
	return crypto.PubkeyToAddress(*kp.PublicKey)
}

// VerifyNotarySignature verifies a Notary signature against an expected key
// id (a trusted Notary public key, identified by its derived address).
func VerifyNotarySignature(data []byte, signature []byte, expectedKeyID common.Address) error {
	if len(signature) != 65 {
		return fmt.Errorf("invalid notary signature length: expected 65 bytes, got %d", len(signature))
	}

	hash := accounts.TextHash(data)

	recoveredPubKey, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return fmt.Errorf("failed to recover notary public key from signature: %v", err)
	}

	recoveredKeyID := crypto.PubkeyToAddress(*recoveredPubKey)
	if recoveredKeyID != expectedKeyID {
		return fmt.Errorf("notary signature does not match any trusted key: got %s", recoveredKeyID.Hex())
	}

	return nil
}

// RecoverNotaryKeyID recovers the key id embedded in a signature without
// checking it against a known set; callers use this to look up whether the
// recovered id is present in their trusted key set.
func RecoverNotaryKeyID(data []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid notary signature length: expected 65 bytes, got %d", len(signature))
	}
	hash := accounts.TextHash(data)
	recoveredPubKey, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover notary public key from signature: %v", err)
	}
	return crypto.PubkeyToAddress(*recoveredPubKey), nil
}
