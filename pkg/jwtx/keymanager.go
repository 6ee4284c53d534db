package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
)

// KeyManagerOptions configure ephemeral key generation.
type KeyManagerOptions struct {
	// Algorithm selects the signing algorithm for all generated keys.
	// Defaults to EdDSA.
	Algorithm string

	// Issuer is stamped into minted tokens and enforced on verification.
	Issuer string

	// Audience values accepted on verification. Empty disables the check.
	Audience []string

	// NumKeys is how many signing keys to generate. Multiple keys let
	// clients exercise kid-based selection. Defaults to 3.
	NumKeys int
}

// KeyManager owns the signing keys for token issuance and the key set for
// verification and JWKS publishing.
type KeyManager struct {
	signers []Signer
	keys    *KeySet
	opts    KeyManagerOptions
}

// NewEphemeralKeyManager generates fresh in-memory keys. Tokens do not
// survive a restart, which is acceptable for short-lived access tokens and
// forces re-authentication after a deploy.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmEdDSA
	}
	if opts.NumKeys <= 0 {
		opts.NumKeys = 3
	}

	km := &KeyManager{keys: NewKeySet(), opts: opts}

	for i := 0; i < opts.NumKeys; i++ {
		kid := NewJTI()

		var (
			signer Signer
			err    error
		)
		switch opts.Algorithm {
		case AlgorithmEdDSA:
			var priv ed25519.PrivateKey
			_, priv, err = ed25519.GenerateKey(rand.Reader)
			if err == nil {
				signer, err = NewEdDSASigner(kid, priv)
			}
		case AlgorithmES256:
			var priv *ecdsa.PrivateKey
			priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			if err == nil {
				signer, err = NewES256Signer(kid, priv)
			}
		default:
			return nil, fmt.Errorf("jwtx: unsupported algorithm %q", opts.Algorithm)
		}
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key: %w", err)
		}

		km.signers = append(km.signers, signer)
		if err := km.keys.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}

// GetSigner returns a random signer, spreading issuance across keys.
func (km *KeyManager) GetSigner() Signer {
	if len(km.signers) == 1 {
		return km.signers[0]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(km.signers))))
	if err != nil {
		return km.signers[0]
	}
	return km.signers[n.Int64()]
}

// Verifier returns a verifier over the manager's key set.
func (km *KeyManager) Verifier() Verifier {
	return NewVerifier(km.keys, VerifierOptions{
		Issuer:   km.opts.Issuer,
		Audience: km.opts.Audience,
	})
}

// KeySet exposes the underlying key set for JWKS publishing.
func (km *KeyManager) KeySet() *KeySet {
	return km.keys
}

// Issuer returns the configured issuer.
func (km *KeyManager) Issuer() string {
	return km.opts.Issuer
}
