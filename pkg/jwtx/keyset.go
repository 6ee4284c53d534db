package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"
	"sync"
)

// KeySet holds verification keys indexed by kid. It is safe for concurrent
// use; keys are added during startup or on JWKS refresh.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]keyEntry
}

type keyEntry struct {
	alg string
	pub crypto.PublicKey
	jwk JWK
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]keyEntry)}
}

// AddSigner registers a signer's public half for verification and publishing.
func (ks *KeySet) AddSigner(s Signer) error {
	return ks.AddJWK(s.PublicJWK())
}

// AddJWK parses and registers a public JWK.
func (ks *KeySet) AddJWK(jwk JWK) error {
	pub, err := parseJWK(jwk)
	if err != nil {
		return err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys[jwk.Kid] = keyEntry{alg: jwk.Alg, pub: pub, jwk: jwk}
	return nil
}

// Get returns the public key and algorithm registered under kid.
func (ks *KeySet) Get(kid string) (crypto.PublicKey, string, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	entry, ok := ks.keys[kid]
	if !ok {
		return nil, "", ErrUnknownKID
	}
	return entry.pub, entry.alg, nil
}

// PublicJWKS returns all registered keys as a JWKS document.
func (ks *KeySet) PublicJWKS() JWKS {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	out := JWKS{Keys: make([]JWK, 0, len(ks.keys))}
	for _, entry := range ks.keys {
		out.Keys = append(out.Keys, entry.jwk)
	}
	return out
}

// IsReady reports whether at least one key is registered.
func (ks *KeySet) IsReady() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys) > 0
}

func parseJWK(jwk JWK) (crypto.PublicKey, error) {
	switch jwk.Kty {
	case "OKP":
		if jwk.Crv != "Ed25519" {
			return nil, fmt.Errorf("jwtx: unsupported OKP curve %q", jwk.Crv)
		}
		raw, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode x: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("jwtx: bad ed25519 public key length %d", len(raw))
		}
		return ed25519.PublicKey(raw), nil

	case "EC":
		if jwk.Crv != "P-256" {
			return nil, fmt.Errorf("jwtx: unsupported EC curve %q", jwk.Crv)
		}
		xRaw, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode x: %w", err)
		}
		yRaw, err := base64.RawURLEncoding.DecodeString(jwk.Y)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode y: %w", err)
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xRaw),
			Y:     new(big.Int).SetBytes(yRaw),
		}, nil

	default:
		return nil, fmt.Errorf("jwtx: unsupported key type %q", jwk.Kty)
	}
}
