package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type es256Signer struct {
	kid  string
	priv *ecdsa.PrivateKey
}

// NewES256Signer wraps an ECDSA P-256 private key as a Signer.
func NewES256Signer(kid string, priv *ecdsa.PrivateKey) (Signer, error) {
	if priv == nil || priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("jwtx: ES256 requires a P-256 key")
	}
	return &es256Signer{kid: kid, priv: priv}, nil
}

func (s *es256Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.kid

	signed, err := token.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

func (s *es256Signer) KID() string { return s.kid }

func (s *es256Signer) Algorithm() string { return AlgorithmES256 }

func (s *es256Signer) PublicJWK() JWK {
	return NewES256JWK(s.kid, "sig", AlgorithmES256, &s.priv.PublicKey)
}
