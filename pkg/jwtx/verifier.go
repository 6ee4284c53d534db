package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates compact serialized JWTs against a key set.
type Verifier interface {
	// Verify parses and validates a token, checking signature, expiry,
	// issuer and token use. Returns the claims on success.
	Verify(token, expectedUse string) (*Claims, error)
}

// VerifierOptions configure claim validation beyond the signature.
type VerifierOptions struct {
	Issuer   string
	Audience []string
}

type keySetVerifier struct {
	keys *KeySet
	opts VerifierOptions
}

// NewVerifier returns a Verifier backed by the given key set.
func NewVerifier(keys *KeySet, opts VerifierOptions) Verifier {
	return &keySetVerifier{keys: keys, opts: opts}
}

func (v *keySetVerifier) Verify(token, expectedUse string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, v.keyfunc,
		jwt.WithValidMethods([]string{AlgorithmEdDSA, AlgorithmES256}),
		// Expiry and nbf are validated below so we can map to our
		// sentinel errors.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, mapParseError(err)
	}
	if !parsed.Valid {
		return nil, ErrSignature
	}

	if err := claims.ValidateExpiry(); err != nil {
		return nil, err
	}
	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return nil, err
	}
	if err := claims.ValidateTokenUse(expectedUse); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *keySetVerifier) keyfunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, ErrUnknownKID
	}

	pub, alg, err := v.keys.Get(kid)
	if err != nil {
		return nil, err
	}
	if token.Method.Alg() != alg {
		return nil, fmt.Errorf("%w: token %s, key %s", ErrAlgorithm, token.Method.Alg(), alg)
	}
	return pub, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, ErrAlgorithm):
		return ErrAlgorithm
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
