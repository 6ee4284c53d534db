package jwtx

// Supported signing algorithms.
const (
	AlgorithmEdDSA = "EdDSA"
	AlgorithmES256 = "ES256"
)

// Signer mints compact serialized JWTs.
type Signer interface {
	// Sign serializes and signs the given claims.
	Sign(claims Claims) (string, error)

	// KID returns the key id placed in the token header.
	KID() string

	// Algorithm returns the JOSE algorithm name, e.g. "EdDSA".
	Algorithm() string

	// PublicJWK returns the public half as a JWK for publishing.
	PublicJWK() JWK
}
