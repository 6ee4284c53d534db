package jwtx

import "errors"

var (
	// ErrMalformed indicates the token could not be parsed at all.
	ErrMalformed = errors.New("jwtx: malformed token")

	// ErrSignature indicates the signature did not verify under any
	// known key.
	ErrSignature = errors.New("jwtx: invalid signature")

	// ErrExpired indicates the "exp" claim is in the past.
	ErrExpired = errors.New("jwtx: token expired")

	// ErrNotYetValid indicates the "nbf" claim is in the future.
	ErrNotYetValid = errors.New("jwtx: token not yet valid")

	// ErrIssuer indicates the "iss" claim did not match.
	ErrIssuer = errors.New("jwtx: unexpected issuer")

	// ErrAudience indicates none of the expected audiences were present.
	ErrAudience = errors.New("jwtx: unexpected audience")

	// ErrTokenUse indicates the "token_use" claim did not match the
	// expected purpose.
	ErrTokenUse = errors.New("jwtx: unexpected token use")

	// ErrUnknownKID indicates the token header referenced a key id the
	// verifier does not hold.
	ErrUnknownKID = errors.New("jwtx: unknown key id")

	// ErrAlgorithm indicates the token was signed with an algorithm the
	// verifier does not accept.
	ErrAlgorithm = errors.New("jwtx: unexpected signing algorithm")
)
