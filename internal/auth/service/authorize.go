package service

import (
	"context"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
)

// AuthorizeService answers "may the holder of this access token perform an
// operation that needs at least this role". Verification is offline; the
// database is not consulted.
type AuthorizeService struct {
	Verifier jwtx.Verifier
}

// Authorize verifies the access token and checks its role against min.
// Returns the claims so callers can use the identity.
func (s *AuthorizeService) Authorize(ctx context.Context, accessToken string, min domain.Role) (*jwtx.Claims, error) {
	claims, err := s.Verifier.Verify(accessToken, jwtx.TokenUseAccess)
	if err != nil {
		return nil, ErrInvalidToken
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !role.AtLeast(min) {
		return nil, ErrForbidden
	}

	return claims, nil
}
