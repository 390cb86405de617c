package auth

import (
	"context"
	"fmt"
)

// Service validates access tokens issued by the external
// authentication system. Login, refresh, and session revocation live
// there; this side only needs a verified identity per request.
type Service struct {
	jwt *JWTManager
}

func NewService(jwt *JWTManager) *Service {
	return &Service{jwt: jwt}
}

func (s *Service) ValidateAccessToken(_ context.Context, accessToken string) (AccessClaims, error) {
	if s.jwt == nil {
		return AccessClaims{}, fmt.Errorf("jwt manager is nil")
	}
	return s.jwt.ParseAccessToken(accessToken)
}
