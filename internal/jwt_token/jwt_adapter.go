package jwttoken

import (
	authmw "entrypass/pkg/platform/middleware/auth"
)

// MiddlewareAdapter lets the auth middleware verify tokens without importing
// this package.
type MiddlewareAdapter struct {
	verifier *Verifier
}

func NewMiddlewareAdapter(v *Verifier) *MiddlewareAdapter {
	return &MiddlewareAdapter{verifier: v}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.verifier.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{UserID: userID.String(), JTI: claims.ID}, nil
}
