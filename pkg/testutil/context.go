package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	id "entrypass/pkg/domain"
	"entrypass/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, as the auth middleware
// would. Invalid IDs are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsedUserID))
	}
	return req
}

// WithDevice adds a device label to the request context.
func WithDevice(req *http.Request, device string) *http.Request {
	return req.WithContext(requestcontext.WithDevice(req.Context(), device))
}

// BearerToken signs an HS256 token for userID that the HTTP auth middleware accepts.
func BearerToken(t *testing.T, signingKey string, userID id.UserID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	require.NoError(t, err, "failed to sign token")
	return "Bearer " + token
}
