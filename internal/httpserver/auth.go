package httpserver

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// verifyBearerJWT validates an HS256 bearer token against secret,
// simplified from reasoning-graph/internal/auth's mTLS+JWKS-backed
// Verifier: this domain has no Kernel peer identity or certificate
// authority, so a single shared HMAC secret is the whole trust model.
func verifyBearerJWT(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	return err == nil && token.Valid
}
