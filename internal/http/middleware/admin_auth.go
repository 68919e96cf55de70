package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const operatorClaimsKey contextKey = "operatorClaims"

// AdminJWT admits dashboard operators carrying an HS256 token issued by the
// clinic's identity provider. Browsers cannot set headers on websocket
// handshakes, so upgrade requests may pass the token as access_token.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, `{"error":"admin auth disabled"}`, http.StatusUnauthorized)
				return
			}
			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
				return
			}
			claims := jwt.RegisteredClaims{}
			token, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), operatorClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

// OperatorFromContext returns the authenticated operator id, if any.
func OperatorFromContext(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(operatorClaimsKey).(jwt.RegisteredClaims)
	if !ok {
		return "", false
	}
	return claims.Subject, true
}
