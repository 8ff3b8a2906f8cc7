// ABOUTME: HTTP middleware resolving the calling device from a bearer JWT
// ABOUTME: With no verifier configured every request is the anonymous local device

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// DeviceMiddleware attaches the calling Device to the request context.
// A nil verifier disables auth.
func DeviceMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				ctx := WithDevice(r.Context(), &Device{ID: LocalDevice, Anonymous: true})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, errMsg)
				return
			}

			deviceID, err := verifier.Verify(token)
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					writeAuthError(w, "token expired")
					return
				}
				writeAuthError(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), &Device{ID: deviceID})))
		})
	}
}
