package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/stockfolio/backend/src/config"
	"github.com/username/stockfolio/backend/src/logger"
)

const csrfCookieName = "_csrf_token"

// GetCSRFToken issues a fresh double-submit token: set as an HttpOnly cookie
// and echoed in the header/body for the client to send back on writes.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := generateSignedToken(config.Cfg.CSRFAuthKey)
	if err != nil {
		logger.L.Error("failed to generate CSRF token", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		MaxAge:   3600,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-CSRF-Token", token)
	json.NewEncoder(w).Encode(map[string]string{
		"csrfToken": token,
	})
}

// generateSignedToken returns "nonce.mac" where mac is an HMAC-SHA256 of the
// nonce under the configured auth key.
func generateSignedToken(key []byte) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(nonce)
	return base64.RawURLEncoding.EncodeToString(nonce) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func verifySignedToken(key []byte, token string) bool {
	noncePart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	nonce, err := base64.RawURLEncoding.DecodeString(noncePart)
	if err != nil {
		return false
	}
	got, err := base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(nonce)
	return hmac.Equal(got, mac.Sum(nil))
}

// CSRFMiddleware validates the double-submit pair: the X-CSRF-Token header
// must match the CSRF cookie and carry a valid signature. Preflight and safe
// reads pass through.
func CSRFMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)
			if headerToken != "" && err == nil && headerToken == cookie.Value &&
				verifySignedToken(config.Cfg.CSRFAuthKey, headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.L.Warn("CSRF token validation failed",
				"method", r.Method, "path", r.URL.Path, "origin", r.Header.Get("Origin"))
			http.Error(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}
