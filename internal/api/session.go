package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
)

const (
	sessionCookieName   = "sessionid"
	sessionCookieMaxAge = 14 * 24 * 60 * 60

	csrfCookieName   = "csrftoken"
	csrfHeaderName   = "X-CSRFToken"
	csrfCookieMaxAge = 52 * 7 * 24 * 60 * 60
	csrfTokenBytes   = 32
)

// sessionMiddleware makes sure every client carries a session identifier and
// exposes it through SessionIDFromContext.
func sessionMiddleware(secure bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(sessionCookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   sessionCookieMaxAge,
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDContextKey, id)))
	})
}

// csrfMiddleware issues a token cookie and rejects unsafe requests whose
// X-CSRFToken header does not echo it.
func csrfMiddleware(secure bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(csrfCookieName); err == nil && validCSRFToken(c.Value) {
			token = c.Value
		}

		if !safeMethod(r.Method) {
			sent := r.Header.Get(csrfHeaderName)
			if token == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
				writeError(w, http.StatusForbidden, "CSRF verification failed",
					"missing or incorrect CSRF token",
					"send the csrftoken cookie value in the X-CSRFToken header")
				return
			}
		}

		if token == "" {
			token = newCSRFToken()
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   csrfCookieMaxAge,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r)
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func newCSRFToken() string {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return generateRequestID() + generateRequestID()
	}
	return hex.EncodeToString(buf)
}

func validCSRFToken(v string) bool {
	if len(v) != csrfTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(v)
	return err == nil
}
