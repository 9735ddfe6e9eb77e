// ABOUTME: HTTP middleware gating the chat surface behind a signed-in user
// ABOUTME: Session cookie for the browser, bearer token for API clients

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SessionCookie is the name of the browser session cookie
const SessionCookie = "counsel_session"

// extractToken pulls the session token from the request: the session
// cookie first, then an Authorization bearer header for non-browser
// clients. Returns the empty string if neither is present.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Middleware verifies the session token on every request and attaches
// the user identity to the context. Unauthenticated page loads are
// redirected to /login; unauthenticated API calls get a 401. Nothing
// behind this middleware renders for a signed-out visitor.
func Middleware(verifier TokenVerifier, registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				reject(w, r, "not signed in")
				return
			}

			email, err := verifier.Verify(token)
			if err != nil {
				reject(w, r, "invalid session")
				return
			}

			user := registry.Lookup(email)
			if user == nil {
				// Token from a user since removed from the config
				reject(w, r, "unknown user")
				return
			}

			id := &Identity{Email: user.Email, Name: user.Name}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// reject ends an unauthenticated request: API callers get JSON, page
// loads get a redirect to the login form.
func reject(w http.ResponseWriter, r *http.Request, msg string) {
	if isAPIRequest(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"` + msg + `"}`))
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// RequireAgentToken gates the agent ingest endpoint on a shared secret
// carried in the X-Agent-Token header. Separate from user sessions:
// agents are not users.
func RequireAgentToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-Agent-Token"))
			if len(expected) == 0 || subtle.ConstantTimeCompare(expected, got) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid agent token"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie writes the session cookie on a successful login
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on sign-out
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
