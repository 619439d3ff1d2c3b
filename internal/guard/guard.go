// Package guard decides whether a protected console view may be shown.
package guard

import (
	"net/http"
	"strings"

	"github.com/patric-chuzhbe/urlify/internal/logger"
)

const LoginRoute = "/login"

type authChecker interface {
	IsAuthenticated() bool
}

type Guard struct {
	sessions authChecker
}

func New(sessions authChecker) *Guard {
	return &Guard{sessions: sessions}
}

// Allow is evaluated at the moment of the call; the answer is never cached.
func (g *Guard) Allow() bool {
	return g.sessions.IsAuthenticated()
}

// Middleware runs the guard before every protected request.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Allow() {
			next.ServeHTTP(w, r)
			return
		}

		logger.Log.Debugln("guard rejected", "method", r.Method, "uri", r.RequestURI)
		SendToLogin(w, r)
	})
}

// SendToLogin answers a request that needs a session it does not have. JSON clients
// get a 401, browsers are sent to the login page: 307 for GET and HEAD, 303 otherwise
// so a rejected form post is followed by a GET.
func SendToLogin(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status := http.StatusTemporaryRedirect
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, LoginRoute, status)
}
