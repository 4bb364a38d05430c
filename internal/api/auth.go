package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/AaronLay10/LockStep/internal/config"
)

// authenticate checks basic auth against the operator credentials. With
// no credentials configured every request passes.
func authenticate(creds config.Credentials, r *http.Request) bool {
	if !creds.Set() {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return secureCompare(user, creds.User) && secureCompare(pass, creds.Pass)
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="LockStep"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireOperator wraps an operator-only handler.
func RequireOperator(creds config.Credentials, handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !authenticate(creds, r) {
			requireAuth(w)
			return
		}
		handler(w, r, ps)
	}
}
