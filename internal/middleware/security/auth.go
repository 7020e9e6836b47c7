package security

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

type ctxKey struct{}

// HeaderOwnerID carries the authenticated owner, set by the upstream auth
// layer after it validated the user session.
const HeaderOwnerID = "X-Owner-ID"

// Auth checks the shared bearer token and resolves the owner of the request.
// An empty token disables the bearer check, for local development.
type Auth struct {
	token  []byte
	onFail func(w http.ResponseWriter, r *http.Request, status int, msg string)
}

func NewAuth(token string, onFail func(w http.ResponseWriter, r *http.Request, status int, msg string)) *Auth {
	if onFail == nil {
		onFail = func(w http.ResponseWriter, _ *http.Request, status int, msg string) {
			http.Error(w, msg, status)
		}
	}
	return &Auth{token: []byte(token), onFail: onFail}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.token) > 0 {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), a.token) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="lana"`)
				a.onFail(w, r, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
		}

		owner, err := strconv.ParseInt(r.Header.Get(HeaderOwnerID), 10, 64)
		if err != nil || owner <= 0 {
			a.onFail(w, r, http.StatusUnauthorized, "missing or invalid "+HeaderOwnerID+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

func WithOwner(ctx context.Context, owner int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

// OwnerFromContext returns the authenticated owner, or false outside an
// authenticated request.
func OwnerFromContext(ctx context.Context) (int64, bool) {
	owner, ok := ctx.Value(ctxKey{}).(int64)
	return owner, ok
}
