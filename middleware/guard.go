package middleware

import (
	"context"
	"net/http"
	"net/url"

	goSession "github.com/MrEthical07/goSession"
)

type sessionContextKey struct{}

// SessionFromContext returns the result stored by RequireSession.
func SessionFromContext(ctx context.Context) (*goSession.CheckResult, bool) {
	res, ok := ctx.Value(sessionContextKey{}).(*goSession.CheckResult)
	return res, ok
}

// RequireSession runs Engine.CheckAuth against the request cookies. Authenticated
// requests continue with the result in their context; everything else is redirected
// (303) to the login path with the original URI in the next parameter.
//
// Renewed or cleared cookies are written to the response before next runs.
func RequireSession(engine *goSession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			jar := goSession.NewHTTPCookieJar(w, r)
			res := engine.CheckAuth(r.Context(), jar)
			if !res.Authenticated {
				http.Redirect(w, r, loginURL(engine.Config().Guard, r), http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, &res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated users without role. An empty role matches
// nobody. It must run behind RequireSession.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := SessionFromContext(r.Context())
			if !ok || res.User == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !res.User.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func loginURL(cfg goSession.GuardConfig, r *http.Request) string {
	target := cfg.LoginPath
	if cfg.NextParam == "" {
		return target
	}
	q := url.Values{}
	q.Set(cfg.NextParam, r.URL.RequestURI())
	return target + "?" + q.Encode()
}
