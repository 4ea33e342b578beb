package middleware

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/session"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal a guard attached to ctx.
func PrincipalFromContext(ctx context.Context) (*meowauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*meowauth.Principal)
	return p, ok && p != nil
}

// WithPrincipal attaches p to ctx the way a guard does.
func WithPrincipal(ctx context.Context, p *meowauth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard returns middleware that authorizes each request against req using
// the credential found in sources. The client address is recorded on the
// context so per-IP rate policies see it.
func Guard(engine *meowauth.Engine, req meowauth.Requirement, sources ...Source) func(http.Handler) http.Handler {
	sources = slices.Clone(sources)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, meowauth.ErrEngineNotReady)
				return
			}
			token, ok := Extract(r, sources...)
			if !ok {
				WriteError(w, meowauth.ErrInvalidToken)
				return
			}

			ctx := meowauth.WithClientIP(r.Context(), ClientIP(r))
			p, err := engine.Authorize(ctx, token, req)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
		})
	}
}

// RequireFoundation accepts only foundation sessions.
func RequireFoundation(engine *meowauth.Engine, sources ...Source) func(http.Handler) http.Handler {
	return Guard(engine, meowauth.Requirement{Kinds: []session.Kind{session.KindFoundation}}, sources...)
}

// RequireScopes accepts foundation sessions and oauth sessions that hold
// every scope listed.
func RequireScopes(engine *meowauth.Engine, scopes ...string) func(http.Handler) http.Handler {
	return Guard(engine, meowauth.Requirement{Scopes: slices.Clone(scopes)})
}

// ClientIP returns the remote host of r without its port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
