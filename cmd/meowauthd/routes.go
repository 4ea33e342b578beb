package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/metrics/export/prometheus"
	"github.com/MrEthical07/meowauth/middleware"
)

const maxBody = 64 << 10

type server struct {
	engine *meowauth.Engine
	logger *slog.Logger
	outbox *outbox // dev mode only
}

func newRouter(s *server) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.clientIP)

	foundation := middleware.RequireFoundation(s.engine)
	guarded := func(h http.HandlerFunc) http.Handler { return foundation(h) }

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", prometheus.New(s.engine).Handler()).Methods(http.MethodGet)

	v0 := r.PathPrefix("/v0").Subrouter()
	v0.HandleFunc("/register", s.register).Methods(http.MethodPost)
	v0.HandleFunc("/email/confirm", s.confirmEmail).Methods(http.MethodPost)
	v0.HandleFunc("/login/totp", s.loginTOTP).Methods(http.MethodPost)
	v0.HandleFunc("/login/device", s.beginDevice).Methods(http.MethodPost)
	v0.HandleFunc("/login/device/complete", s.completeDevice).Methods(http.MethodPost)
	v0.HandleFunc("/login/{username}/password", s.loginPassword).Methods(http.MethodPost)
	v0.HandleFunc("/login/{username}/email", s.requestEmailCode).Methods(http.MethodPost)
	v0.HandleFunc("/login/{username}/email/verify", s.loginEmailCode).Methods(http.MethodPost)
	v0.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)
	v0.HandleFunc("/reset/password/confirm", s.confirmReset).Methods(http.MethodPost)
	v0.HandleFunc("/reset/password/{username}", s.requestReset).Methods(http.MethodPost)
	v0.HandleFunc("/oauth/exchange", s.exchange).Methods(http.MethodPost)
	v0.HandleFunc("/apps/{id}/info", s.appInfo).Methods(http.MethodGet)

	v0.Handle("/me", middleware.RequireScopes(s.engine, "profile:read")(http.HandlerFunc(s.me))).Methods(http.MethodGet)
	v0.Handle("/logout", middleware.Guard(s.engine, meowauth.Requirement{})(http.HandlerFunc(s.logout))).Methods(http.MethodPost)

	me := v0.PathPrefix("/me").Subrouter()
	me.Handle("/password", guarded(s.changePassword)).Methods(http.MethodPost)
	me.Handle("/sessions", guarded(s.listSessions)).Methods(http.MethodGet)
	me.Handle("/sessions", guarded(s.logoutAll)).Methods(http.MethodDelete)
	me.Handle("/devices/approve", guarded(s.approveDevice)).Methods(http.MethodPost)
	me.Handle("/totp", guarded(s.enableTOTP)).Methods(http.MethodPost)
	me.Handle("/totp", guarded(s.disableTOTP)).Methods(http.MethodDelete)
	me.Handle("/totp/confirm", guarded(s.confirmTOTP)).Methods(http.MethodPost)
	me.Handle("/totp/recovery", guarded(s.regenerateRecovery)).Methods(http.MethodPost)
	me.Handle("/authorizations", guarded(s.listAuthorizations)).Methods(http.MethodGet)
	me.Handle("/authorizations/{id}", guarded(s.revokeAuthorization)).Methods(http.MethodDelete)

	oauth := v0.PathPrefix("/oauth").Subrouter()
	oauth.Handle("/authorize", guarded(s.prepareAuthorization)).Methods(http.MethodGet)
	oauth.Handle("/authorize", guarded(s.approveAuthorization)).Methods(http.MethodPost)

	apps := v0.PathPrefix("/apps").Subrouter()
	apps.Handle("", guarded(s.createApp)).Methods(http.MethodPost)
	apps.Handle("", guarded(s.listApps)).Methods(http.MethodGet)
	apps.Handle("/{id}", guarded(s.getApp)).Methods(http.MethodGet)
	apps.Handle("/{id}", guarded(s.updateApp)).Methods(http.MethodPatch)
	apps.Handle("/{id}", guarded(s.deleteApp)).Methods(http.MethodDelete)
	apps.Handle("/{id}/secret", guarded(s.rotateSecret)).Methods(http.MethodPost)
	apps.Handle("/{id}/redirects", guarded(s.addRedirect)).Methods(http.MethodPost)
	apps.Handle("/{id}/redirects", guarded(s.removeRedirect)).Methods(http.MethodDelete)
	apps.Handle("/{id}/bans/{account}", guarded(s.banFromApp)).Methods(http.MethodPut)
	apps.Handle("/{id}/bans/{account}", guarded(s.unbanFromApp)).Methods(http.MethodDelete)
	apps.Handle("/{id}/transfer", guarded(s.transferApp)).Methods(http.MethodPost)
	apps.Handle("/{id}/sessions", guarded(s.destroyAppSessions)).Methods(http.MethodDelete)

	if s.outbox != nil {
		r.HandleFunc("/dev/outbox/{username}", s.devOutbox).Methods(http.MethodGet)
	}
	return r
}

// clientIP records the remote host for per-IP rate policies on routes that
// are not behind a guard.
func (s *server) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := meowauth.WithClientIP(r.Context(), middleware.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return meowauth.ErrMalformedInput
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func principal(r *http.Request) *meowauth.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) devOutbox(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.outbox.Messages(mux.Vars(r)["username"]))
}
