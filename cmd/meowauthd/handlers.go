package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/middleware"
)

/*
====================================
ACCOUNT
====================================
*/

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	acct, err := s.engine.Register(r.Context(), meowauth.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewAccount(*acct))
}

func (s *server) confirmEmail(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.Extract(r, middleware.BodyField("token"), middleware.Query("token"))
	if err := s.engine.ConfirmEmail(r.Context(), token); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	sess, err := s.engine.CurrentSession(r.Context(), p)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": viewAccount(p.Account),
		"session": viewSession(*sess),
	})
}

func (s *server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.ChangePassword(r.Context(), principal(r), req.Current, req.New); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) requestReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RequestPasswordReset(r.Context(), mux.Vars(r)["username"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

/*
====================================
LOGIN
====================================
*/

func (s *server) writeLogin(w http.ResponseWriter, res *meowauth.LoginResult, err error) {
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewLogin(res))
}

func (s *server) loginPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	res, err := s.engine.LoginPassword(r.Context(), mux.Vars(r)["username"], req.Password)
	s.writeLogin(w, res, err)
}

func (s *server) loginTOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PendingToken string `json:"pending_token"`
		Code         string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	res, err := s.engine.CompleteTOTP(r.Context(), req.PendingToken, req.Code)
	s.writeLogin(w, res, err)
}

func (s *server) requestEmailCode(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RequestEmailLogin(r.Context(), mux.Vars(r)["username"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) loginEmailCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	res, err := s.engine.LoginWithEmailCode(r.Context(), mux.Vars(r)["username"], req.Code)
	s.writeLogin(w, res, err)
}

func (s *server) beginDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	dl, err := s.engine.BeginDeviceLogin(r.Context(), req.Username)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":       dl.Code,
		"token":      dl.Token,
		"expires_at": dl.ExpiresAt,
	})
}

func (s *server) completeDevice(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.Extract(r, middleware.BodyField("token"), middleware.Header())
	res, err := s.engine.CompleteDeviceLogin(r.Context(), token)
	s.writeLogin(w, res, err)
}

func (s *server) approveDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.ApproveDevice(r.Context(), principal(r), req.Code); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.Extract(r, middleware.BodyField("refresh_token"), middleware.Header())
	pair, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTokens(pair))
}

/*
====================================
SESSIONS
====================================
*/

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), principal(r)); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.ListSessions(r.Context(), principal(r).AccountID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		v := viewSession(sess)
		v.Current = sess.ID == principal(r).SessionID
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) logoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.LogoutAll(r.Context(), principal(r).AccountID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

/*
====================================
TOTP
====================================
*/

func (s *server) enableTOTP(w http.ResponseWriter, r *http.Request) {
	enr, err := s.engine.EnableTOTP(r.Context(), principal(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":     enr.Secret,
		"uri":        enr.URI,
		"token":      enr.Token,
		"expires_at": enr.ExpiresAt,
	})
}

func (s *server) confirmTOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Code  string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	codes, err := s.engine.ConfirmTOTP(r.Context(), principal(r), req.Token, req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"recovery_codes": codes})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *server) disableTOTP(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.DisableTOTP(r.Context(), principal(r), req.Code); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) regenerateRecovery(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	codes, err := s.engine.RegenerateRecoveryCodes(r.Context(), principal(r), req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"recovery_codes": codes})
}

/*
====================================
OAUTH
====================================
*/

func splitScopes(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
}

func (s *server) prepareAuthorization(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	preview, err := s.engine.PrepareAuthorization(r.Context(), principal(r), q.Get("app"), splitScopes(q.Get("scopes")), q.Get("redirect"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewView{
		App:             viewAppInfo(preview.App),
		Scopes:          preview.Scopes,
		Authorized:      preview.Authorized,
		Banned:          preview.Banned,
		RedirectAllowed: preview.RedirectAllowed,
		Ticket:          preview.Ticket,
		ExpiresAt:       preview.ExpiresAt,
	})
}

func (s *server) approveAuthorization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticket string `json:"ticket"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	code, err := s.engine.ApproveAuthorization(r.Context(), principal(r), req.Ticket)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codeView{Code: code.Code, Redirect: code.Redirect, Scopes: code.Scopes, ExpiresAt: code.ExpiresAt})
}

func (s *server) exchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code   string `json:"code"`
		AppID  string `json:"app_id"`
		Secret string `json:"secret"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	pair, err := s.engine.Exchange(r.Context(), meowauth.ExchangeRequest{Code: req.Code, AppID: req.AppID, Secret: req.Secret})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTokens(pair))
}

func (s *server) listAuthorizations(w http.ResponseWriter, r *http.Request) {
	grants, err := s.engine.ListAuthorizations(r.Context(), principal(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]grantView, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantView{AppID: g.AppID, Scopes: g.Scopes, UpdatedAt: g.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) revokeAuthorization(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.RevokeAppAuthorization(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}
