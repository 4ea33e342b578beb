package main

import (
	"time"

	"github.com/MrEthical07/meowauth"
)

type tokenView struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	Scopes           []string  `json:"scopes,omitempty"`
}

func viewTokens(t *meowauth.TokenPair) *tokenView {
	if t == nil {
		return nil
	}
	return &tokenView{
		SessionID:        t.SessionID,
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
		Scopes:           t.Scopes,
	}
}

type loginView struct {
	TOTPRequired bool       `json:"totp_required"`
	PendingToken string     `json:"pending_token,omitempty"`
	Tokens       *tokenView `json:"tokens,omitempty"`
}

func viewLogin(res *meowauth.LoginResult) loginView {
	return loginView{
		TOTPRequired: res.TOTPRequired,
		PendingToken: res.PendingToken,
		Tokens:       viewTokens(res.Tokens),
	}
}

type accountView struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email,omitempty"`
	EmailVerified   bool      `json:"email_verified"`
	TOTPEnabled     bool      `json:"totp_enabled"`
	PendingApproval bool      `json:"pending_approval"`
	CreatedAt       time.Time `json:"created_at"`
}

func viewAccount(a meowauth.Account) accountView {
	v := accountView{
		ID:              a.ID,
		Username:        a.Username,
		Email:           a.Email(),
		PendingApproval: a.PendingApproval,
		CreatedAt:       a.CreatedAt,
	}
	if m, ok := a.Method(meowauth.MethodEmail); ok {
		v.EmailVerified = m.Scheme == meowauth.EmailVerified
	}
	v.TOTPEnabled = a.TOTPEnabled()
	return v
}

type sessionView struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	AppID            string    `json:"app_id,omitempty"`
	Scopes           []string  `json:"scopes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	Current          bool      `json:"current"`
}

func viewSession(s meowauth.SessionInfo) sessionView {
	return sessionView{
		ID:               s.ID,
		Kind:             string(s.Kind),
		AppID:            s.AppID,
		Scopes:           s.Scopes,
		CreatedAt:        s.CreatedAt,
		AccessExpiresAt:  s.AccessExpiresAt,
		RefreshExpiresAt: s.RefreshExpiresAt,
		Current:          s.Current,
	}
}

type appView struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	FirstParty       bool      `json:"first_party"`
	AllowedRedirects []string  `json:"allowed_redirects"`
	Bans             []string  `json:"bans,omitempty"`
	AllowedScopes    []string  `json:"allowed_scopes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	Secret           string    `json:"secret,omitempty"`
}

func viewApp(a meowauth.App) appView {
	return appView{
		ID:               a.ID,
		OwnerID:          a.OwnerID,
		Name:             a.Name,
		Description:      a.Description,
		FirstParty:       a.FirstParty,
		AllowedRedirects: a.AllowedRedirects,
		Bans:             a.Bans,
		AllowedScopes:    a.AllowedScopes,
		CreatedAt:        a.CreatedAt,
	}
}

type appInfoView struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	FirstParty  bool   `json:"first_party"`
}

func viewAppInfo(a meowauth.AppInfo) appInfoView {
	return appInfoView{ID: a.ID, OwnerID: a.OwnerID, Name: a.Name, Description: a.Description, FirstParty: a.FirstParty}
}

type previewView struct {
	App             appInfoView `json:"app"`
	Scopes          []string    `json:"scopes"`
	Authorized      bool        `json:"authorized"`
	Banned          bool        `json:"banned"`
	RedirectAllowed bool        `json:"redirect_allowed"`
	Ticket          string      `json:"ticket,omitempty"`
	ExpiresAt       time.Time   `json:"expires_at,omitempty"`
}

type codeView struct {
	Code      string    `json:"code"`
	Redirect  string    `json:"redirect"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

type grantView struct {
	AppID     string    `json:"app_id"`
	Scopes    []string  `json:"scopes"`
	UpdatedAt time.Time `json:"updated_at"`
}
