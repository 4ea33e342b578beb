package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/middleware"
)

func (s *server) createApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Redirects   []string `json:"redirects"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	created, err := s.engine.CreateApp(r.Context(), principal(r), meowauth.CreateAppRequest{
		Name:        req.Name,
		Description: req.Description,
		Redirects:   req.Redirects,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	v := viewApp(created.App)
	v.Secret = created.Secret
	writeJSON(w, http.StatusCreated, v)
}

func (s *server) listApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.engine.ListApps(r.Context(), principal(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]appView, 0, len(apps))
	for _, app := range apps {
		out = append(out, viewApp(app))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) getApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.engine.GetApp(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewApp(*app))
}

func (s *server) appInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.AppInfo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAppInfo(*info))
}

func (s *server) updateApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          *string  `json:"name"`
		Description   *string  `json:"description"`
		AllowedScopes []string `json:"allowed_scopes"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	app, err := s.engine.UpdateApp(r.Context(), principal(r), mux.Vars(r)["id"], meowauth.UpdateAppRequest{
		Name:          req.Name,
		Description:   req.Description,
		AllowedScopes: req.AllowedScopes,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewApp(*app))
}

func (s *server) deleteApp(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteApp(r.Context(), principal(r), mux.Vars(r)["id"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) rotateSecret(w http.ResponseWriter, r *http.Request) {
	created, err := s.engine.RotateAppSecret(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"secret": created.Secret})
}

type redirectRequest struct {
	Redirect string `json:"redirect"`
}

func (s *server) addRedirect(w http.ResponseWriter, r *http.Request) {
	var req redirectRequest
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.AddRedirect(r.Context(), principal(r), mux.Vars(r)["id"], req.Redirect); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) removeRedirect(w http.ResponseWriter, r *http.Request) {
	var req redirectRequest
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.RemoveRedirect(r.Context(), principal(r), mux.Vars(r)["id"], req.Redirect); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) banFromApp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := s.engine.BanFromApp(r.Context(), principal(r), vars["id"], vars["account"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (s *server) unbanFromApp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.engine.UnbanFromApp(r.Context(), principal(r), vars["id"], vars["account"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) transferApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"owner_id"`
	}
	if err := decode(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.engine.TransferApp(r.Context(), principal(r), mux.Vars(r)["id"], req.OwnerID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok(w)
}

func (s *server) destroyAppSessions(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.DestroyAppSessions(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}
