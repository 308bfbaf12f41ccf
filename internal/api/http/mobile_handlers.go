package http

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	auth "github.com/mind-engage/mindengage-mobile/internal/auth/middleware"
	"github.com/mind-engage/mindengage-mobile/internal/grading"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/task"
)

func PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Pong"))
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	ID           int64  `json:"id"`
	IsAdmin      bool   `json:"isAdmin"`
	Token        string `json:"token"`
	Message      string `json:"message"`
	SessionToken string `json:"sessionToken,omitempty"`
}

func loginResponse(a *auth.AuthService, u identity.User, msg string) (LoginResponse, error) {
	resp := LoginResponse{ID: u.ID, IsAdmin: u.IsAdmin, Token: u.Token, Message: msg}
	if a != nil {
		s, err := a.IssueSession(u)
		if err != nil {
			return LoginResponse{}, apperr.Wrap(apperr.Internal, "http.session", err)
		}
		resp.SessionToken = s
	}
	return resp, nil
}

// POST /register {"username": "...", "password": "..."}
func RegisterHandler(ids *identity.Resolver, a *auth.AuthService, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			http.Error(w, "registration disabled", http.StatusForbidden)
			return
		}
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := ids.Register(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, "register", err)
			return
		}
		resp, err := loginResponse(a, u, "registered")
		if err != nil {
			writeError(w, "register", err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// POST /login {"username": "...", "password": "..."}
func LoginHandler(ids *identity.Resolver, a *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := ids.ByCredentials(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, "login", err)
			return
		}
		resp, err := loginResponse(a, u, "ok")
		if err != nil {
			writeError(w, "login", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func ListTasksHandler(cat *task.Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cat.ListVisible(r.Context(), auth.CredentialsFromContext(r.Context()))
		if err != nil {
			writeError(w, "list tasks", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetTaskHandler(cat *task.Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDParam(r)
		if err != nil {
			writeError(w, "get task", err)
			return
		}
		d, err := cat.Detail(r.Context(), auth.CredentialsFromContext(r.Context()), id)
		if err != nil {
			writeError(w, "get task", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// POST /tasks/{taskID}/solutions {"answers": [0, 2, 1]}
func SubmitSolutionHandler(engine *grading.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDParam(r)
		if err != nil {
			writeError(w, "submit", err)
			return
		}
		var req struct {
			Answers []int `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res, err := engine.Submit(r.Context(), auth.CredentialsFromContext(r.Context()), id, req.Answers)
		if err != nil {
			writeError(w, "submit", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func StatsHandler(led *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := led.Stats(r.Context(), auth.CredentialsFromContext(r.Context()))
		if err != nil {
			writeError(w, "stats", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
