package server

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/accounts"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Profile   accounts.Profile `json:"profile"`
}

type resetRequest struct {
	Username    string `json:"username"`
	Answer      string `json:"answer"`
	NewPassword string `json:"newPassword"`
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type renameRequest struct {
	NewUsername string `json:"newUsername"`
	Password    string `json:"password"`
}

func accountStatus(err error) int {
	switch {
	case errors.Is(err, accounts.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, accounts.ErrInvalidUsername), errors.Is(err, accounts.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, accounts.ErrInvalidCredentials), errors.Is(err, accounts.ErrRenamed):
		return http.StatusUnauthorized
	case errors.Is(err, accounts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrNoSecurityAnswer):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) issue(w http.ResponseWriter, statusCode int, a accounts.Account) {
	token, exp, err := s.tokens.Issue(a.Username)
	if err != nil {
		failure(w, http.StatusInternalServerError, "could not issue token", err)
		return
	}
	writeJSON(w, statusCode, Response{Status: "success", Data: tokenResponse{Token: token, ExpiresAt: exp, Profile: a.Profile()}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req accounts.Registration
	if err := decodeJSONBody(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	a, res, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		failure(w, accountStatus(err), "registration failed", err)
		return
	}
	trackRemote(res)
	s.issue(w, http.StatusCreated, a)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSONBody(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	a, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		failure(w, accountStatus(err), "login failed", err)
		return
	}
	s.issue(w, http.StatusOK, a)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSONBody(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res, err := s.accounts.ResetPassword(r.Context(), req.Username, req.Answer, req.NewPassword)
	if err != nil {
		failure(w, accountStatus(err), "password reset failed", err)
		return
	}
	trackRemote(res)
	successMessage(w, "password updated", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	a, err := s.accounts.Get(r.Context(), userFromContext(r.Context()))
	if err != nil {
		failure(w, accountStatus(err), "account lookup failed", err)
		return
	}
	success(w, a.Profile())
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSONBody(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res, err := s.accounts.ChangePassword(r.Context(), userFromContext(r.Context()), req.OldPassword, req.NewPassword)
	if err != nil {
		failure(w, accountStatus(err), "password change failed", err)
		return
	}
	trackRemote(res)
	successMessage(w, "password updated", nil)
}

// handleRename moves the account and its journals, then issues a token for
// the new name.
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSONBody(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	user := userFromContext(r.Context())
	a, res, err := s.accounts.Rename(r.Context(), user, req.NewUsername, req.Password)
	if err != nil {
		failure(w, accountStatus(err), "rename failed", err)
		return
	}
	trackRemote(res)
	if err := s.journals.Move(r.Context(), user, a.Username); err != nil {
		s.log.Error("move journals after rename", zap.String("from", user), zap.String("to", a.Username), zap.Error(err))
		failure(w, http.StatusInternalServerError, "journals could not be moved", err)
		return
	}
	s.issue(w, http.StatusOK, a)
}
