package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/h4ev/formgate/internal/accounts"
	"github.com/h4ev/formgate/internal/models"
)

const maxBodyBytes = 1 << 20

// userView is the public form of an account.
type userView struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      *int   `json:"role"`
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User    *models.User `json:"user"`
	Refresh string       `json:"refresh"`
	Access  string       `json:"access"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error - " + err.Error()})
		return false
	}
	return true
}

func (h *AccountHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in accounts.CreateInput
	if !decodeBody(w, r, &in) {
		return
	}

	user, err := h.accounts.Create(r.Context(), in)
	var verr *accounts.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, newUserView(user))
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, accounts.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "User already exists: "+err.Error())
	default:
		h.log.WithError(err).Error("User creation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "An error occurred: " + err.Error(),
			"details": fmt.Sprintf("%+v", err),
		})
	}
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decodeBody(w, r, &in) {
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, accounts.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "wrong username or password"})
		return
	case errors.Is(err, accounts.ErrInactive):
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "account not active."})
		return
	case err != nil:
		h.log.WithError(err).Error("Login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	refresh, err := h.tokens.IssueRefresh(user.ID)
	if err != nil {
		h.log.WithError(err).Error("Failed to issue refresh token")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	access, err := h.tokens.IssueAccess(*accounts.IdentityOf(user))
	if err != nil {
		h.log.WithError(err).Error("Failed to issue access token")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{User: user, Refresh: refresh, Access: access})
}

// RefreshToken exchanges a refresh token for a new access token.
func (h *AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	claims, err := h.tokens.ValidateRefresh(in.Refresh)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}

	id, err := h.accounts.LookupIdentity(r.Context(), claims.UserID)
	if errors.Is(err, accounts.ErrNotFound) || errors.Is(err, accounts.ErrInactive) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "User not found or inactive"})
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Token refresh failed")
		writeError(w, http.StatusInternalServerError, "token refresh failed")
		return
	}

	access, err := h.tokens.IssueAccess(*id)
	if err != nil {
		h.log.WithError(err).Error("Failed to issue access token")
		writeError(w, http.StatusInternalServerError, "token refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list users")
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	views := make([]userView, len(users))
	for i := range users {
		views[i] = newUserView(&users[i])
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, raw, ok := userIDVar(r)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("user %s not found", raw))
		return
	}

	user, err := h.accounts.Get(r.Context(), id)
	if errors.Is(err, accounts.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("user %d not found", id))
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("user_id", id).Error("Failed to load user")
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, raw, ok := userIDVar(r)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("user %s not found", raw))
		return
	}

	err := h.accounts.Delete(r.Context(), id)
	if errors.Is(err, accounts.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("user %d not found", id))
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("user_id", id).Error("Failed to delete user")
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
