// Package api provides HTTP handlers for authentication.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gekyxme/relnodes/internal/auth"
	"github.com/gekyxme/relnodes/internal/middleware"
	"github.com/gekyxme/relnodes/internal/user"
	"github.com/gekyxme/relnodes/internal/validate"
)

// RegisterRequest represents the request body for POST /auth/register.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

// LoginRequest represents the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the request body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse carries a freshly issued token pair.
type TokenResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         *user.User `json:"user,omitempty"`
}

// AuthHandlers holds dependencies for authentication HTTP handlers.
type AuthHandlers struct {
	users      user.Repository
	jwtService *auth.JWTService
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(users user.Repository, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		users:      users,
		jwtService: jwtService,
	}
}

// Register handles POST /auth/register - creates a new account.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "A valid email address is required")
		return
	}

	if err := user.ValidatePassword(req.Password); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeWeakPassword)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeWeakPassword, err.Error())
		return
	}

	hash, err := user.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to hash password", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Unable to create account")
		return
	}

	u := &user.User{
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			// Same message as other failures so registration does not
			// confirm which emails exist.
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeEmailTaken)
			WriteError(w, ctx, http.StatusConflict, ErrCodeEmailTaken, "Unable to create account")
			return
		}
		slog.ErrorContext(r.Context(), "failed to create user", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Unable to create account")
		return
	}

	h.writeTokens(w, r, u, http.StatusCreated)
}

// Login handles POST /auth/login - verifies credentials and issues tokens.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCredentials)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid email or password")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCredentials)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid email or password")
			return
		}
		slog.ErrorContext(r.Context(), "failed to look up user", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	if !user.CheckPassword(u.PasswordHash, req.Password) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCredentials)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid email or password")
		return
	}

	h.writeTokens(w, r, u, http.StatusOK)
}

// Refresh handles POST /auth/refresh - exchanges a refresh token for a new
// token pair.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "refreshToken is required")
		return
	}

	claims, err := h.jwtService.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired refresh token")
		return
	}

	u, err := h.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Account no longer exists")
			return
		}
		slog.ErrorContext(r.Context(), "failed to look up user", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	h.writeTokens(w, r, u, http.StatusOK)
}

// writeTokens issues an access/refresh pair for u and writes the response.
func (h *AuthHandlers) writeTokens(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	accessToken, err := h.jwtService.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate access token", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}
	refreshToken, err := h.jwtService.GenerateRefreshToken(u.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate refresh token", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	response := TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         u,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
