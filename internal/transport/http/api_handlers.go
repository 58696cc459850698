package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/auth"
)

// APIHandlers serves the account endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a bearer token and the identity it was issued for.
type AuthResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

type credentialFunc func(ctx context.Context, username, password string) (string, error)

// authStatus maps account errors to a status and a client-safe message.
// Unknown errors map to 500.
func authStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Register handles POST /api/register.
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	h.issue(c, "register", http.StatusCreated, h.authService.Register, req.Username, req.Password)
}

// Login handles POST /api/login.
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	h.issue(c, "login", http.StatusOK, h.authService.Login, req.Username, req.Password)
}

// issue runs fn and answers with the token and the identity it names.
func (h *APIHandlers) issue(c *gin.Context, action string, okStatus int, fn credentialFunc, username, password string) {
	token, err := fn(c.Request.Context(), username, password)
	if err != nil {
		status, msg := authStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("username", username).Str("action", action).Msg("account request failed")
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		h.log.Error().Err(err).Str("action", action).Msg("freshly issued token did not validate")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", claims.UserID).Str("action", action).Msg("token issued")
	c.JSON(okStatus, AuthResponse{
		Token:     token,
		UserID:    claims.UserID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAtTime().UTC(),
	})
}
