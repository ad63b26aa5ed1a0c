package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/videohub/backend/pkg/password"
	"github.com/videohub/backend/pkg/response"
)

// TokenRequest is the body for POST /auth/token.
type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Handler issues tokens to configured users.
type Handler struct {
	users  map[string]string // username -> bcrypt hash
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users map[string]string, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, logger: logger}
}

// Token handles POST /auth/token.
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	hash, ok := h.users[req.Username]
	if !ok || !password.Matches(req.Password, hash) {
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := h.jwt.Generate(req.Username)
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, Username: req.Username})
}
