package handler

import (
	"crypto/subtle"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/chunkstream/api/internal/middleware"
	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/pkg/response"
)

type AuthHandler struct {
	auth      *middleware.AuthMiddleware
	apiKey    string
	validator *validator.Validate
}

func NewAuthHandler(auth *middleware.AuthMiddleware, apiKey string, v *validator.Validate) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		apiKey:    apiKey,
		validator: v,
	}
}

// Token handles POST /api/auth/token, exchanging the configured API key for
// a management bearer token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req model.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		return response.Unauthorized(c, "Invalid API key")
	}

	token, err := h.auth.GenerateToken("management")
	if err != nil {
		return response.ServiceError(c, "Failed to issue token")
	}

	return response.OK(c, model.TokenResponse{
		Token:     token,
		ExpiresIn: int(h.auth.Expiration().Seconds()),
	})
}
