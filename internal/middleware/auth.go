package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/chunkstream/api/pkg/response"
)

// AuthMiddleware gates management endpoints with expiring bearer tokens.
// Chunk delivery is deliberately not behind it, so chunk URLs stay cacheable
// by intermediaries; those use per-chunk signed grants instead.
type AuthMiddleware struct {
	jwtSecret  string
	expiration time.Duration
}

type APIClaims struct {
	ClientID string `json:"clientId"`
	jwt.RegisteredClaims
}

func NewAuthMiddleware(jwtSecret string, expirationHours int) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret:  jwtSecret,
		expiration: time.Duration(expirationHours) * time.Hour,
	}
}

// Authenticate validates the JWT token from the Authorization header.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		token, err := jwt.ParseWithClaims(parts[1], &APIClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		})
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		claims, ok := token.Claims.(*APIClaims)
		if !ok || !token.Valid {
			return response.Unauthorized(c, "Invalid token claims")
		}

		c.Locals("clientId", claims.ClientID)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// GetClientID extracts the authenticated client ID from context.
func GetClientID(c *fiber.Ctx) string {
	if clientID, ok := c.Locals("clientId").(string); ok {
		return clientID
	}
	return ""
}

// GenerateToken creates a new bearer token for a management client.
func (m *AuthMiddleware) GenerateToken(clientID string) (string, error) {
	now := time.Now()
	claims := APIClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chunkstream-api",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.jwtSecret))
}

// Expiration returns the configured token lifetime.
func (m *AuthMiddleware) Expiration() time.Duration {
	return m.expiration
}
