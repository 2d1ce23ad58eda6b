package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/pkg/util"
)

const claimsKey = "auth_claims"

// AdminMiddleware validates bearer tokens on staff routes.
type AdminMiddleware struct {
	tokens *TokenManager
}

// NewAdminMiddleware constructs middleware.
func NewAdminMiddleware(tokens *TokenManager) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes. The token may arrive
// as a bearer header or, for EventSource clients that cannot set headers, as
// a query parameter.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr := ""
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return util.NewUnauthorized("invalid authorization header")
		}
		tokenStr = parts[1]
	} else if token := c.Query("token"); token != "" {
		tokenStr = token
	}
	if tokenStr == "" {
		return util.NewUnauthorized("missing credentials")
	}

	claims, err := m.tokens.ParseToken(tokenStr)
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the authenticated claims.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}
