package middleware

import (
	"fmt"

	"github.com/assetops/assetcore/internal/config"
	"github.com/assetops/assetcore/internal/services"
	"github.com/assetops/assetcore/internal/types"
	"github.com/gofiber/fiber/v2"
)

// AuthAdmin validates that the request has admin role authorization.
// Configuration routes (rules, bindings, flows, settings) sit behind it.
func AuthAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, []string{"admin"}, "lifecycle.authorization.admin")
	}
}

// AuthUser validates that the request has user role authorization
func AuthUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, []string{"user"}, "lifecycle.authorization.user")
	}
}

// authorize performs the authorization check. The Authorizer client is
// initialized on the first authenticated request, since the redirect URL
// depends on the request protocol and host.
func authorize(c *fiber.Ctx, roles []string, errorType string) error {
	if !services.IsAuthorizerInitialized() {
		cfg, err := config.Load()
		if err == nil {
			err = services.InitAuthorizer(cfg, c.Protocol(), c.Hostname())
		}
		if err != nil {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: fmt.Sprintf("Authorizer unavailable: %v", err),
				Type:    errorType,
			}
		}
	}

	// Get session cookie
	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    errorType,
		}
	}

	// Validate session
	data, err := services.ValidateSession(session, roles)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	// Set user data in context
	if user, ok := data["user"]; ok {
		c.Locals("user", user)
	}

	return c.Next()
}
