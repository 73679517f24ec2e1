// app/echoServer/jwtx/user.go
package jwtx

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/ganjargaul/koperasiliterasi/model"
)

// UserID returns the authenticated user's id set by the claims
// middleware. Handlers behind the auth group can rely on it.
func UserID(c echo.Context) (int64, error) {
	if id, ok := c.Get("user_id").(int64); ok && id > 0 {
		return id, nil
	}
	return 0, errors.New("no user_id in context")
}

// Role returns the authenticated user's role, defaulting to USER.
func Role(c echo.Context) model.Role {
	if r, ok := c.Get("role").(string); ok && r != "" {
		return model.Role(r)
	}
	return model.RoleUser
}

// IsAdmin is a convenience for admin-only handlers.
func IsAdmin(c echo.Context) bool { return Role(c) == model.RoleAdmin }
