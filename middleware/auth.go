package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

const (
	// AdminRealm is sent in the WWW-Authenticate challenge
	AdminRealm = "Lead Admin"
	// ContextKeyAdmin is the context key for the authenticated admin user name
	ContextKeyAdmin = "admin_user"
)

// RequireAdmin is HTTP basic auth against one admin user and a bcrypt password hash.
// onFailure, when set, is called for every rejected login attempt.
func RequireAdmin(user, passwordHash string, onFailure func(c echo.Context)) echo.MiddlewareFunc {
	return echomiddleware.BasicAuthWithConfig(echomiddleware.BasicAuthConfig{
		Realm: AdminRealm,
		Validator: func(username, password string, c echo.Context) (bool, error) {
			if !CheckAdminCredentials(user, passwordHash, username, password) {
				if onFailure != nil {
					onFailure(c)
				}
				return false, nil
			}
			c.Set(ContextKeyAdmin, username)
			return true, nil
		},
	})
}

// CheckAdminCredentials compares a login attempt with the configured admin.
// The bcrypt comparison always runs so a wrong user name costs the same as a wrong password.
func CheckAdminCredentials(user, passwordHash, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(user)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
	return userOK && passOK
}

// GetAdminUser returns the admin name set by RequireAdmin
func GetAdminUser(c echo.Context) string {
	if name, ok := c.Get(ContextKeyAdmin).(string); ok {
		return name
	}
	return ""
}
