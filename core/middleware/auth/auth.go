// Package auth protects the admin API with server-validated sessions.
//
// The session cookie carries only an opaque ID; the session record lives
// in Redis and the user's admin flag is re-checked against the database
// on every request, so revoking a user takes effect immediately.
package auth

import (
	"context"

	"loankeeper/core/session"

	"github.com/gofiber/fiber/v2"
)

// CookieName is the admin session cookie.
const CookieName = "lk_session"

// UserIDKey is the fiber locals key carrying the authenticated user ID.
const UserIDKey = "user_id"

// SessionStore is the subset of the session store the middleware needs.
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
}

// Config holds the middleware dependencies.
type Config struct {
	Sessions SessionStore
	// LookupAdmin confirms the session's user still exists and reports
	// whether they are an admin.
	LookupAdmin func(ctx context.Context, userID string) (bool, error)
}

// New creates the session auth middleware. Requests without a valid
// session get 401; valid sessions of non-admin users get 403.
func New(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(CookieName)
		if sid == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		sess, err := cfg.Sessions.Get(c.Context(), sid)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid session"})
		}

		isAdmin, err := cfg.LookupAdmin(c.Context(), sess.UserID)
		if err != nil {
			// The user behind the session is gone; drop the session too.
			_ = cfg.Sessions.Delete(c.Context(), sid)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}

		c.Locals(UserIDKey, sess.UserID)
		return c.Next()
	}
}

// UserID returns the authenticated user ID from the request context.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(UserIDKey).(string)
	return uid
}
