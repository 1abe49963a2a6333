package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nimbushost/nimbushost/internal/pkg/session"
	"github.com/nimbushost/nimbushost/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session into a request user context so
// controllers never touch the session store directly.
func UserContextMiddleware(c *fiber.Ctx) error {
	anonymous := func() error {
		c.Locals("USER_CONTEXT", usercontext.UserContext{IsLoggedIn: false, IsAdmin: false})
		c.Locals(usercontext.KeyFromProtected, false)
		c.Locals(usercontext.KeyIsAdmin, false)
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return anonymous()
	}

	userID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || userID == 0 {
		return anonymous()
	}

	username, _ := sess.Get(usercontext.KeyUsername).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)

	c.Locals("USER_CONTEXT", usercontext.UserContext{
		UserID:     userID,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	})
	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyIsAdmin, isAdmin)
	return c.Next()
}
