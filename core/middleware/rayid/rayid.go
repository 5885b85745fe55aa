// Package rayid assigns every request a correlation ID.
//
// The ID is stored in the Fiber locals under "ray_id", echoed back in the
// X-Ray-Id response header, and picked up by logger.WithRayID so that all
// log entries of one request can be correlated.
package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName is the request/response header carrying the ray ID.
const HeaderName = "X-Ray-Id"

// New creates the ray ID middleware. An incoming header value is kept
// so upstream proxies can thread their own correlation IDs through.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(HeaderName)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set(HeaderName, rid)
		return c.Next()
	}
}
