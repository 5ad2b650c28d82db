package middlewares

import "github.com/gofiber/fiber/v2"

const localRawBody = "rawBody"

// RawBody keeps an exact copy of the request bytes for signature checks.
// Register it only on routes that verify a signature over the body, ahead of
// any handler that parses JSON.
func RawBody() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Request().Body() is the wire body; c.Body() may decompress it.
		body := c.Request().Body()
		buf := make([]byte, len(body))
		copy(buf, body)
		c.Locals(localRawBody, buf)
		return c.Next()
	}
}

// RawBodyFrom returns the bytes captured by RawBody; ok is false when the
// middleware did not run for this route.
func RawBodyFrom(c *fiber.Ctx) (body []byte, ok bool) {
	body, ok = c.Locals(localRawBody).([]byte)
	return body, ok
}
