package middlewares

import (
	"time"

	"invoicepay-backend/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
)

// RequestID tags every request with X-Request-ID (reusing an inbound one).
func RequestID() fiber.Handler {
	return requestid.New()
}

// RequestLog returns a logger bound to the request id of c.
func RequestLog(c *fiber.Ctx) zerolog.Logger {
	id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	return logger.WithRequestID(id)
}

// RequestLogger writes one line per request after the handler chain ran.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Render through the ErrorHandler now so the logged status is the real one.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		log := RequestLog(c)
		evt := log.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			evt = log.Error()
		case status >= fiber.StatusBadRequest:
			evt = log.Warn()
		}
		evt.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Msg("request")
		return nil
	}
}
