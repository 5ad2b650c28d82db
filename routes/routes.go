package routes

import (
	"invoicepay-backend/controllers"
	"invoicepay-backend/middlewares"
	"invoicepay-backend/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

const StripeWebhookPath = "/api/payments/stripe/webhook"

type Handlers struct {
	Auth     *controllers.AuthController
	Invoices *controllers.InvoiceController
	Public   *controllers.PublicController
	Payments *controllers.PaymentController
}

type Options struct {
	AllowedOrigins string
	BodyLimit      int
	JWTSecret      []byte
	AllowedRoles   []string
	RateLimit      ratelimit.Config
	// DB stores Idempotency-Key records.
	DB *gorm.DB
}

// NewApp builds the fiber app with the global middleware stack and all routes.
func NewApp(opts Options, h Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    opts.BodyLimit,
	})

	allowedOrigins := opts.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}

	app.Use(recover.New())
	app.Use(middlewares.RequestID())
	app.Use(middlewares.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// Webhook deliveries are exempt; a 429 would only trigger provider retries.
	rl := opts.RateLimit
	rl.SkipPaths = append(rl.SkipPaths, StripeWebhookPath)
	app.Use(ratelimit.New(rl))

	Register(app, opts, h)
	return app
}

// Register wires all HTTP routes. Public routes are registered before the
// protected group so its auth middleware never sees them.
func Register(app *fiber.App, opts Options, h Handlers) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/auth/login", h.Auth.Login)

	// Capability-gated invoice view
	api.Get("/invoices/public/:invoiceNumber/:accessToken", h.Public.GetPublicInvoice)

	// Payments (capability in the request body; webhook authenticated by signature)
	pay := api.Group("/payments")
	pay.Post("/stripe/create-intent", h.Payments.CreateStripeIntent)
	pay.Post("/stripe/confirm", h.Payments.ConfirmStripePayment)
	pay.Post("/stripe/webhook", middlewares.RawBody(), h.Payments.StripeWebhook)
	pay.Post("/paypal/create-order", h.Payments.CreatePayPalOrder)
	pay.Post("/paypal/capture-payment", h.Payments.CapturePayPalPayment)
	pay.Get("/status/:invoiceId", h.Payments.GetPaymentStatus)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader(opts.JWTSecret, opts.AllowedRoles))

	// Idempotency guard after auth: keys are scoped per user
	if opts.DB != nil {
		protected.Use(middlewares.Idempotency(opts.DB))
	}

	// Invoices
	protected.Get("/invoices", h.Invoices.GetInvoices)
	protected.Post("/invoices", h.Invoices.CreateInvoice)
	protected.Get("/invoices/:id", h.Invoices.GetInvoice)
	protected.Put("/invoices/:id", h.Invoices.UpdateInvoice)
	protected.Delete("/invoices/:id", h.Invoices.DeleteInvoice)
	protected.Post("/invoices/:id/mark-paid", h.Invoices.MarkInvoicePaid)
}
