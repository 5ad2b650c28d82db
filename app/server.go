package app

import (
	"context"
	"errors"
	"net"

	"invoicepay-backend/config"
	"invoicepay-backend/controllers"
	"invoicepay-backend/logger"
	"invoicepay-backend/ratelimit"
	"invoicepay-backend/routes"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var HTTPModule = fx.Module("http",
	fx.Provide(provideRouter),
	fx.Invoke(StartServer),
)

type routerParams struct {
	fx.In

	Config   *config.Config
	DB       *gorm.DB
	Auth     *controllers.AuthController
	Invoices *controllers.InvoiceController
	Public   *controllers.PublicController
	Payments *controllers.PaymentController
}

func provideRouter(p routerParams) *fiber.App {
	rl := ratelimit.Config{
		Max:    p.Config.RateLimitMax,
		Window: p.Config.RateLimitWindow,
	}
	// The database store shares counters across instances; the default
	// in-process store is per instance.
	if p.Config.RateLimitStore == "database" {
		rl.Storage = ratelimit.NewStorage(p.DB)
	}

	return routes.NewApp(routes.Options{
		AllowedOrigins: p.Config.AllowedOrigins,
		BodyLimit:      p.Config.BodyLimitBytes,
		JWTSecret:      []byte(p.Config.JWTSecret),
		AllowedRoles:   p.Config.AllowedRoles,
		RateLimit:      rl,
		DB:             p.DB,
	}, routes.Handlers{
		Auth:     p.Auth,
		Invoices: p.Invoices,
		Public:   p.Public,
		Payments: p.Payments,
	})
}

// StartServer binds the port during OnStart so a taken port fails startup,
// then serves in the background until OnStop drains in-flight requests.
func StartServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, app *fiber.App) {
	log := logger.WithComponent("http")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", ":"+cfg.Port)
			if err != nil {
				return err
			}
			log.Info().Str("port", cfg.Port).Msg("Starting HTTP server")
			go func() {
				if err := app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
					log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping HTTP server")
			return app.ShutdownWithContext(ctx)
		},
	})
}
