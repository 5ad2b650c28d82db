// Package app assembles the HTTP service with uber fx.
package app

import (
	"invoicepay-backend/access"
	"invoicepay-backend/config"
	"invoicepay-backend/controllers"
	"invoicepay-backend/database"
	"invoicepay-backend/logger"
	"invoicepay-backend/mailer"
	"invoicepay-backend/payments"
	"invoicepay-backend/repositories"
	"invoicepay-backend/services"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var DBModule = fx.Module("db",
	fx.Provide(provideDB),
)

var RepositoryModule = fx.Module("repositories",
	fx.Provide(
		repositories.NewInvoiceRepository,
		repositories.NewPaymentRepository,
		repositories.NewAdminRepository,
	),
)

var MailModule = fx.Module("mail",
	fx.Provide(provideMailer, provideNotifier),
)

var PaymentModule = fx.Module("payments",
	fx.Provide(provideGateways),
)

var ServiceModule = fx.Module("services",
	fx.Provide(
		provideChecker,
		services.NewInvoiceService,
		provideReconciler,
	),
)

var ControllerModule = fx.Module("controllers",
	fx.Provide(
		controllers.NewInvoiceController,
		controllers.NewPublicController,
		provideAuthController,
		providePaymentController,
	),
)

// Module is everything `invoicer serve` needs besides *config.Config.
var Module = fx.Options(
	DBModule,
	RepositoryModule,
	MailModule,
	PaymentModule,
	ServiceModule,
	ControllerModule,
	HTTPModule,
)

// provideDB opens the store and brings the schema up to date before anything
// else touches it.
func provideDB(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	lc.Append(fx.StopHook(func() error {
		return database.Close(db)
	}))
	return db, nil
}

func provideMailer(cfg *config.Config) mailer.Mailer {
	switch cfg.MailProvider {
	case "resend":
		return mailer.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
	case "smtp":
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	default:
		return mailer.NewLogMailer(logger.WithComponent("mail"))
	}
}

// provideNotifier drains queued emails on stop. Its hook is registered before
// the server's, so it runs after in-flight requests have finished.
func provideNotifier(lc fx.Lifecycle, cfg *config.Config, m mailer.Mailer) *mailer.Notifier {
	n := mailer.NewNotifier(m, cfg.AppName, cfg.AppBaseURL, cfg.MailTimeout)
	lc.Append(fx.StopHook(n.Wait))
	return n
}

// provideGateways registers the providers that have credentials; requests
// for an unconfigured one fail with a clear error instead of at startup.
func provideGateways(cfg *config.Config) (payments.Gateways, error) {
	log := logger.WithComponent("payments")
	var gs []payments.Gateway
	if cfg.StripeEnabled() {
		gs = append(gs, payments.NewStripeGateway(cfg.StripeSecretKey, cfg.GatewayTimeout))
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, stripe payments disabled")
	}
	if cfg.PayPalEnabled() {
		pp, err := payments.NewPayPalGateway(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalMode, cfg.GatewayTimeout)
		if err != nil {
			return nil, err
		}
		gs = append(gs, pp)
	} else {
		log.Warn().Msg("PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET not set, paypal payments disabled")
	}
	return payments.NewGateways(gs...), nil
}

func provideChecker(invoices repositories.InvoiceRepository) *access.Checker {
	return access.NewChecker(invoices)
}

func provideReconciler(
	cfg *config.Config,
	db *gorm.DB,
	invoices repositories.InvoiceRepository,
	paymentRepo repositories.PaymentRepository,
	gateways payments.Gateways,
	notifier *mailer.Notifier,
) *services.Reconciler {
	return services.NewReconciler(db, invoices, paymentRepo, gateways, notifier, services.ReconcilerOptions{
		Currency: cfg.Currency,
		Timeout:  cfg.GatewayTimeout,
	})
}

func provideAuthController(cfg *config.Config, admins repositories.AdminRepository) *controllers.AuthController {
	return controllers.NewAuthController(admins, []byte(cfg.JWTSecret))
}

func providePaymentController(
	cfg *config.Config,
	invoices *services.InvoiceService,
	reconciler *services.Reconciler,
) *controllers.PaymentController {
	return controllers.NewPaymentController(invoices, reconciler, cfg.StripeWebhookSecret)
}
