package app

import (
	"fmt"
	"testing"

	"invoicepay-backend/config"

	"go.uber.org/fx"
)

func TestModuleGraphIsComplete(t *testing.T) {
	cfg := &config.Config{
		Port:           "0",
		DBDriver:       "sqlite",
		SQLitePath:     "file::memory:",
		JWTSecret:      "secret",
		RateLimitStore: "memory",
		MailProvider:   "log",
		PayPalMode:     "sandbox",
	}
	if err := fx.ValidateApp(fx.Supply(cfg), Module); err != nil {
		t.Fatalf("dependency graph: %v", err)
	}
}

func TestProvideMailerSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"resend", "*mailer.ResendMailer"},
		{"smtp", "*mailer.SMTPMailer"},
		{"log", "*mailer.LogMailer"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			m := provideMailer(&config.Config{MailProvider: tt.provider, ResendAPIKey: "re_test", SMTPHost: "localhost"})
			if got := typeName(m); got != tt.want {
				t.Errorf("mailer = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProvideGatewaysSkipsUnconfigured(t *testing.T) {
	gs, err := provideGateways(&config.Config{StripeSecretKey: "sk_test_x", PayPalMode: "sandbox"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gs.Get("stripe"); err != nil {
		t.Errorf("stripe should be configured: %v", err)
	}
	if _, err := gs.Get("paypal"); err == nil {
		t.Error("paypal should not be configured without credentials")
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
