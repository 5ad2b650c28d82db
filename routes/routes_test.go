package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"invoicepay-backend/access"
	"invoicepay-backend/controllers"
	"invoicepay-backend/database"
	"invoicepay-backend/mailer"
	"invoicepay-backend/middlewares"
	"invoicepay-backend/models"
	"invoicepay-backend/payments"
	"invoicepay-backend/ratelimit"
	"invoicepay-backend/repositories"
	"invoicepay-backend/services"
	"invoicepay-backend/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

const (
	webhookSecret = "whsec_route_test"
	owner         = "user-owner"
	stranger      = "user-stranger"
)

var jwtSecret = []byte("test-secret")

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	stripe *testutil.FakeGateway
	paypal *testutil.FakeGateway
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	notifier := mailer.NewNotifier(&mailer.RecordingMailer{}, "Invoicepay", "https://pay.test", time.Second)
	invoices := services.NewInvoiceService(db, invoiceRepo, paymentRepo, notifier, access.NewChecker(invoiceRepo))

	env := &testEnv{
		db:     db,
		stripe: testutil.NewFakeGateway(models.ProviderStripe),
		paypal: testutil.NewFakeGateway(models.ProviderPayPal),
	}
	reconciler := services.NewReconciler(db, invoiceRepo, paymentRepo,
		payments.NewGateways(env.stripe, env.paypal), notifier,
		services.ReconcilerOptions{Currency: "usd", Timeout: time.Second})

	env.app = NewApp(Options{
		JWTSecret:    jwtSecret,
		AllowedRoles: []string{"authenticated", "admin"},
		RateLimit:    ratelimit.Config{Max: 1000, Window: time.Minute},
		DB:           db,
	}, Handlers{
		Auth:     controllers.NewAuthController(repositories.NewAdminRepository(db), jwtSecret),
		Invoices: controllers.NewInvoiceController(invoices),
		Public:   controllers.NewPublicController(invoices),
		Payments: controllers.NewPaymentController(invoices, reconciler, webhookSecret),
	})
	return env
}

func bearer(t *testing.T, userID, role string) map[string]string {
	t.Helper()
	tok, err := middlewares.GenerateJWT(jwtSecret, userID, userID+"@example.com", role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (int, []byte, http.Header) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, resp.Header
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

func validInvoiceBody() map[string]any {
	return map[string]any{
		"clientName":  "Ada Lovelace",
		"clientEmail": "ada@example.com",
		"dueDate":     time.Now().UTC().Add(14 * 24 * time.Hour).Format("2006-01-02"),
		"items":       []map[string]any{{"description": "A", "quantity": 2, "unitPrice": 50}},
	}
}

// createInvoice posts a valid invoice as owner and returns the stored row.
func (e *testEnv) createInvoice(t *testing.T) *models.Invoice {
	t.Helper()
	code, raw, _ := e.do(t, "POST", "/api/invoices", validInvoiceBody(), bearer(t, owner, "authenticated"))
	if code != fiber.StatusCreated {
		t.Fatalf("create invoice: %d %s", code, raw)
	}
	var inv models.Invoice
	if err := e.db.First(&inv, "id = ?", decode(t, raw)["id"]).Error; err != nil {
		t.Fatal(err)
	}
	return &inv
}

func TestHealthz(t *testing.T) {
	env := newEnv(t)
	if code, _, _ := env.do(t, "GET", "/healthz", nil, nil); code != 200 {
		t.Errorf("healthz = %d", code)
	}
}

func TestCreateInvoice(t *testing.T) {
	env := newEnv(t)
	auth := bearer(t, owner, "authenticated")

	code, raw, _ := env.do(t, "POST", "/api/invoices", validInvoiceBody(), auth)
	if code != fiber.StatusCreated {
		t.Fatalf("status = %d, body %s", code, raw)
	}
	got := decode(t, raw)
	for field, want := range map[string]string{"subtotal": "100", "tax": "10", "total": "110", "status": "pending"} {
		if got[field] != want {
			t.Errorf("%s = %v, want %s", field, got[field], want)
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing clientEmail", func(b map[string]any) { delete(b, "clientEmail") }},
		{"missing items", func(b map[string]any) { delete(b, "items") }},
		{"empty items", func(b map[string]any) { b["items"] = []any{} }},
		{"missing dueDate", func(b map[string]any) { delete(b, "dueDate") }},
		{"bad dueDate", func(b map[string]any) { b["dueDate"] = "next week" }},
		{"zero quantity", func(b map[string]any) {
			b["items"] = []map[string]any{{"description": "A", "quantity": 0, "unitPrice": 50}}
		}},
		{"sub-cent price", func(b map[string]any) {
			b["items"] = []map[string]any{{"description": "A", "quantity": 3, "unitPrice": "0.333"}}
		}},
		{"negative price", func(b map[string]any) {
			b["items"] = []map[string]any{{"description": "A", "quantity": 1, "unitPrice": -5}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validInvoiceBody()
			tt.mutate(body)
			if code, raw, _ := env.do(t, "POST", "/api/invoices", body, auth); code != fiber.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", code, raw)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	env := newEnv(t)
	if code, _, _ := env.do(t, "GET", "/api/invoices", nil, nil); code != fiber.StatusUnauthorized {
		t.Errorf("no token: %d", code)
	}
	if code, _, _ := env.do(t, "GET", "/api/invoices", nil, map[string]string{"Authorization": "Bearer nope"}); code != fiber.StatusUnauthorized {
		t.Errorf("bad token: %d", code)
	}
	if code, _, _ := env.do(t, "GET", "/api/invoices", nil, bearer(t, owner, "anon")); code != fiber.StatusForbidden {
		t.Errorf("disallowed role: %d", code)
	}
	if code, _, _ := env.do(t, "GET", "/api/invoices", nil, bearer(t, owner, "authenticated")); code != fiber.StatusOK {
		t.Errorf("valid token: %d", code)
	}
}

func TestOwnership(t *testing.T) {
	env := newEnv(t)
	inv := env.createInvoice(t)
	path := "/api/invoices/" + inv.ID
	other := bearer(t, stranger, "authenticated")

	if code, _, _ := env.do(t, "PUT", path, map[string]any{"notes": "mine now"}, other); code != fiber.StatusForbidden {
		t.Errorf("PUT by stranger = %d, want 403", code)
	}
	if code, _, _ := env.do(t, "DELETE", path, nil, other); code != fiber.StatusForbidden {
		t.Errorf("DELETE by stranger = %d, want 403", code)
	}
	if code, _, _ := env.do(t, "GET", path, nil, other); code != fiber.StatusForbidden {
		t.Errorf("GET by stranger = %d, want 403", code)
	}
	if code, _, _ := env.do(t, "PUT", "/api/invoices/missing", map[string]any{"notes": "x"}, bearer(t, owner, "authenticated")); code != fiber.StatusNotFound {
		t.Errorf("PUT missing = %d, want 404", code)
	}

	var stored models.Invoice
	env.db.First(&stored, "id = ?", inv.ID)
	if stored.Notes != inv.Notes {
		t.Errorf("stranger modified notes: %q", stored.Notes)
	}

	list := func(auth map[string]string) []any {
		_, raw, _ := env.do(t, "GET", "/api/invoices", nil, auth)
		var out []any
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatal(err)
		}
		return out
	}
	if n := len(list(other)); n != 0 {
		t.Errorf("stranger lists %d invoices", n)
	}
	if n := len(list(bearer(t, owner, "authenticated"))); n != 1 {
		t.Errorf("owner lists %d invoices", n)
	}

	if code, _, _ := env.do(t, "DELETE", path, nil, bearer(t, owner, "authenticated")); code != fiber.StatusOK {
		t.Errorf("DELETE by owner = %d", code)
	}
}

func TestUpdateAndMarkPaid(t *testing.T) {
	env := newEnv(t)
	inv := env.createInvoice(t)
	auth := bearer(t, owner, "authenticated")

	code, raw, _ := env.do(t, "PUT", "/api/invoices/"+inv.ID, map[string]any{
		"items": []map[string]any{{"description": "B", "quantity": 1, "unitPrice": "20.00"}},
	}, auth)
	if code != fiber.StatusOK {
		t.Fatalf("PUT = %d %s", code, raw)
	}
	if total := decode(t, raw)["total"]; total != "22" {
		t.Errorf("total after update = %v, want 22", total)
	}

	code, raw, _ = env.do(t, "POST", "/api/invoices/"+inv.ID+"/mark-paid", nil, auth)
	if code != fiber.StatusOK {
		t.Fatalf("mark-paid = %d %s", code, raw)
	}
	if status := decode(t, raw)["status"]; status != "paid" {
		t.Errorf("status = %v", status)
	}
}

func TestPublicInvoice(t *testing.T) {
	env := newEnv(t)
	inv := env.createInvoice(t)
	base := "/api/invoices/public/" + inv.InvoiceNumber + "/"

	code, raw, _ := env.do(t, "GET", base+inv.AccessToken, nil, nil)
	if code != fiber.StatusOK {
		t.Fatalf("valid link = %d %s", code, raw)
	}
	got := decode(t, raw)
	if _, leaked := got["accessToken"]; leaked {
		t.Error("public view exposes the access token")
	}
	if got["invoiceNumber"] != inv.InvoiceNumber {
		t.Errorf("invoiceNumber = %v", got["invoiceNumber"])
	}

	if code, _, _ := env.do(t, "GET", base+"not-the-token", nil, nil); code != fiber.StatusNotFound {
		t.Errorf("wrong token = %d, want 404", code)
	}
	if code, _, _ := env.do(t, "GET", "/api/invoices/public/INV-000000-NOPE22/"+inv.AccessToken, nil, nil); code != fiber.StatusNotFound {
		t.Errorf("unknown invoice = %d, want 404", code)
	}

	env.db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("token_expires_at", time.Now().UTC().Add(-time.Second))
	if code, _, _ := env.do(t, "GET", base+inv.AccessToken, nil, nil); code != fiber.StatusUnauthorized {
		t.Errorf("expired token = %d, want 401", code)
	}
}

func TestStripeCreateIntent(t *testing.T) {
	env := newEnv(t)
	inv := env.createInvoice(t)
	capability := map[string]any{"invoiceNumber": inv.InvoiceNumber, "accessToken": inv.AccessToken}

	code, raw, _ := env.do(t, "POST", "/api/payments/stripe/create-intent", capability, nil)
	if code != fiber.StatusOK {
		t.Fatalf("create-intent = %d %s", code, raw)
	}
	if got := decode(t, raw); got["clientSecret"] == "" || got["paymentIntentId"] != "stripe_test_1" {
		t.Errorf("response = %v", got)
	}

	wrong := map[string]any{"invoiceNumber": inv.InvoiceNumber, "accessToken": "guess"}
	if code, _, _ := env.do(t, "POST", "/api/payments/stripe/create-intent", wrong, nil); code != fiber.StatusNotFound {
		t.Errorf("wrong token = %d, want 404", code)
	}
	if code, _, _ := env.do(t, "POST", "/api/payments/stripe/create-intent", map[string]any{}, nil); code != fiber.StatusBadRequest {
		t.Errorf("empty body = %d, want 400", code)
	}

	env.stripe.CreateErr = errors.New("stripe down")
	if code, _, _ := env.do(t, "POST", "/api/payments/stripe/create-intent", capability, nil); code != fiber.StatusBadGateway {
		t.Errorf("gateway failure = %d, want 502", code)
	}
	env.stripe.CreateErr = nil

	env.db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("status", models.InvoicePaid)
	code, raw, _ = env.do(t, "POST", "/api/payments/stripe/create-intent", capability, nil)
	if code != fiber.StatusBadRequest {
		t.Errorf("already paid = %d, want 400 (%s)", code, raw)
	}
	var n int64
	env.db.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).Count(&n)
	if n != 1 {
		t.Errorf("payments = %d, want only the first intent", n)
	}
}

func stripeEvent(eventType, intentID, invoiceID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_route",
  "object": "event",
  "type": %q,
  "data": {"object": {
    "id": %q,
    "object": "payment_intent",
    "amount": 11000,
    "currency": "usd",
    "status": "succeeded",
    "metadata": {"invoice_id": %q}
  }}
}`, eventType, intentID, invoiceID))
}

func signed(payload []byte, secret string) map[string]string {
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})
	return map[string]string{"Stripe-Signature": sp.Header}
}

func TestStripeWebhook(t *testing.T) {
	env := newEnv(t)
	inv := env.createInvoice(t)
	capability := map[string]any{"invoiceNumber": inv.InvoiceNumber, "accessToken": inv.AccessToken}
	if code, raw, _ := env.do(t, "POST", "/api/payments/stripe/create-intent", capability, nil); code != 200 {
		t.Fatalf("create-intent = %d %s", code, raw)
	}

	payload := stripeEvent("payment_intent.succeeded", "stripe_test_1", inv.ID)

	code, _, _ := env.do(t, "POST", StripeWebhookPath, payload, signed(payload, "whsec_wrong"))
	if code != fiber.StatusBadRequest {
		t.Errorf("bad signature = %d, want 400", code)
	}
	if code, _, _ := env.do(t, "POST", StripeWebhookPath, payload, nil); code != fiber.StatusBadRequest {
		t.Errorf("missing signature = %d, want 400", code)
	}
	var stored models.Invoice
	env.db.First(&stored, "id = ?", inv.ID)
	if stored.Status != models.InvoicePending {
		t.Fatalf("rejected webhook changed status to %s", stored.Status)
	}

	for i := 0; i < 2; i++ {
		code, raw, _ := env.do(t, "POST", StripeWebhookPath, payload, signed(payload, webhookSecret))
		if code != fiber.StatusOK {
			t.Fatalf("delivery %d = %d %s", i+1, code, raw)
		}
		if decode(t, raw)["received"] != true {
			t.Errorf("delivery %d body = %s", i+1, raw)
		}
	}
	env.db.First(&stored, "id = ?", inv.ID)
	if stored.Status != models.InvoicePaid || stored.PaymentMethod != "stripe" {
		t.Errorf("invoice after webhook = %s/%s", stored.Status, stored.PaymentMethod)
	}

	code, raw, _ := env.do(t, "GET", "/api/payments/status/"+inv.ID, nil, nil)
	if code != 200 || decode(t, raw)["status"] != "completed" {
		t.Errorf("status route = %d %s", code, raw)
	}

	orphan := stripeEvent("payment_intent.succeeded", "pi_unknown", "")
	if code, _, _ := env.do(t, "POST", StripeWebhookPath, orphan, signed(orphan, webhookSecret)); code != fiber.StatusOK {
		t.Errorf("unplaceable event = %d, want 200", code)
	}
}

func TestStripeWebhookStoreFailureIsNotAcknowledged(t *testing.T) {
	env := newEnv(t)
	inv := env.createInvoice(t)

	// Lose the payments table so reconciliation fails after the signature passes.
	if err := env.db.Migrator().DropTable(&models.Payment{}); err != nil {
		t.Fatal(err)
	}

	payload := stripeEvent("payment_intent.succeeded", "pi_store_down", inv.ID)
	code, raw, _ := env.do(t, "POST", StripeWebhookPath, payload, signed(payload, webhookSecret))
	if code != fiber.StatusInternalServerError {
		t.Fatalf("store failure = %d %s, want 500 so Stripe retries", code, raw)
	}
	if _, acked := decode(t, raw)["received"]; acked {
		t.Error("failed delivery was acknowledged")
	}

	var stored models.Invoice
	if err := env.db.First(&stored, "id = ?", inv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.InvoicePending || stored.PaidDate != nil {
		t.Errorf("invoice changed on failed delivery: %s", stored.Status)
	}
}

func TestStripeConfirmAndPayPalCapture(t *testing.T) {
	env := newEnv(t)
	a := env.createInvoice(t)
	b := env.createInvoice(t)

	capA := map[string]any{"invoiceNumber": a.InvoiceNumber, "accessToken": a.AccessToken}
	if code, raw, _ := env.do(t, "POST", "/api/payments/stripe/create-intent", capA, nil); code != 200 {
		t.Fatalf("create-intent = %d %s", code, raw)
	}
	capA["paymentIntentId"] = "stripe_test_1"
	code, raw, _ := env.do(t, "POST", "/api/payments/stripe/confirm", capA, nil)
	if code != 200 || decode(t, raw)["invoiceStatus"] != "paid" {
		t.Errorf("stripe confirm = %d %s", code, raw)
	}

	capB := map[string]any{"invoiceNumber": b.InvoiceNumber, "accessToken": b.AccessToken}
	code, raw, _ = env.do(t, "POST", "/api/payments/paypal/create-order", capB, nil)
	if code != 200 {
		t.Fatalf("create-order = %d %s", code, raw)
	}
	order := decode(t, raw)
	if order["orderId"] != "paypal_test_1" || order["approvalUrl"] == "" {
		t.Errorf("order = %v", order)
	}
	capB["orderId"] = "paypal_test_1"
	code, raw, _ = env.do(t, "POST", "/api/payments/paypal/capture-payment", capB, nil)
	if code != 200 || decode(t, raw)["status"] != "completed" {
		t.Errorf("paypal capture = %d %s", code, raw)
	}
}

func TestPaymentStatusNone(t *testing.T) {
	env := newEnv(t)
	inv := env.createInvoice(t)
	code, raw, _ := env.do(t, "GET", "/api/payments/status/"+inv.ID, nil, nil)
	if code != 200 || decode(t, raw)["status"] != "none" {
		t.Errorf("status = %d %s", code, raw)
	}
}

func TestIdempotencyKeyReplaysResponse(t *testing.T) {
	env := newEnv(t)
	headers := bearer(t, owner, "authenticated")
	headers["Idempotency-Key"] = "create-1"

	code1, raw1, _ := env.do(t, "POST", "/api/invoices", validInvoiceBody(), headers)
	code2, raw2, h2 := env.do(t, "POST", "/api/invoices", validInvoiceBody(), headers)
	if code1 != fiber.StatusCreated || code2 != fiber.StatusCreated {
		t.Fatalf("statuses = %d, %d", code1, code2)
	}
	if decode(t, raw1)["id"] != decode(t, raw2)["id"] {
		t.Error("replay created a second invoice")
	}
	if h2.Get("Idempotent-Replayed") != "true" {
		t.Error("replayed response not marked")
	}
	var n int64
	env.db.Model(&models.Invoice{}).Count(&n)
	if n != 1 {
		t.Errorf("invoices = %d, want 1", n)
	}

	changed := validInvoiceBody()
	changed["notes"] = "different"
	if code, _, _ := env.do(t, "POST", "/api/invoices", changed, headers); code != fiber.StatusConflict {
		t.Errorf("key reuse with different body = %d, want 409", code)
	}
}

func TestLogin(t *testing.T) {
	env := newEnv(t)
	if _, err := database.SeedAdmin(env.db, "admin@example.com", "s3cret-pass"); err != nil {
		t.Fatal(err)
	}

	code, raw, _ := env.do(t, "POST", "/api/auth/login", map[string]any{"email": "admin@example.com", "password": "s3cret-pass"}, nil)
	if code != fiber.StatusOK {
		t.Fatalf("login = %d %s", code, raw)
	}
	token, _ := decode(t, raw)["token"].(string)
	if token == "" {
		t.Fatal("no token in login response")
	}
	if code, _, _ := env.do(t, "GET", "/api/invoices", nil, map[string]string{"Authorization": "Bearer " + token}); code != fiber.StatusOK {
		t.Errorf("admin token rejected: %d", code)
	}

	if code, _, _ := env.do(t, "POST", "/api/auth/login", map[string]any{"email": "admin@example.com", "password": "wrong"}, nil); code != fiber.StatusUnauthorized {
		t.Errorf("wrong password = %d, want 401", code)
	}
	if code, _, _ := env.do(t, "POST", "/api/auth/login", map[string]any{"email": "nobody@example.com", "password": "x"}, nil); code != fiber.StatusUnauthorized {
		t.Errorf("unknown admin = %d, want 401", code)
	}
}
