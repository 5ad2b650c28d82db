package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"invoicepay-backend/models"
)

// paypalAPI serves the handful of REST endpoints the gateway calls. Every
// order it returns has the given status and custom_id.
type paypalAPI struct {
	status   string
	owner    string
	captures atomic.Int32
}

func (api *paypalAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"A21-test","token_type":"Bearer","expires_in":32400}`)
	})
	mux.HandleFunc("GET /v2/checkout/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"status":%q,"purchase_units":[{"reference_id":%q,"custom_id":%q}]}`,
			r.PathValue("id"), api.status, api.owner, api.owner)
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		api.captures.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"status":"COMPLETED"}`, r.PathValue("id"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPayPal(t *testing.T, api *paypalAPI) *PayPalGateway {
	t.Helper()
	g, err := NewPayPalGateway("client", "secret", "sandbox", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	g.client.APIBase = api.server(t).URL
	return g
}

func TestPayPalSettle(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		owner        string
		wantStatus   models.PaymentStatus
		wantCaptures int32
		wantErr      error
	}{
		{name: "approved order is captured", status: "APPROVED", owner: "inv-1", wantStatus: models.PaymentCompleted, wantCaptures: 1},
		{name: "completed order is not captured again", status: "COMPLETED", owner: "inv-1", wantStatus: models.PaymentCompleted},
		{name: "unapproved order stays pending", status: "PAYER_ACTION_REQUIRED", owner: "inv-1", wantStatus: models.PaymentPending},
		{name: "voided order is failed", status: "VOIDED", owner: "inv-1", wantStatus: models.PaymentFailed},
		{name: "order for another invoice is never captured", status: "APPROVED", owner: "inv-2", wantErr: ErrInvoiceMismatch},
		{name: "order without invoice id is refused", status: "APPROVED", owner: "", wantErr: ErrInvoiceMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &paypalAPI{status: tt.status, owner: tt.owner}
			g := newTestPayPal(t, api)

			s, err := g.Settle(context.Background(), "ORDER-1", "inv-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Settle() error = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("Settle() error = %v", err)
				}
				if s.Status != tt.wantStatus || s.InvoiceID != "inv-1" || s.ProviderID != "ORDER-1" {
					t.Errorf("settlement = %+v", s)
				}
			}
			if got := api.captures.Load(); got != tt.wantCaptures {
				t.Errorf("captures = %d, want %d", got, tt.wantCaptures)
			}
		})
	}
}
