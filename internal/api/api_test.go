package api_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"bitbucket.org/ConcurrentDragon/payment-links/internal/api"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/links"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/razorpay"
)

const (
	testKeyID         = "rzp_test_key"
	testKeySecret     = "test_secret"
	testWebhookSecret = "webhook_secret"
	testOrigin        = "https://shop.example.com"
)

func sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// countingOrdersService records PaymentConfirmed invocations
type countingOrdersService struct {
	calls     int
	lastEvent *razorpay.WebhookEvent
}

func (s *countingOrdersService) PaymentConfirmed(ctx context.Context, event *razorpay.WebhookEvent) error {
	s.calls++
	s.lastEvent = event
	return nil
}

// newRelay wires the services and router the way server/main.go does,
// pointing the provider client at providerURL and counting paid events
func newRelay(t *testing.T, providerURL string, webhookSecret string) (http.Handler, *countingOrdersService) {
	razorpayService, err := razorpay.New(testKeyID, testKeySecret, webhookSecret, providerURL)
	if err != nil {
		t.Fatalf("failed to create Razorpay service: %+v", err)
	}

	linksService := links.New(razorpayService)
	ordersService := &countingOrdersService{}
	apiService := api.NewApiService(linksService, razorpayService, ordersService)

	router := mux.NewRouter()
	router.HandleFunc("/", apiService.GetStatus).Methods("GET")
	router.HandleFunc("/api/create-link", apiService.CreateLink).Methods("POST")
	router.HandleFunc("/api/webhook", apiService.Webhook).Methods("POST")

	handler := api.RecoverMiddleware(router)
	handler = api.RequestIDMiddleware(handler)
	handler = api.CORSMiddleware(testOrigin, handler)

	return handler, ordersService
}

func TestGetStatus(t *testing.T) {
	handler, _ := newRelay(t, "http://localhost:1/", testWebhookSecret)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != 200 {
		t.Errorf("unexpected status code: %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Errorf("expected a liveness message body")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != testOrigin {
		t.Errorf("missing CORS origin header: %s", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Errorf("missing request id header")
	}
}

func TestOptionsPreflight(t *testing.T) {
	handler, _ := newRelay(t, "http://localhost:1/", testWebhookSecret)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/create-link", nil))

	if w.Code != 204 {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("preflight response must have no body: %s", w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != testOrigin {
		t.Errorf("missing CORS origin header on preflight")
	}
}

func TestCreateLinkEndToEnd(t *testing.T) {
	var providerCalls int
	var providerRequest razorpay.CreatePaymentLinkRequest
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		json.NewDecoder(r.Body).Decode(&providerRequest)
		w.WriteHeader(200)
		w.Write([]byte(`{"id": "plink_123", "status": "created", "short_url": "https://pay.example/abc"}`))
	}))
	defer provider.Close()

	handler, _ := newRelay(t, provider.URL+"/", testWebhookSecret)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/create-link", strings.NewReader(`{"amount_in_inr": 499.5}`)))

	if w.Code != 200 {
		t.Errorf("unexpected status code: %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		LinkURL string `json:"link_url"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	if err != nil {
		t.Errorf("failed to decode response: %+v", err)
	}
	if resp.LinkURL != "https://pay.example/abc" {
		t.Errorf("unexpected link url: %s", resp.LinkURL)
	}

	if providerCalls != 1 {
		t.Errorf("expected 1 provider call, got %d", providerCalls)
	}
	if providerRequest.Amount != 49950 {
		t.Errorf("amount not converted to paise: %d", providerRequest.Amount)
	}
	if providerRequest.Currency != "INR" {
		t.Errorf("unexpected currency: %s", providerRequest.Currency)
	}
}

func TestCreateLinkBadAmount(t *testing.T) {
	var providerCalls int
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
	}))
	defer provider.Close()

	handler, _ := newRelay(t, provider.URL+"/", testWebhookSecret)

	bodies := []string{
		`{}`,
		`{"amount_in_inr": "ten"}`,
		`{"amount_in_inr": 0}`,
		`{"amount_in_inr": -5}`,
		`not json`,
	}
	for _, body := range bodies {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/create-link", strings.NewReader(body)))

		if w.Code != 400 {
			t.Errorf("expected 400 for body %s, got %d", body, w.Code)
		}

		var resp struct {
			Error string `json:"error"`
		}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Errorf("failed to decode error response: %+v", err)
		}
		if resp.Error != "amount_in_inr required (number)" {
			t.Errorf("unexpected error message: %s", resp.Error)
		}
	}

	// no outbound provider call for invalid input
	if providerCalls != 0 {
		t.Errorf("expected 0 provider calls, got %d", providerCalls)
	}
}

func TestCreateLinkProviderRejected(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"error": {"description": "amount too small"}}`))
	}))
	defer provider.Close()

	handler, _ := newRelay(t, provider.URL+"/", testWebhookSecret)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/create-link", strings.NewReader(`{"amount_in_inr": 10}`)))

	if w.Code != 502 {
		t.Errorf("expected 502, got %d", w.Code)
	}

	var resp struct {
		Error   string          `json:"error"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	if err != nil {
		t.Errorf("failed to decode error response: %+v", err)
	}
	if resp.Error != "payment provider error" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
	if resp.Code != "provider_rejected" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
	if !strings.Contains(string(resp.Details), "amount too small") {
		t.Errorf("provider details not echoed: %s", string(resp.Details))
	}
}

func TestCreateLinkProviderUnreachable(t *testing.T) {
	handler, _ := newRelay(t, "http://localhost:1/", testWebhookSecret)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/create-link", strings.NewReader(`{"amount_in_inr": 10}`)))

	if w.Code != 502 {
		t.Errorf("expected 502, got %d", w.Code)
	}

	var resp struct {
		Code string `json:"code"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	if err != nil {
		t.Errorf("failed to decode error response: %+v", err)
	}
	if resp.Code != "provider_unreachable" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
}

func paidEventBody() []byte {
	return []byte(`{
		"event": "payment_link.paid",
		"payload": {
			"payment_link": {
				"entity": {"id": "plink_123", "reference_id": "LINK-X", "status": "paid", "amount": 49950, "amount_paid": 49950}
			},
			"payment": {
				"entity": {"id": "pay_456", "amount": 49950, "status": "captured", "method": "upi"}
			}
		}
	}`)
}

func postWebhook(handler http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/api/webhook", bytes.NewBuffer(body))
	if signature != "" {
		r.Header.Set(razorpay.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestWebhookPaid(t *testing.T) {
	handler, ordersService := newRelay(t, "http://localhost:1/", testWebhookSecret)

	body := paidEventBody()
	w := postWebhook(handler, body, sign(testWebhookSecret, body))

	if w.Code != 200 {
		t.Errorf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if strings.TrimSpace(w.Body.String()) != "ok" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if ordersService.calls != 1 {
		t.Errorf("expected 1 payment confirmed call, got %d", ordersService.calls)
	}
	if ordersService.lastEvent.Payload.PaymentLink.Entity.ID != "plink_123" {
		t.Errorf("unexpected payment link id: %s", ordersService.lastEvent.Payload.PaymentLink.Entity.ID)
	}
}

func TestWebhookRedelivery(t *testing.T) {
	handler, ordersService := newRelay(t, "http://localhost:1/", testWebhookSecret)

	body := paidEventBody()
	signature := sign(testWebhookSecret, body)

	// no dedup here, each delivery is acknowledged independently
	for i := 0; i < 2; i++ {
		w := postWebhook(handler, body, signature)
		if w.Code != 200 {
			t.Errorf("delivery %d: expected 200, got %d", i, w.Code)
		}
	}
	if ordersService.calls != 2 {
		t.Errorf("expected 2 payment confirmed calls, got %d", ordersService.calls)
	}
}

func TestWebhookTamperedBody(t *testing.T) {
	handler, ordersService := newRelay(t, "http://localhost:1/", testWebhookSecret)

	body := paidEventBody()
	signature := sign(testWebhookSecret, body)
	body[len(body)-2] = ' '

	w := postWebhook(handler, body, signature)

	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "invalid signature" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if ordersService.calls != 0 {
		t.Errorf("tampered event must not reach business logic")
	}
}

func TestWebhookMissingSignature(t *testing.T) {
	handler, ordersService := newRelay(t, "http://localhost:1/", testWebhookSecret)

	w := postWebhook(handler, paidEventBody(), "")

	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "bad request" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if ordersService.calls != 0 {
		t.Errorf("unsigned event must not reach business logic")
	}
}

func TestWebhookSecretNotConfigured(t *testing.T) {
	handler, ordersService := newRelay(t, "http://localhost:1/", "")

	body := paidEventBody()
	w := postWebhook(handler, body, sign(testWebhookSecret, body))

	if w.Code != 500 {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "webhook secret not configured" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if ordersService.calls != 0 {
		t.Errorf("unverifiable event must not reach business logic")
	}
}

func TestWebhookUnknownEvent(t *testing.T) {
	handler, ordersService := newRelay(t, "http://localhost:1/", testWebhookSecret)

	body := []byte(`{"event": "payment_link.expired", "payload": {}}`)
	w := postWebhook(handler, body, sign(testWebhookSecret, body))

	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ordersService.calls != 0 {
		t.Errorf("unrecognized events are a no-op, got %d calls", ordersService.calls)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	api.RecoverMiddleware(panicking).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != 500 {
		t.Errorf("expected 500 after panic, got %d", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	if err != nil {
		t.Errorf("failed to decode error response: %+v", err)
	}
	if resp.Error != "internal server error" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}
