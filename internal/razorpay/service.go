package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	baseURL = "https://api.razorpay.com/v1/"

	// bounded timeout on outbound provider calls so a handler never hangs indefinitely
	requestTimeout = 15 * time.Second

	SignatureHeader      = "X-Razorpay-Signature"
	EventPaymentLinkPaid = "payment_link.paid"
)

// webhook rejection kinds
const (
	ErrorKindServerMisconfigured = "server_misconfigured"
	ErrorKindBadRequest          = "bad_request"
	ErrorKindInvalidSignature    = "invalid_signature"
)

type ServiceImpl struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

// creates a new ServiceImpl. an empty baseURL selects the production Razorpay API
func New(keyID string, keySecret string, webhookSecret string, apiBaseURL string) (*ServiceImpl, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay key id and key secret are required")
	}
	if apiBaseURL == "" {
		apiBaseURL = baseURL
	}
	// relative route resolution needs the trailing slash
	if !strings.HasSuffix(apiBaseURL, "/") {
		apiBaseURL = apiBaseURL + "/"
	}

	return &ServiceImpl{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       apiBaseURL,
		client:        &http.Client{Timeout: requestTimeout},
	}, nil
}

type CreatePaymentLinkRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	AcceptPartial bool   `json:"accept_partial"`
	Description   string `json:"description"`
	ReferenceID   string `json:"reference_id,omitempty"`
}

// Razorpay has returned the hosted URL under both short_url and url
// across API revisions, so both are decoded
type CreatePaymentLinkResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	ShortURL string `json:"short_url"`
	URL      string `json:"url"`
}

// ProviderError is a non-2xx response from Razorpay, carrying the
// provider's body verbatim for diagnostics
type ProviderError struct {
	StatusCode int
	Body       []byte
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("razorpay returned status %d: %s", e.StatusCode, string(e.Body))
}

// WebhookError is a rejected webhook delivery
type WebhookError struct {
	Kind    string
	Message string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

type WebhookEvent struct {
	Event   string         `json:"event"`
	Payload WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	PaymentLink *PaymentLinkWrapper `json:"payment_link"`
	Payment     *PaymentWrapper     `json:"payment"`
}

type PaymentLinkWrapper struct {
	Entity *PaymentLinkEntity `json:"entity"`
}

type PaymentWrapper struct {
	Entity *PaymentEntity `json:"entity"`
}

type PaymentLinkEntity struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	AmountPaid  int64  `json:"amount_paid"`
}

type PaymentEntity struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
	Method string `json:"method"`
}

func (s *ServiceImpl) fromBaseURL(route string) (*url.URL, error) {
	u, err := url.Parse(route)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}

	return base.ResolveReference(u), nil
}

// AuthHeaderValue is the HTTP Basic credential for the key pair
func (s *ServiceImpl) AuthHeaderValue() string {
	credentials := base64.StdEncoding.EncodeToString([]byte(s.keyID + ":" + s.keySecret))
	return "Basic " + credentials
}

func (s *ServiceImpl) CreatePaymentLink(ctx context.Context, createPaymentLinkRequest CreatePaymentLinkRequest) (*CreatePaymentLinkResponse, error) {
	// "/payment_links"
	u, err := s.fromBaseURL("payment_links")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(createPaymentLinkRequest)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", s.AuthHeaderValue())
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create payment link request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Body:       bodyBytes,
		}
	}

	var respBody CreatePaymentLinkResponse
	err = json.Unmarshal(bodyBytes, &respBody)
	if err != nil {
		return nil, err
	}

	return &respBody, nil
}

// WebhookValidate verifies the HMAC-SHA256 signature over the raw request
// body bytes exactly as received. Re-serializing the body would change the
// byte sequence and break legitimate signatures, so the caller must pass
// the unmodified body. Only after the signature matches is the body
// interpreted as an event.
func (s *ServiceImpl) WebhookValidate(rawBody []byte, signature string) (*WebhookEvent, error) {
	// the secret is checked per request, not just at startup
	if s.webhookSecret == "" {
		return nil, &WebhookError{
			Kind:    ErrorKindServerMisconfigured,
			Message: "webhook secret not configured",
		}
	}

	if len(rawBody) == 0 {
		return nil, &WebhookError{
			Kind:    ErrorKindBadRequest,
			Message: "webhook body is empty",
		}
	}
	if signature == "" {
		return nil, &WebhookError{
			Kind:    ErrorKindBadRequest,
			Message: "webhook missing signature header",
		}
	}

	// hash body
	h := hmac.New(sha256.New, []byte(s.webhookSecret))
	h.Write(rawBody)
	expected := hex.EncodeToString(h.Sum(nil))

	// constant-time compare, partial matches must not leak through timing
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, &WebhookError{
			Kind:    ErrorKindInvalidSignature,
			Message: "webhook signature did not match",
		}
	}

	// return properly typed struct, decoded from the same bytes that were verified
	var event WebhookEvent
	err := json.Unmarshal(rawBody, &event)
	if err != nil {
		return nil, &WebhookError{
			Kind:    ErrorKindBadRequest,
			Message: "webhook body is not valid JSON",
		}
	}

	return &event, nil
}
