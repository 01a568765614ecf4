package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"

	"bitbucket.org/ConcurrentDragon/payment-links/internal/links"
	prometheus_monitoring "bitbucket.org/ConcurrentDragon/payment-links/internal/monitoring"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/orders"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/razorpay"
)

const (
	livenessMessage      = "payment-links relay is up"
	invalidAmountMessage = "amount_in_inr required (number)"
)

type ApiServicer interface {
	GetStatus(w http.ResponseWriter, r *http.Request)
	CreateLink(w http.ResponseWriter, r *http.Request)
	Webhook(w http.ResponseWriter, r *http.Request)
}

type ApiService struct {
	linksService    links.Service
	razorpayService razorpay.Service
	ordersService   orders.Service
}

// NewApiService creates an api service
func NewApiService(
	linksService links.Service,
	razorpayService razorpay.Service,
	ordersService orders.Service,
) ApiServicer {
	return &ApiService{
		linksService:    linksService,
		razorpayService: razorpayService,
		ordersService:   ordersService,
	}
}

type createLinkRequest struct {
	// pointer so that a missing field is distinguishable from 0
	AmountInINR *float64 `json:"amount_in_inr"`
}

type createLinkResponse struct {
	LinkURL string `json:"link_url"`
}

type errorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		fmt.Printf("Failed to write response body: %+v\n", err)
	}
}

// provider error bodies are echoed verbatim when they are JSON
func opaqueDetails(details string) interface{} {
	if json.Valid([]byte(details)) {
		return json.RawMessage(details)
	}
	return details
}

// Health check for microservice
func (s *ApiService) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(livenessMessage))
}

// Creates a hosted payment link for the requested amount
func (s *ApiService) CreateLink(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := ioutil.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidAmountMessage, Code: links.ErrorKindInvalidAmount})
		return
	}

	var req createLinkRequest
	err = json.Unmarshal(bodyBytes, &req)
	if err != nil || req.AmountInINR == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidAmountMessage, Code: links.ErrorKindInvalidAmount})
		return
	}

	linkURL, err := s.linksService.CreateLink(r.Context(), *req.AmountInINR)
	if err != nil {
		var linkErr *links.LinkError
		if errors.As(err, &linkErr) {
			switch linkErr.Kind {
			case links.ErrorKindInvalidAmount:
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidAmountMessage, Code: linkErr.Kind})
			default:
				// provider_unreachable, provider_rejected, malformed_upstream_response
				fmt.Printf("Create link upstream failure: %+v\n", linkErr)
				writeJSON(w, http.StatusBadGateway, errorResponse{
					Error:   "payment provider error",
					Code:    linkErr.Kind,
					Details: opaqueDetails(linkErr.Details),
				})
			}
			return
		}

		fmt.Printf("Create link failed: %+v\n", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, createLinkResponse{LinkURL: linkURL})
}

// Receives Razorpay webhook deliveries
func (s *ApiService) Webhook(w http.ResponseWriter, r *http.Request) {
	// capture the raw bytes before any structured parsing, the signature
	// binds to the body exactly as transmitted
	bodyBytes, err := ioutil.ReadAll(r.Body)
	if err != nil {
		prometheus_monitoring.TickWebhookRejected()
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(razorpay.SignatureHeader)
	event, err := s.razorpayService.WebhookValidate(bodyBytes, signature)
	if err != nil {
		prometheus_monitoring.TickWebhookRejected()

		var webhookErr *razorpay.WebhookError
		if errors.As(err, &webhookErr) {
			switch webhookErr.Kind {
			case razorpay.ErrorKindServerMisconfigured:
				fmt.Printf("Webhook rejected, secret is not configured\n")
				http.Error(w, "webhook secret not configured", http.StatusInternalServerError)
			case razorpay.ErrorKindInvalidSignature:
				// never log the secret or the computed digest
				fmt.Printf("Webhook rejected, signature did not match\n")
				http.Error(w, "invalid signature", http.StatusBadRequest)
			default:
				fmt.Printf("Webhook rejected: %+v\n", webhookErr)
				http.Error(w, "bad request", http.StatusBadRequest)
			}
			return
		}

		fmt.Printf("Webhook validation failed: %+v\n", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	prometheus_monitoring.TickWebhookVerified()

	// verified deliveries are acknowledged regardless of the event's
	// business meaning; unrecognized events are a no-op
	if event.Event == razorpay.EventPaymentLinkPaid {
		err = s.ordersService.PaymentConfirmed(r.Context(), event)
		if err != nil {
			fmt.Printf("Payment confirmed hook failed: %+v\n", err)
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
