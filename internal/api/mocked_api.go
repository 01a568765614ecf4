package api

import (
	"net/http"
)

type MockedApiService struct{}

// NewMockedApiService creates an api service with canned responses
func NewMockedApiService() ApiServicer {
	return &MockedApiService{}
}

// Health check for microservice
func (s *MockedApiService) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(livenessMessage))
}

// Creates a hosted payment link for the requested amount
func (s *MockedApiService) CreateLink(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, createLinkResponse{
		LinkURL: "https://rzp.io/i/mocked",
	})
}

// Receives Razorpay webhook deliveries
func (s *MockedApiService) Webhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
