package api

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"bitbucket.org/ConcurrentDragon/payment-links/internal/razorpay"
)

// CORSMiddleware echoes the configured origin on every response and
// answers preflight requests before any business logic runs
func CORSMiddleware(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+razorpay.SignatureHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoverMiddleware keeps a panicking handler from taking the process down
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				fmt.Printf("Recovered from handler panic: %+v\n", rec)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

var (
	requestIDEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UTC().UnixNano())), 0)
	requestIDMutex   sync.Mutex
)

func generateRequestID() string {
	// monotonic entropy is not safe for concurrent use
	requestIDMutex.Lock()
	defer requestIDMutex.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), requestIDEntropy)
	return fmt.Sprintf("REQ-%s", id.String())
}

// RequestIDMiddleware stamps each request with a ULID for log correlation
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		w.Header().Set("X-Request-Id", requestID)
		fmt.Printf("%s %s (%s)\n", r.Method, r.URL.Path, requestID)

		next.ServeHTTP(w, r)
	})
}
