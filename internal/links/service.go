package links

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	prometheus_monitoring "bitbucket.org/ConcurrentDragon/payment-links/internal/monitoring"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/razorpay"
)

const (
	linkCurrency    = "INR"
	linkDescription = "Order payment"
	paisePerRupee   = 100
)

// link creation failure kinds
const (
	ErrorKindInvalidAmount             = "invalid_amount"
	ErrorKindProviderUnreachable       = "provider_unreachable"
	ErrorKindProviderRejected          = "provider_rejected"
	ErrorKindMalformedUpstreamResponse = "malformed_upstream_response"
)

type LinkError struct {
	Kind    string
	Details string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

type ServiceImpl struct {
	razorpayService razorpay.Service
	ULIDentropy     *ulid.MonotonicEntropy
	ulidMutex       sync.Mutex
}

// creates a new ServiceImpl
func New(razorpayService razorpay.Service) *ServiceImpl {
	t := time.Now().UTC()
	ULIDentropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)

	return &ServiceImpl{
		razorpayService: razorpayService,
		ULIDentropy:     ULIDentropy,
	}
}

// GenerateULID makes a prefixed ULID like LINK-01F5NY7WJ93YFC7Q00B2EWDPJ3
func (s *ServiceImpl) GenerateULID(prefix string) string {
	// monotonic entropy is not safe for concurrent use
	s.ulidMutex.Lock()
	defer s.ulidMutex.Unlock()

	t := time.Now().UTC()
	id := ulid.MustNew(ulid.Timestamp(t), s.ULIDentropy)
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// ToMinorUnits converts rupees to paise, rounding halves away from zero
// (math.Round's rule). The tie-break matters because it changes the
// billed amount: 10.125 rupees is 1013 paise, not 1012.
func ToMinorUnits(amountInINR float64) int64 {
	return int64(math.Round(amountInINR * paisePerRupee))
}

// ValidateAmount rejects anything that is not a positive finite number
func ValidateAmount(amountInINR float64) error {
	if math.IsNaN(amountInINR) || math.IsInf(amountInINR, 0) {
		return fmt.Errorf("amount must be a finite number, got %v", amountInINR)
	}
	if amountInINR <= 0 {
		return fmt.Errorf("amount must be greater than 0, got %v", amountInINR)
	}

	return nil
}

// CreateLink asks Razorpay for a hosted payment link and returns its URL.
// Each call is a pure pass-through: no retries, no persistence.
func (s *ServiceImpl) CreateLink(ctx context.Context, amountInINR float64) (string, error) {
	err := ValidateAmount(amountInINR)
	if err != nil {
		return "", &LinkError{
			Kind:    ErrorKindInvalidAmount,
			Details: err.Error(),
		}
	}

	createPaymentLinkRequest := razorpay.CreatePaymentLinkRequest{
		Amount:        ToMinorUnits(amountInINR),
		Currency:      linkCurrency,
		AcceptPartial: false,
		Description:   linkDescription,
		ReferenceID:   s.GenerateULID("LINK"),
	}
	createPaymentLinkResponse, err := s.razorpayService.CreatePaymentLink(ctx, createPaymentLinkRequest)
	if err != nil {
		prometheus_monitoring.TickCreateLinkFailed()

		var providerErr *razorpay.ProviderError
		if errors.As(err, &providerErr) {
			return "", &LinkError{
				Kind:    ErrorKindProviderRejected,
				Details: string(providerErr.Body),
			}
		}
		return "", &LinkError{
			Kind:    ErrorKindProviderUnreachable,
			Details: err.Error(),
		}
	}

	// the hosted URL has been seen under two field names
	linkURL := createPaymentLinkResponse.ShortURL
	if linkURL == "" {
		linkURL = createPaymentLinkResponse.URL
	}
	if linkURL == "" {
		prometheus_monitoring.TickCreateLinkFailed()
		return "", &LinkError{
			Kind:    ErrorKindMalformedUpstreamResponse,
			Details: "provider response is missing the payment link URL",
		}
	}

	prometheus_monitoring.TickCreatedLink()
	return linkURL, nil
}
