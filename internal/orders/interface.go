package orders

import (
	"context"

	"bitbucket.org/ConcurrentDragon/payment-links/internal/razorpay"
)

// Service is the downstream collaborator invoked when a verified
// payment_link.paid event arrives
type Service interface {
	PaymentConfirmed(ctx context.Context, event *razorpay.WebhookEvent) error
}
