package razorpay

import (
	"context"
)

type Service interface {
	AuthHeaderValue() string
	CreatePaymentLink(ctx context.Context, createPaymentLinkRequest CreatePaymentLinkRequest) (*CreatePaymentLinkResponse, error)
	WebhookValidate(rawBody []byte, signature string) (*WebhookEvent, error)
}
