package orders

import (
	"context"
	"fmt"

	prometheus_monitoring "bitbucket.org/ConcurrentDragon/payment-links/internal/monitoring"
	"bitbucket.org/ConcurrentDragon/payment-links/internal/razorpay"
)

type ServiceImpl struct{}

// creates a new ServiceImpl
func New() *ServiceImpl {
	return &ServiceImpl{}
}

// PaymentConfirmed reacts to a verified paid payment link
func (s *ServiceImpl) PaymentConfirmed(ctx context.Context, event *razorpay.WebhookEvent) error {
	linkID := ""
	referenceID := ""
	if event.Payload.PaymentLink != nil && event.Payload.PaymentLink.Entity != nil {
		linkID = event.Payload.PaymentLink.Entity.ID
		referenceID = event.Payload.PaymentLink.Entity.ReferenceID
	}

	paymentID := ""
	var amount int64
	if event.Payload.Payment != nil && event.Payload.Payment.Entity != nil {
		paymentID = event.Payload.Payment.Entity.ID
		amount = event.Payload.Payment.Entity.Amount
	}

	// TODO: mark the order as paid once an order store exists
	// TODO: dispatch a customer notification (email/SMS)
	fmt.Printf("Payment confirmed: link %s (%s), payment %s, amount %d paise\n", linkID, referenceID, paymentID, amount)
	prometheus_monitoring.TickPaymentConfirmed()

	return nil
}
