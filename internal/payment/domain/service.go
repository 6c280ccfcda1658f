package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// UpsertPayment records a canonical gateway event as a received
	// payment. Redeliveries of the same gateway payment id refresh the
	// existing row instead of inserting a second one.
	UpsertPayment(ctx context.Context, event *PaymentEvent) (*Payment, error)
	// RecordManual creates a received payment for the manual invoice
	// path, priced from the course itself.
	RecordManual(ctx context.Context, memberID snowflake.ID, billingName string, targetType string, targetID snowflake.ID, amount float64, currency string) (*Payment, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Payment, error)
	SetReceived(ctx context.Context, id snowflake.ID, received bool) error
	ListReceivedWithoutInvoice(ctx context.Context) ([]Payment, error)
}
