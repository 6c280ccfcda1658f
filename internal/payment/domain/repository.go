package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByGatewayPaymentID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*Payment, error)
	// Insert is conditional on the gateway payment id uniqueness constraint;
	// it reports false when a concurrent insert won the race.
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	UpdateFromRedelivery(ctx context.Context, db *gorm.DB, id snowflake.ID, amount float64, currency string, received bool) error
	SetReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, received bool) error
	// ListReceivedWithoutInvoice feeds the bulk catch-up scan. A payment
	// whose invoice is still draft counts as uninvoiced so a failed
	// submission gets retried.
	ListReceivedWithoutInvoice(ctx context.Context, db *gorm.DB) ([]Payment, error)
}
