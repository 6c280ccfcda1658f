// Package domain contains the payment ledger models and the canonical
// gateway event.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Target types a payment can fund.
const (
	TargetTypeCourse = "course"
	TargetTypeBatch  = "batch"
)

// Payment is the root record of a reconciliation event. Amounts are stored
// in major units; gateway minor units are normalized before reaching here.
// At most one Payment exists per gateway payment id, enforced by
// ux_payments_gateway_payment_id.
type Payment struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	MemberID         snowflake.ID      `gorm:"not null;index" json:"member_id"`
	TargetType       string            `gorm:"not null;default:'course'" json:"target_type"`
	TargetID         snowflake.ID      `gorm:"not null" json:"target_id"`
	Amount           float64           `gorm:"type:numeric(14,2);not null;default:0" json:"amount"`
	Currency         string            `gorm:"not null" json:"currency"`
	Gateway          string            `gorm:"not null;default:''" json:"gateway"`
	GatewayPaymentID *string           `gorm:"uniqueIndex" json:"gateway_payment_id,omitempty"`
	GatewayOrderID   string            `gorm:"not null;default:''" json:"gateway_order_id"`
	Received         bool              `gorm:"not null;default:false" json:"received"`
	BillingName      string            `gorm:"not null;default:''" json:"billing_name"`
	AddressID        *snowflake.ID     `gorm:"" json:"address_id,omitempty"`
	GSTIN            string            `gorm:"column:gstin;not null;default:''" json:"gstin"`
	PAN              string            `gorm:"column:pan;not null;default:''" json:"pan"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// PaymentEvent is the canonical event parsed from a gateway webhook.
// It is ephemeral: consumed once by the orchestrator, never persisted.
type PaymentEvent struct {
	Gateway          string
	GatewayPaymentID string
	GatewayOrderID   string
	// Amount is in major units; minor-unit gateways are divided by 100
	// during parsing.
	Amount     float64
	Currency   string
	BuyerEmail string
	TargetType string
	TargetRef  string
	Metadata   map[string]string
	RawPayload []byte
}

var (
	ErrInvalidEvent      = errors.New("invalid_event")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrMissingBuyerEmail = errors.New("missing_buyer_email")
	ErrMissingTarget     = errors.New("missing_target")
)
