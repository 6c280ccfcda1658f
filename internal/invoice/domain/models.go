// Package domain contains invoice models and the invoice lifecycle.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	paymentdomain "github.com/opencampus/campuspay/internal/payment/domain"
)

// Invoice lifecycle statuses.
const (
	StatusDraft     = "DRAFT"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
)

// Invoice is the billing document for exactly one payment, enforced by
// ux_invoices_payment_id. Amount, tax and currency are copied from the
// payment at creation so later payment edits never rewrite issued
// documents. TotalAmount is amount plus tax, fixed at creation.
type Invoice struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Number      string        `gorm:"not null;uniqueIndex" json:"number"`
	PaymentID   snowflake.ID  `gorm:"not null;uniqueIndex" json:"payment_id"`
	MemberID    snowflake.ID  `gorm:"not null;index" json:"member_id"`
	Status      string        `gorm:"not null;default:'DRAFT'" json:"status"`
	Amount      float64       `gorm:"type:numeric(14,2);not null;default:0" json:"amount"`
	TaxAmount   float64       `gorm:"type:numeric(14,2);not null;default:0" json:"tax_amount"`
	TotalAmount float64       `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	Currency    string        `gorm:"not null" json:"currency"`
	ItemName    string        `gorm:"not null;default:''" json:"item_name"`
	BillingName string        `gorm:"not null;default:''" json:"billing_name"`
	AddressID   *snowflake.ID `gorm:"" json:"address_id,omitempty"`
	IssuedAt    *time.Time    `gorm:"" json:"issued_at,omitempty"`
	DueAt       *time.Time    `gorm:"" json:"due_at,omitempty"`
	PaidAt      *time.Time    `gorm:"" json:"paid_at,omitempty"`
	CancelledAt *time.Time    `gorm:"" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

var (
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrPaymentNotReceived = errors.New("payment_not_received")
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*Invoice, error)
	// Insert is conditional on the payment id uniqueness constraint; it
	// reports false when a concurrent insert won the race.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string, at time.Time) error
}

// Display carries everything the PDF renderer and confirmation email need.
type Display struct {
	Invoice     Invoice
	MemberEmail string
	ItemTitle   string
}

type Service interface {
	// EnsureInvoice returns the invoice for the payment, creating a draft
	// when none exists. It never submits.
	EnsureInvoice(ctx context.Context, payment *paymentdomain.Payment, actor string) (*Invoice, error)
	// Submit moves a draft to PAID and runs the transition's side
	// effects. Submitting an already paid invoice is a no-op.
	Submit(ctx context.Context, invoice *Invoice, actor string) (*Invoice, error)
	// Cancel moves an invoice to CANCELLED. Cancelling a paid invoice
	// reverts the payment's received flag.
	Cancel(ctx context.Context, id snowflake.ID, actor string) (*Invoice, error)
	// InvoiceForEnrollment is the manual path: it synthesizes a received
	// payment from the course price, then ensures and submits an invoice.
	InvoiceForEnrollment(ctx context.Context, enrollmentID snowflake.ID, actor string) (*Invoice, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	FindDisplay(ctx context.Context, id snowflake.ID) (*Display, error)
}
