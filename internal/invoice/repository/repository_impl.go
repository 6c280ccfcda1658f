package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/opencampus/campuspay/internal/invoice/domain"
	pkgdb "github.com/opencampus/campuspay/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, number, payment_id, member_id, status, amount, tax_amount,
	total_amount, currency, item_name, billing_name, address_id, issued_at, due_at,
	paid_at, cancelled_at, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var item domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM invoices
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*domain.Invoice, error) {
	var item domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM invoices
		 WHERE payment_id = ?
		 LIMIT 1`,
		paymentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, number, payment_id, member_id, status, amount, tax_amount,
			total_amount, currency, item_name, billing_name, address_id,
			issued_at, due_at, paid_at, cancelled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.Number,
		invoice.PaymentID,
		invoice.MemberID,
		invoice.Status,
		invoice.Amount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.Currency,
		invoice.ItemName,
		invoice.BillingName,
		invoice.AddressID,
		invoice.IssuedAt,
		invoice.DueAt,
		invoice.PaidAt,
		invoice.CancelledAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return true, nil
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string, at time.Time) error {
	var stampColumn string
	switch status {
	case domain.StatusPaid:
		stampColumn = "paid_at"
	case domain.StatusCancelled:
		stampColumn = "cancelled_at"
	default:
		return db.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
			status, at, id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, `+stampColumn+` = ?, updated_at = ? WHERE id = ?`,
		status, at, at, id,
	).Error
}
