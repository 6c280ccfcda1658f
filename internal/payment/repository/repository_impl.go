package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/opencampus/campuspay/internal/payment/domain"
	pkgdb "github.com/opencampus/campuspay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, member_id, target_type, target_id, amount, currency, gateway,
	gateway_payment_id, gateway_order_id, received, billing_name, address_id,
	gstin, pan, metadata, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payments
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

func (r *repo) FindByGatewayPaymentID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*domain.Payment, error) {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return nil, nil
	}

	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payments
		 WHERE gateway_payment_id = ?
		 LIMIT 1`,
		gatewayPaymentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, member_id, target_type, target_id, amount, currency, gateway,
			gateway_payment_id, gateway_order_id, received, billing_name, address_id,
			gstin, pan, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.MemberID,
		payment.TargetType,
		payment.TargetID,
		payment.Amount,
		payment.Currency,
		payment.Gateway,
		payment.GatewayPaymentID,
		payment.GatewayOrderID,
		payment.Received,
		payment.BillingName,
		payment.AddressID,
		payment.GSTIN,
		payment.PAN,
		payment.Metadata,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return true, nil
}

func (r *repo) UpdateFromRedelivery(ctx context.Context, db *gorm.DB, id snowflake.ID, amount float64, currency string, received bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET amount = ?, currency = ?, received = ?, updated_at = ?
		 WHERE id = ?`,
		amount,
		currency,
		received,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) SetReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, received bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET received = ?, updated_at = ?
		 WHERE id = ?`,
		received,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) ListReceivedWithoutInvoice(ctx context.Context, db *gorm.DB) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT p.id, p.member_id, p.target_type, p.target_id, p.amount, p.currency,
			p.gateway, p.gateway_payment_id, p.gateway_order_id, p.received,
			p.billing_name, p.address_id, p.gstin, p.pan, p.metadata,
			p.created_at, p.updated_at
		 FROM payments p
		 LEFT JOIN invoices i ON i.payment_id = p.id AND i.status = 'PAID'
		 WHERE p.received = TRUE AND i.id IS NULL
		 ORDER BY p.created_at ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
