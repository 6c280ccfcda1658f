// Package domain contains billing address persistence models.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/opencampus/campuspay/internal/member/domain"
)

// Address is a billing address. Title is the deterministic key
// "<billing name> - Billing" so repeated synthesis reuses one row.
type Address struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	MemberID  *snowflake.ID `gorm:"" json:"member_id,omitempty"`
	Title     string        `gorm:"not null;uniqueIndex" json:"title"`
	Line1     string        `gorm:"not null;default:''" json:"line1"`
	City      string        `gorm:"not null;default:''" json:"city"`
	State     string        `gorm:"not null;default:''" json:"state"`
	Country   string        `gorm:"not null;default:''" json:"country"`
	Pincode   string        `gorm:"not null;default:''" json:"pincode"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Address) TableName() string { return "addresses" }

type Service interface {
	// EnsureBilling returns the member's billing address, creating a
	// placeholder keyed by billing name when none exists. When even the
	// insert fails it falls back to the least specific address on record
	// rather than failing the payment (degraded mode).
	EnsureBilling(ctx context.Context, m *memberdomain.Member) (*Address, error)
}
