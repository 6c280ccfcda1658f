// Package domain defines the append-only audit trail. Every financial write
// and every reconciliation failure leaves a row here so no gateway
// notification is ever dropped without a durable trace.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Actor      string            `gorm:"not null;default:''" json:"actor"`
	Action     string            `gorm:"not null" json:"action"`
	TargetType string            `gorm:"not null" json:"target_type"`
	TargetID   *string           `gorm:"" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type Service interface {
	// AuditLog records an action. Actor is the explicit caller identity
	// ("gateway:stripe", "operator", ...), never ambient session state.
	AuditLog(ctx context.Context, actor string, action string, targetType string, targetID *string, metadata map[string]any) error
}
