// Package domain contains persistence models for learners.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Member is a learner account. Account management itself belongs to the
// auth subsystem; this service only resolves members by e-mail.
type Member struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"not null;uniqueIndex" json:"email"`
	FullName  string       `gorm:"not null" json:"full_name"`
	Enabled   bool         `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

// BillingName returns the name used on payment and invoice records.
func (m *Member) BillingName() string {
	if m.FullName != "" {
		return m.FullName
	}
	return m.Email
}

var ErrMemberNotFound = errors.New("member_not_found")
