// Package domain contains persistence models for purchasable learning content.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Course is a purchasable course. Chapters and lessons live elsewhere; the
// reconciliation core only needs identity, title and price.
type Course struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Slug      string       `gorm:"not null;uniqueIndex" json:"slug"`
	Title     string       `gorm:"not null" json:"title"`
	Price     float64      `gorm:"type:numeric(14,2);not null;default:0" json:"price"`
	Currency  string       `gorm:"not null;default:'INR'" json:"currency"`
	Published bool         `gorm:"not null;default:true" json:"published"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Course) TableName() string { return "courses" }

// Batch is a cohort of a course sold as its own target.
type Batch struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Slug      string        `gorm:"not null;uniqueIndex" json:"slug"`
	Title     string        `gorm:"not null" json:"title"`
	CourseID  *snowflake.ID `gorm:"" json:"course_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Batch) TableName() string { return "batches" }

var (
	ErrCourseNotFound = errors.New("course_not_found")
	ErrBatchNotFound  = errors.New("batch_not_found")
)
