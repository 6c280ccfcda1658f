// Package domain contains course membership models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Enrollment grants a member access to a course. At most one row exists per
// (member, course), enforced by ux_enrollments_member_course.
type Enrollment struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	MemberID   snowflake.ID  `gorm:"not null;uniqueIndex:ux_enrollments_member_course" json:"member_id"`
	CourseID   snowflake.ID  `gorm:"not null;uniqueIndex:ux_enrollments_member_course" json:"course_id"`
	MemberType string        `gorm:"not null;default:'student'" json:"member_type"`
	PaymentID  *snowflake.ID `gorm:"" json:"payment_id,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Enrollment) TableName() string { return "enrollments" }

var ErrEnrollmentNotFound = errors.New("enrollment_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Enrollment, error)
	FindByMemberAndCourse(ctx context.Context, db *gorm.DB, memberID, courseID snowflake.ID) (*Enrollment, error)
	// Insert is conditional on the (member, course) uniqueness constraint;
	// it reports false when a concurrent insert won the race.
	Insert(ctx context.Context, db *gorm.DB, enrollment *Enrollment) (bool, error)
	// SetPaymentReference updates only the payment link. Enrollment rows
	// may carry tutor-granted access; nothing else is touched.
	SetPaymentReference(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentID snowflake.ID) error
}

type Service interface {
	// EnsureEnrollment enrolls the member in the course, or backfills the
	// payment reference on an existing enrollment that has none.
	EnsureEnrollment(ctx context.Context, memberID, courseID snowflake.ID, paymentID *snowflake.ID) (*Enrollment, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Enrollment, error)
}
