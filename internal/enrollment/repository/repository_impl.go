package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/opencampus/campuspay/internal/enrollment/domain"
	pkgdb "github.com/opencampus/campuspay/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, member_id, course_id, member_type, payment_id, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Enrollment, error) {
	var item domain.Enrollment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM enrollments
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

func (r *repo) FindByMemberAndCourse(ctx context.Context, db *gorm.DB, memberID, courseID snowflake.ID) (*domain.Enrollment, error) {
	var item domain.Enrollment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM enrollments
		 WHERE member_id = ? AND course_id = ?
		 LIMIT 1`,
		memberID,
		courseID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, enrollment *domain.Enrollment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO enrollments (id, member_id, course_id, member_type, payment_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		enrollment.ID,
		enrollment.MemberID,
		enrollment.CourseID,
		enrollment.MemberType,
		enrollment.PaymentID,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return true, nil
}

func (r *repo) SetPaymentReference(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE enrollments
		 SET payment_id = ?, updated_at = ?
		 WHERE id = ?`,
		paymentID,
		time.Now().UTC(),
		id,
	).Error
}
