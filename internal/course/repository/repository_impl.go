package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/opencampus/campuspay/internal/course/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindCourseByRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Course, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	item, err := scanCourse(ctx, db, `SELECT id, slug, title, price, currency, published, created_at, updated_at
		 FROM courses WHERE slug = ? LIMIT 1`, ref)
	if err != nil || item != nil {
		return item, err
	}

	id, parseErr := snowflake.ParseString(ref)
	if parseErr != nil {
		return nil, nil
	}
	return r.FindCourseByID(ctx, db, id)
}

func (r *repo) FindCourseByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Course, error) {
	return scanCourse(ctx, db, `SELECT id, slug, title, price, currency, published, created_at, updated_at
		 FROM courses WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindBatchByRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Batch, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	item, err := scanBatch(ctx, db, `SELECT id, slug, title, course_id, created_at
		 FROM batches WHERE slug = ? LIMIT 1`, ref)
	if err != nil || item != nil {
		return item, err
	}

	id, parseErr := snowflake.ParseString(ref)
	if parseErr != nil {
		return nil, nil
	}
	return r.FindBatchByID(ctx, db, id)
}

func (r *repo) FindBatchByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Batch, error) {
	return scanBatch(ctx, db, `SELECT id, slug, title, course_id, created_at
		 FROM batches WHERE id = ? LIMIT 1`, id)
}

func scanCourse(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Course, error) {
	var item domain.Course
	if err := db.WithContext(ctx).Raw(query, arg).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func scanBatch(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Batch, error) {
	var item domain.Batch
	if err := db.WithContext(ctx).Raw(query, arg).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
