package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindCourseByRef resolves a course by slug, or by id when ref parses
	// as one. Gateway payloads carry the slug.
	FindCourseByRef(ctx context.Context, db *gorm.DB, ref string) (*Course, error)
	FindCourseByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Course, error)
	FindBatchByRef(ctx context.Context, db *gorm.DB, ref string) (*Batch, error)
	FindBatchByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Batch, error)
}
