package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/opencampus/campuspay/internal/member/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindEnabledByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}

	var item domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, full_name, enabled, created_at, updated_at
		 FROM members
		 WHERE email = ? AND enabled = TRUE
		 LIMIT 1`,
		email,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Member, error) {
	var item domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, full_name, enabled, created_at, updated_at
		 FROM members
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
