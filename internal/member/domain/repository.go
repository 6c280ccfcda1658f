package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindEnabledByEmail(ctx context.Context, db *gorm.DB, email string) (*Member, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Member, error)
}
