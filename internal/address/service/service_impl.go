package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/opencampus/campuspay/internal/address/domain"
	memberdomain "github.com/opencampus/campuspay/internal/member/domain"
	"github.com/opencampus/campuspay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("address.service"),
		genID: p.GenID,
	}
}

func (s *Service) EnsureBilling(ctx context.Context, m *memberdomain.Member) (*domain.Address, error) {
	if m == nil {
		return nil, memberdomain.ErrMemberNotFound
	}

	title := fmt.Sprintf("%s - Billing", m.BillingName())

	existing, err := s.findByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	memberID := m.ID
	item := domain.Address{
		ID:        s.genID.Generate(),
		MemberID:  &memberID,
		Title:     title,
		Line1:     "Online Course Purchase",
		CreatedAt: time.Now().UTC(),
	}

	insertErr := s.db.WithContext(ctx).Exec(
		`INSERT INTO addresses (id, member_id, title, line1, city, state, country, pincode, created_at)
		 VALUES (?, ?, ?, ?, '', '', '', '', ?)`,
		item.ID,
		item.MemberID,
		item.Title,
		item.Line1,
		item.CreatedAt,
	).Error
	if insertErr == nil {
		return &item, nil
	}
	if db.IsDuplicateKeyErr(insertErr) {
		return s.findByTitle(ctx, title)
	}

	s.log.Warn("billing address insert failed, falling back to least specific address",
		zap.String("member", m.ID.String()), zap.Error(insertErr))
	fallback, fbErr := s.leastSpecific(ctx)
	if fbErr != nil {
		return nil, fbErr
	}
	if fallback == nil {
		return nil, insertErr
	}
	return fallback, nil
}

func (s *Service) findByTitle(ctx context.Context, title string) (*domain.Address, error) {
	var item domain.Address
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, member_id, title, line1, city, state, country, pincode, created_at
		 FROM addresses
		 WHERE title = ?
		 LIMIT 1`,
		title,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// leastSpecific picks the address with the fewest populated fields so the
// degraded-mode payment carries as little wrong detail as possible.
func (s *Service) leastSpecific(ctx context.Context) (*domain.Address, error) {
	var item domain.Address
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, member_id, title, line1, city, state, country, pincode, created_at
		 FROM addresses
		 ORDER BY
			(CASE WHEN line1 <> '' THEN 1 ELSE 0 END) +
			(CASE WHEN city <> '' THEN 1 ELSE 0 END) +
			(CASE WHEN state <> '' THEN 1 ELSE 0 END) +
			(CASE WHEN country <> '' THEN 1 ELSE 0 END) +
			(CASE WHEN pincode <> '' THEN 1 ELSE 0 END) ASC,
			created_at ASC
		 LIMIT 1`,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
