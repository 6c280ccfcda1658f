package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/opencampus/campuspay/internal/clock"
	"github.com/opencampus/campuspay/internal/enrollment/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("enrollment.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) EnsureEnrollment(ctx context.Context, memberID, courseID snowflake.ID, paymentID *snowflake.ID) (*domain.Enrollment, error) {
	existing, err := s.repo.FindByMemberAndCourse(ctx, s.db, memberID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.backfillPayment(ctx, existing, paymentID)
	}

	now := s.clock.Now().UTC()
	enrollment := &domain.Enrollment{
		ID:         s.genID.Generate(),
		MemberID:   memberID,
		CourseID:   courseID,
		MemberType: "student",
		PaymentID:  paymentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	inserted, err := s.repo.Insert(ctx, s.db, enrollment)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost the insert race; the winner's row is authoritative.
		winner, err := s.repo.FindByMemberAndCourse(ctx, s.db, memberID, courseID)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, domain.ErrEnrollmentNotFound
		}
		return s.backfillPayment(ctx, winner, paymentID)
	}
	return enrollment, nil
}

// backfillPayment points the enrollment at the payment that settled it.
// The most recent payment wins even when a reference is already set.
func (s *Service) backfillPayment(ctx context.Context, enrollment *domain.Enrollment, paymentID *snowflake.ID) (*domain.Enrollment, error) {
	if paymentID == nil {
		return enrollment, nil
	}
	if err := s.repo.SetPaymentReference(ctx, s.db, enrollment.ID, *paymentID); err != nil {
		return nil, err
	}
	enrollment.PaymentID = paymentID
	return enrollment, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.Enrollment, error) {
	return s.repo.FindByID(ctx, s.db, id)
}
