package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	addressdomain "github.com/opencampus/campuspay/internal/address/domain"
	"github.com/opencampus/campuspay/internal/clock"
	coursedomain "github.com/opencampus/campuspay/internal/course/domain"
	memberdomain "github.com/opencampus/campuspay/internal/member/domain"
	"github.com/opencampus/campuspay/internal/payment/domain"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Members   memberdomain.Repository
	Courses   coursedomain.Repository
	Addresses addressdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	members   memberdomain.Repository
	courses   coursedomain.Repository
	addresses addressdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		members:   p.Members,
		courses:   p.Courses,
		addresses: p.Addresses,
	}
}

func (s *Service) UpsertPayment(ctx context.Context, event *domain.PaymentEvent) (*domain.Payment, error) {
	if event == nil {
		return nil, domain.ErrInvalidEvent
	}
	if event.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(event.Currency) == "" {
		return nil, domain.ErrInvalidCurrency
	}
	if strings.TrimSpace(event.BuyerEmail) == "" {
		return nil, domain.ErrMissingBuyerEmail
	}

	// Redelivery short-circuit: the gateway payment id already landed.
	if event.GatewayPaymentID != "" {
		existing, err := s.repo.FindByGatewayPaymentID(ctx, s.db, event.GatewayPaymentID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := s.repo.UpdateFromRedelivery(ctx, s.db, existing.ID, event.Amount, event.Currency, true); err != nil {
				return nil, err
			}
			return s.repo.FindByID(ctx, s.db, existing.ID)
		}
	}

	member, err := s.members.FindEnabledByEmail(ctx, s.db, event.BuyerEmail)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}

	targetType, targetID, err := s.resolveTarget(ctx, event)
	if err != nil {
		return nil, err
	}

	var addressID *snowflake.ID
	address, err := s.addresses.EnsureBilling(ctx, member)
	if err != nil {
		s.log.Warn("billing address unavailable, recording payment without one",
			zap.String("member", member.ID.String()), zap.Error(err))
	} else if address != nil {
		id := address.ID
		addressID = &id
	}

	now := s.clock.Now().UTC()
	payment := &domain.Payment{
		ID:             s.genID.Generate(),
		MemberID:       member.ID,
		TargetType:     targetType,
		TargetID:       targetID,
		Amount:         event.Amount,
		Currency:       event.Currency,
		Gateway:        event.Gateway,
		GatewayOrderID: event.GatewayOrderID,
		Received:       true,
		BillingName:    member.BillingName(),
		AddressID:      addressID,
		Metadata:       metadataMap(event.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if event.GatewayPaymentID != "" {
		gatewayPaymentID := event.GatewayPaymentID
		payment.GatewayPaymentID = &gatewayPaymentID
	}

	inserted, err := s.repo.Insert(ctx, s.db, payment)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent delivery won the insert race.
		return s.repo.FindByGatewayPaymentID(ctx, s.db, event.GatewayPaymentID)
	}
	return payment, nil
}

func (s *Service) resolveTarget(ctx context.Context, event *domain.PaymentEvent) (string, snowflake.ID, error) {
	ref := strings.TrimSpace(event.TargetRef)
	if ref == "" {
		return "", 0, domain.ErrMissingTarget
	}

	if event.TargetType == domain.TargetTypeBatch {
		batch, err := s.courses.FindBatchByRef(ctx, s.db, ref)
		if err != nil {
			return "", 0, err
		}
		if batch == nil {
			return "", 0, coursedomain.ErrBatchNotFound
		}
		return domain.TargetTypeBatch, batch.ID, nil
	}

	course, err := s.courses.FindCourseByRef(ctx, s.db, ref)
	if err != nil {
		return "", 0, err
	}
	if course == nil {
		return "", 0, coursedomain.ErrCourseNotFound
	}
	return domain.TargetTypeCourse, course.ID, nil
}

func (s *Service) RecordManual(ctx context.Context, memberID snowflake.ID, billingName string, targetType string, targetID snowflake.ID, amount float64, currency string) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(currency) == "" {
		return nil, domain.ErrInvalidCurrency
	}

	now := s.clock.Now().UTC()
	payment := &domain.Payment{
		ID:          s.genID.Generate(),
		MemberID:    memberID,
		TargetType:  targetType,
		TargetID:    targetID,
		Amount:      amount,
		Currency:    strings.ToUpper(currency),
		Gateway:     "manual",
		Received:    true,
		BillingName: billingName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Insert(ctx, s.db, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) SetReceived(ctx context.Context, id snowflake.ID, received bool) error {
	return s.repo.SetReceived(ctx, s.db, id, received)
}

func (s *Service) ListReceivedWithoutInvoice(ctx context.Context) ([]domain.Payment, error) {
	return s.repo.ListReceivedWithoutInvoice(ctx, s.db)
}

func metadataMap(metadata map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
