package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/opencampus/campuspay/internal/audit/domain"
	"github.com/opencampus/campuspay/internal/clock"
	coursedomain "github.com/opencampus/campuspay/internal/course/domain"
	enrollmentdomain "github.com/opencampus/campuspay/internal/enrollment/domain"
	"github.com/opencampus/campuspay/internal/invoice/domain"
	memberdomain "github.com/opencampus/campuspay/internal/member/domain"
	paymentdomain "github.com/opencampus/campuspay/internal/payment/domain"
)

// Invoices fall due 30 days after issue.
const dueAfter = 30 * 24 * time.Hour

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Payments    paymentdomain.Service
	Enrollments enrollmentdomain.Service
	Members     memberdomain.Repository
	Courses     coursedomain.Repository
	Audit       auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	payments    paymentdomain.Service
	enrollments enrollmentdomain.Service
	members     memberdomain.Repository
	courses     coursedomain.Repository
	audit       auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		payments:    p.Payments,
		enrollments: p.Enrollments,
		members:     p.Members,
		courses:     p.Courses,
		audit:       p.Audit,
	}
}

func (s *Service) EnsureInvoice(ctx context.Context, payment *paymentdomain.Payment, actor string) (*domain.Invoice, error) {
	if payment == nil {
		return nil, domain.ErrInvoiceNotFound
	}

	existing, err := s.repo.FindByPaymentID(ctx, s.db, payment.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now().UTC()
	due := now.Add(dueAfter)
	invoice := &domain.Invoice{
		ID:          s.genID.Generate(),
		PaymentID:   payment.ID,
		MemberID:    payment.MemberID,
		Status:      domain.StatusDraft,
		Amount:      payment.Amount,
		TaxAmount:   0,
		Currency:    payment.Currency,
		ItemName:    s.itemName(ctx, payment),
		BillingName: payment.BillingName,
		AddressID:   payment.AddressID,
		IssuedAt:    &now,
		DueAt:       &due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	invoice.TotalAmount = invoice.Amount + invoice.TaxAmount
	invoice.Number = fmt.Sprintf("INV-%s", invoice.ID.String())

	inserted, err := s.repo.Insert(ctx, s.db, invoice)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent delivery invoiced this payment first.
		return s.repo.FindByPaymentID(ctx, s.db, payment.ID)
	}

	s.auditLog(ctx, actor, "invoice.created", invoice, map[string]any{
		"payment_id": payment.ID.String(),
		"amount":     invoice.Amount,
		"currency":   invoice.Currency,
	})
	return invoice, nil
}

func (s *Service) Submit(ctx context.Context, invoice *domain.Invoice, actor string) (*domain.Invoice, error) {
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	if invoice.Status == domain.StatusPaid {
		return invoice, nil
	}

	next, commands, err := domain.Transition(invoice.Status, domain.ActionSubmit)
	if err != nil {
		return nil, err
	}

	// Side effects run before the status write. A failed enrollment leaves
	// the invoice draft, so the catch-up scan can finish the submission.
	for _, command := range commands {
		if err := s.runCommand(ctx, invoice, command); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	if err := s.repo.SetStatus(ctx, s.db, invoice.ID, next, now); err != nil {
		return nil, err
	}
	invoice.Status = next
	invoice.PaidAt = &now

	s.auditLog(ctx, actor, "invoice.submitted", invoice, nil)
	return invoice, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, actor string) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}

	next, commands, err := domain.Transition(invoice.Status, domain.ActionCancel)
	if err != nil {
		return nil, err
	}

	for _, command := range commands {
		if err := s.runCommand(ctx, invoice, command); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	if err := s.repo.SetStatus(ctx, s.db, invoice.ID, next, now); err != nil {
		return nil, err
	}
	invoice.Status = next
	invoice.CancelledAt = &now

	s.auditLog(ctx, actor, "invoice.cancelled", invoice, nil)
	return invoice, nil
}

// runCommand executes one side effect named by the state machine.
func (s *Service) runCommand(ctx context.Context, invoice *domain.Invoice, command domain.Command) error {
	switch command {
	case domain.CommandMarkPaymentReceived:
		return s.payments.SetReceived(ctx, invoice.PaymentID, true)
	case domain.CommandRevertPaymentReceived:
		return s.payments.SetReceived(ctx, invoice.PaymentID, false)
	case domain.CommandEnsureEnrollment:
		payment, err := s.payments.FindByID(ctx, invoice.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil || payment.TargetType != paymentdomain.TargetTypeCourse {
			// Batch access is managed by the batch roster, not here.
			return nil
		}
		paymentID := payment.ID
		_, err = s.enrollments.EnsureEnrollment(ctx, payment.MemberID, payment.TargetID, &paymentID)
		return err
	default:
		return nil
	}
}

func (s *Service) InvoiceForEnrollment(ctx context.Context, enrollmentID snowflake.ID, actor string) (*domain.Invoice, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, enrollmentdomain.ErrEnrollmentNotFound
	}

	// Reuse the enrollment's payment when it already has one.
	if enrollment.PaymentID != nil {
		payment, err := s.payments.FindByID(ctx, *enrollment.PaymentID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			invoice, err := s.EnsureInvoice(ctx, payment, actor)
			if err != nil {
				return nil, err
			}
			return s.Submit(ctx, invoice, actor)
		}
	}

	member, err := s.members.FindByID(ctx, s.db, enrollment.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}
	course, err := s.courses.FindCourseByID(ctx, s.db, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, coursedomain.ErrCourseNotFound
	}

	payment, err := s.payments.RecordManual(ctx, member.ID, member.BillingName(),
		paymentdomain.TargetTypeCourse, course.ID, course.Price, course.Currency)
	if err != nil {
		return nil, err
	}

	invoice, err := s.EnsureInvoice(ctx, payment, actor)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, invoice, actor)
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) FindDisplay(ctx context.Context, id snowflake.ID) (*domain.Display, error) {
	invoice, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	display := &domain.Display{Invoice: *invoice, ItemTitle: invoice.ItemName}
	member, err := s.members.FindByID(ctx, s.db, invoice.MemberID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		display.MemberEmail = member.Email
	}
	return display, nil
}

func (s *Service) itemName(ctx context.Context, payment *paymentdomain.Payment) string {
	switch payment.TargetType {
	case paymentdomain.TargetTypeBatch:
		batch, err := s.courses.FindBatchByID(ctx, s.db, payment.TargetID)
		if err == nil && batch != nil {
			return batch.Title
		}
	default:
		course, err := s.courses.FindCourseByID(ctx, s.db, payment.TargetID)
		if err == nil && course != nil {
			return course.Title
		}
	}
	return "Course Purchase"
}

func (s *Service) auditLog(ctx context.Context, actor, action string, invoice *domain.Invoice, metadata map[string]any) {
	targetID := invoice.ID.String()
	if err := s.audit.AuditLog(ctx, actor, action, "invoice", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
