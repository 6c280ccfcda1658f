package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/opencampus/campuspay/internal/audit/domain"
	coursedomain "github.com/opencampus/campuspay/internal/course/domain"
	invoicedomain "github.com/opencampus/campuspay/internal/invoice/domain"
	memberdomain "github.com/opencampus/campuspay/internal/member/domain"
	"github.com/opencampus/campuspay/internal/observability"
	paymentdomain "github.com/opencampus/campuspay/internal/payment/domain"
	"github.com/opencampus/campuspay/internal/payment/gateway"
	"github.com/opencampus/campuspay/internal/providers/email"
	"github.com/opencampus/campuspay/internal/reconcile/domain"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Normalizer *gateway.Normalizer
	Payments   paymentdomain.Service
	Invoices   invoicedomain.Service
	Audit      auditdomain.Service
	Email      email.Provider
	Metrics    *observability.Metrics
}

type Service struct {
	log        *zap.Logger
	normalizer *gateway.Normalizer
	payments   paymentdomain.Service
	invoices   invoicedomain.Service
	audit      auditdomain.Service
	email      email.Provider
	metrics    *observability.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("reconcile.service"),
		normalizer: p.Normalizer,
		payments:   p.Payments,
		invoices:   p.Invoices,
		audit:      p.Audit,
		email:      p.Email,
		metrics:    p.Metrics,
	}
}

func (s *Service) Reconcile(ctx context.Context, payload []byte, headers http.Header) (*domain.Result, error) {
	event, err := s.normalizer.Classify(payload, headers)
	if err != nil {
		return s.classificationResult(ctx, payload, err)
	}

	actor := fmt.Sprintf("gateway:%s", event.Gateway)

	payment, err := s.payments.UpsertPayment(ctx, event)
	if err != nil {
		return s.paymentResult(ctx, actor, event, err)
	}

	invoice, err := s.invoices.EnsureInvoice(ctx, payment, actor)
	if err == nil {
		invoice, err = s.invoices.Submit(ctx, invoice, actor)
	}
	if err != nil {
		// The payment is durable; the catch-up scan will finish the job.
		s.log.Error("invoice generation failed",
			zap.String("payment", payment.ID.String()), zap.Error(err))
		s.metrics.WebhookEvents.WithLabelValues(event.Gateway, "failed").Inc()
		s.auditFailure(ctx, actor, "invoice.generation_failed", payment.ID.String(), err)
		return &domain.Result{
			Success:   false,
			Message:   "payment recorded but invoice generation failed",
			Gateway:   event.Gateway,
			PaymentID: payment.ID.String(),
		}, nil
	}

	s.sendConfirmation(ctx, invoice)

	s.metrics.WebhookEvents.WithLabelValues(event.Gateway, "reconciled").Inc()
	targetID := payment.ID.String()
	_ = s.audit.AuditLog(ctx, actor, "payment.reconciled", "payment", &targetID, map[string]any{
		"invoice_id": invoice.ID.String(),
		"amount":     payment.Amount,
		"currency":   payment.Currency,
	})

	return &domain.Result{
		Success:   true,
		Message:   "payment reconciled",
		Gateway:   event.Gateway,
		PaymentID: payment.ID.String(),
		InvoiceID: invoice.ID.String(),
	}, nil
}

// classificationResult maps classifier errors to results or transport
// errors. Empty, malformed and unsigned payloads stay errors so the HTTP
// layer can reject them; recognized dead ends become terminal results.
func (s *Service) classificationResult(ctx context.Context, payload []byte, err error) (*domain.Result, error) {
	var unsupported *gateway.UnsupportedEventError
	if errors.As(err, &unsupported) {
		s.metrics.WebhookEvents.WithLabelValues("unknown", "unsupported").Inc()
		_ = s.audit.AuditLog(ctx, "gateway:unknown", "webhook.unsupported", "webhook", nil, map[string]any{
			"received_event": unsupported.ReceivedEvent,
		})
		return &domain.Result{
			Success:       false,
			Message:       "webhook event not supported",
			ReceivedEvent: unsupported.ReceivedEvent,
		}, nil
	}

	var ignored *gateway.IgnoredEventError
	if errors.As(err, &ignored) {
		s.metrics.WebhookEvents.WithLabelValues("stripe", "ignored").Inc()
		return &domain.Result{
			Success: true,
			Message: err.Error(),
		}, nil
	}

	switch {
	case errors.Is(err, paymentdomain.ErrMissingBuyerEmail),
		errors.Is(err, paymentdomain.ErrMissingTarget),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		s.metrics.WebhookEvents.WithLabelValues("unknown", "failed").Inc()
		s.auditFailure(ctx, "gateway:unknown", "webhook.invalid", "", err)
		return &domain.Result{
			Success: false,
			Message: err.Error(),
		}, nil
	}

	s.metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
	return nil, err
}

// paymentResult maps ledger-stage failures to result envelopes naming the
// missing entity. Unexpected storage errors pass through.
func (s *Service) paymentResult(ctx context.Context, actor string, event *paymentdomain.PaymentEvent, err error) (*domain.Result, error) {
	var message string
	switch {
	case errors.Is(err, memberdomain.ErrMemberNotFound):
		message = fmt.Sprintf("no enabled member for email %s", event.BuyerEmail)
	case errors.Is(err, coursedomain.ErrCourseNotFound):
		message = fmt.Sprintf("no course matching %s", event.TargetRef)
	case errors.Is(err, coursedomain.ErrBatchNotFound):
		message = fmt.Sprintf("no batch matching %s", event.TargetRef)
	case errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrMissingBuyerEmail),
		errors.Is(err, paymentdomain.ErrMissingTarget):
		message = err.Error()
	default:
		return nil, err
	}

	s.metrics.WebhookEvents.WithLabelValues(event.Gateway, "failed").Inc()
	s.auditFailure(ctx, actor, "payment.rejected", event.GatewayPaymentID, err)
	return &domain.Result{
		Success: false,
		Message: message,
		Gateway: event.Gateway,
	}, nil
}

func (s *Service) ReconcileUnprocessed(ctx context.Context, actor string) (*domain.CatchupResult, error) {
	pending, err := s.payments.ListReceivedWithoutInvoice(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.CatchupResult{Total: len(pending), Items: make([]domain.CatchupItem, 0, len(pending))}
	for i := range pending {
		payment := pending[i]
		item := domain.CatchupItem{PaymentID: payment.ID.String()}

		invoice, err := s.invoices.EnsureInvoice(ctx, &payment, actor)
		if err == nil {
			invoice, err = s.invoices.Submit(ctx, invoice, actor)
		}
		if err != nil {
			// One bad payment must not stall the rest of the scan.
			s.log.Error("catch-up invoicing failed",
				zap.String("payment", item.PaymentID), zap.Error(err))
			s.metrics.CatchupPayments.WithLabelValues("failed").Inc()
			item.Message = err.Error()
			result.Failed++
		} else {
			s.metrics.CatchupPayments.WithLabelValues("invoiced").Inc()
			item.Success = true
			item.InvoiceID = invoice.ID.String()
			result.Invoiced++
		}
		result.Items = append(result.Items, item)
	}

	targetID := actor
	_ = s.audit.AuditLog(ctx, actor, "reconcile.catchup", "reconcile", &targetID, map[string]any{
		"total":    result.Total,
		"invoiced": result.Invoiced,
		"failed":   result.Failed,
	})
	return result, nil
}

// sendConfirmation mails the buyer without blocking the webhook response.
func (s *Service) sendConfirmation(ctx context.Context, invoice *invoicedomain.Invoice) {
	bg := context.WithoutCancel(ctx)
	go func() {
		display, err := s.invoices.FindDisplay(bg, invoice.ID)
		if err != nil || display.MemberEmail == "" {
			return
		}
		if err := s.email.SendPaymentConfirmation(bg, display.MemberEmail, display); err != nil {
			s.log.Warn("confirmation email failed",
				zap.String("invoice", invoice.ID.String()), zap.Error(err))
		}
	}()
}

func (s *Service) auditFailure(ctx context.Context, actor, action, targetID string, err error) {
	var target *string
	if targetID != "" {
		target = &targetID
	}
	_ = s.audit.AuditLog(ctx, actor, action, "webhook", target, map[string]any{
		"error": err.Error(),
	})
}
