package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	addressservice "github.com/opencampus/campuspay/internal/address/service"
	auditservice "github.com/opencampus/campuspay/internal/audit/service"
	"github.com/opencampus/campuspay/internal/clock"
	courserepository "github.com/opencampus/campuspay/internal/course/repository"
	enrollmentdomain "github.com/opencampus/campuspay/internal/enrollment/domain"
	enrollmentrepository "github.com/opencampus/campuspay/internal/enrollment/repository"
	enrollmentservice "github.com/opencampus/campuspay/internal/enrollment/service"
	"github.com/opencampus/campuspay/internal/invoice/domain"
	"github.com/opencampus/campuspay/internal/invoice/repository"
	memberrepository "github.com/opencampus/campuspay/internal/member/repository"
	paymentdomain "github.com/opencampus/campuspay/internal/payment/domain"
	paymentrepository "github.com/opencampus/campuspay/internal/payment/repository"
	paymentservice "github.com/opencampus/campuspay/internal/payment/service"
	"github.com/opencampus/campuspay/internal/testutil"
)

type harness struct {
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	invoices    domain.Service
	payments    paymentdomain.Service
	enrollments enrollmentdomain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	log := testutil.NewLogger()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	members := memberrepository.Provide()
	courses := courserepository.Provide()

	payments := paymentservice.NewService(paymentservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fake,
		Repo:    paymentrepository.Provide(),
		Members: members,
		Courses: courses,
		Addresses: addressservice.NewService(addressservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
		}),
	})

	enrollments := enrollmentservice.NewService(enrollmentservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  enrollmentrepository.Provide(),
	})

	invoices := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fake,
		Repo:        repository.Provide(),
		Payments:    payments,
		Enrollments: enrollments,
		Members:     members,
		Courses:     courses,
		Audit: auditservice.NewService(auditservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
		}),
	})

	return &harness{
		db:          db,
		node:        node,
		clock:       fake,
		invoices:    invoices,
		payments:    payments,
		enrollments: enrollments,
	}
}

func (h *harness) paidPayment(t *testing.T, gatewayPaymentID string) *paymentdomain.Payment {
	t.Helper()

	payment, err := h.payments.UpsertPayment(context.Background(), &paymentdomain.PaymentEvent{
		Gateway:          "stripe",
		GatewayPaymentID: gatewayPaymentID,
		Amount:           25.00,
		Currency:         "USD",
		BuyerEmail:       "jane@example.com",
		TargetType:       paymentdomain.TargetTypeCourse,
		TargetRef:        "go-101",
	})
	if err != nil {
		t.Fatalf("upsert payment: %v", err)
	}
	return payment
}

func TestEnsureInvoiceCreatesDraft(t *testing.T) {
	h := newHarness(t)
	testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	invoice, err := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if err != nil {
		t.Fatalf("ensure invoice: %v", err)
	}

	if invoice.Status != domain.StatusDraft {
		t.Errorf("status = %s, want DRAFT", invoice.Status)
	}
	if !strings.HasPrefix(invoice.Number, "INV-") {
		t.Errorf("number = %q", invoice.Number)
	}
	if invoice.Amount != 25.00 || invoice.Currency != "USD" {
		t.Errorf("amount = %v %s", invoice.Amount, invoice.Currency)
	}
	if invoice.TaxAmount != 0 {
		t.Errorf("tax = %v, want 0", invoice.TaxAmount)
	}
	if invoice.TotalAmount != invoice.Amount+invoice.TaxAmount {
		t.Errorf("total = %v, want %v", invoice.TotalAmount, invoice.Amount+invoice.TaxAmount)
	}
	if invoice.ItemName != "Go 101" {
		t.Errorf("item = %q", invoice.ItemName)
	}
	if invoice.DueAt == nil || invoice.IssuedAt == nil {
		t.Fatal("issued/due dates missing")
	}
	if got := invoice.DueAt.Sub(*invoice.IssuedAt); got != 30*24*time.Hour {
		t.Errorf("due offset = %v, want 720h", got)
	}

	// Draft creation must not enroll.
	if n := testutil.Count(t, h.db, `SELECT COUNT(*) FROM enrollments`); n != 0 {
		t.Errorf("enrollments = %d, want 0", n)
	}
}

func TestEnsureInvoiceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	first, err := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("payment invoiced twice: %v vs %v", first.ID, second.ID)
	}
	if n := testutil.Count(t, h.db, `SELECT COUNT(*) FROM invoices`); n != 1 {
		t.Errorf("invoices = %d, want 1", n)
	}
}

func TestSubmitEnrollsAndMarksReceived(t *testing.T) {
	h := newHarness(t)
	member := testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	course := testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	invoice, err := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	submitted, err := h.invoices.Submit(context.Background(), invoice, "gateway:stripe")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if submitted.Status != domain.StatusPaid {
		t.Errorf("status = %s, want PAID", submitted.Status)
	}
	if submitted.PaidAt == nil {
		t.Error("paid_at missing")
	}

	enrollment, err := h.enrollments.EnsureEnrollment(context.Background(), member.ID, course.ID, nil)
	if err != nil {
		t.Fatalf("read enrollment: %v", err)
	}
	if enrollment.PaymentID == nil || *enrollment.PaymentID != payment.ID {
		t.Errorf("enrollment payment = %v, want %v", enrollment.PaymentID, payment.ID)
	}
	if n := testutil.Count(t, h.db, `SELECT COUNT(*) FROM enrollments`); n != 1 {
		t.Errorf("enrollments = %d, want 1", n)
	}

	fresh, err := h.payments.FindByID(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("read payment: %v", err)
	}
	if !fresh.Received {
		t.Error("payment not received after submit")
	}
}

func TestSubmitFailureLeavesDraft(t *testing.T) {
	h := newHarness(t)
	testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	invoice, err := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// Break the enrollment write so the submission side effect fails.
	if err := h.db.Exec(`ALTER TABLE enrollments RENAME TO enrollments_broken`).Error; err != nil {
		t.Fatalf("break enrollments: %v", err)
	}
	if _, err := h.invoices.Submit(context.Background(), invoice, "gateway:stripe"); err == nil {
		t.Fatal("submit succeeded without enrollment write")
	}

	var status string
	if err := h.db.Raw(`SELECT status FROM invoices WHERE id = ?`, invoice.ID).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != domain.StatusDraft {
		t.Errorf("status = %s, want DRAFT after failed submit", status)
	}

	// Once the write path recovers, the same draft submits cleanly.
	if err := h.db.Exec(`ALTER TABLE enrollments_broken RENAME TO enrollments`).Error; err != nil {
		t.Fatalf("restore enrollments: %v", err)
	}
	fresh, err := h.invoices.FindByID(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	submitted, err := h.invoices.Submit(context.Background(), fresh, "gateway:stripe")
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if submitted.Status != domain.StatusPaid {
		t.Errorf("status = %s, want PAID after retry", submitted.Status)
	}
	if n := testutil.Count(t, h.db, `SELECT COUNT(*) FROM enrollments`); n != 1 {
		t.Errorf("enrollments = %d, want 1", n)
	}
}

func TestSubmitPaidInvoiceIsNoOp(t *testing.T) {
	h := newHarness(t)
	testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	invoice, _ := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if _, err := h.invoices.Submit(context.Background(), invoice, "gateway:stripe"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := h.invoices.Submit(context.Background(), invoice, "gateway:stripe"); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if n := testutil.Count(t, h.db, `SELECT COUNT(*) FROM enrollments`); n != 1 {
		t.Errorf("enrollments = %d, want 1", n)
	}
}

func TestCancelPaidInvoiceRevertsReceived(t *testing.T) {
	h := newHarness(t)
	testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	invoice, _ := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if _, err := h.invoices.Submit(context.Background(), invoice, "gateway:stripe"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	cancelled, err := h.invoices.Cancel(context.Background(), invoice.ID, "operator")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}

	fresh, err := h.payments.FindByID(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("read payment: %v", err)
	}
	if fresh.Received {
		t.Error("payment still received after cancellation")
	}
}

func TestCancelCancelledInvoiceFails(t *testing.T) {
	h := newHarness(t)
	testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	invoice, _ := h.invoices.EnsureInvoice(context.Background(), payment, "gateway:stripe")
	if _, err := h.invoices.Cancel(context.Background(), invoice.ID, "operator"); err != nil {
		t.Fatalf("cancel draft: %v", err)
	}

	_, err := h.invoices.Cancel(context.Background(), invoice.ID, "operator")
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestInvoiceForEnrollmentSynthesizesPayment(t *testing.T) {
	h := newHarness(t)
	member := testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	course := testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 149.00, "INR")

	enrollment, err := h.enrollments.EnsureEnrollment(context.Background(), member.ID, course.ID, nil)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	invoice, err := h.invoices.InvoiceForEnrollment(context.Background(), enrollment.ID, "operator")
	if err != nil {
		t.Fatalf("invoice for enrollment: %v", err)
	}

	if invoice.Status != domain.StatusPaid {
		t.Errorf("status = %s, want PAID", invoice.Status)
	}
	if invoice.Amount != 149.00 || invoice.Currency != "INR" {
		t.Errorf("amount = %v %s, want course price", invoice.Amount, invoice.Currency)
	}
	if n := testutil.Count(t, h.db, `SELECT COUNT(*) FROM payments WHERE gateway = 'manual'`); n != 1 {
		t.Errorf("manual payments = %d, want 1", n)
	}
}

func TestInvoiceForEnrollmentReusesExistingPayment(t *testing.T) {
	h := newHarness(t)
	member := testutil.CreateMember(t, h.db, h.node, "jane@example.com", "Jane Doe")
	course := testutil.CreateCourse(t, h.db, h.node, "go-101", "Go 101", 25.00, "USD")
	payment := h.paidPayment(t, "pi_1")

	enrollment, err := h.enrollments.EnsureEnrollment(context.Background(), member.ID, course.ID, &payment.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	invoice, err := h.invoices.InvoiceForEnrollment(context.Background(), enrollment.ID, "operator")
	if err != nil {
		t.Fatalf("invoice for enrollment: %v", err)
	}
	if invoice.PaymentID != payment.ID {
		t.Errorf("invoice payment = %v, want %v", invoice.PaymentID, payment.ID)
	}
	if n := testutil.Count(t, h.db, `SELECT COUNT(*) FROM payments`); n != 1 {
		t.Errorf("payments = %d, want 1", n)
	}
}
