package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	addressservice "github.com/opencampus/campuspay/internal/address/service"
	auditservice "github.com/opencampus/campuspay/internal/audit/service"
	"github.com/opencampus/campuspay/internal/clock"
	"github.com/opencampus/campuspay/internal/config"
	courserepository "github.com/opencampus/campuspay/internal/course/repository"
	enrollmentdomain "github.com/opencampus/campuspay/internal/enrollment/domain"
	enrollmentrepository "github.com/opencampus/campuspay/internal/enrollment/repository"
	enrollmentservice "github.com/opencampus/campuspay/internal/enrollment/service"
	invoicerepository "github.com/opencampus/campuspay/internal/invoice/repository"
	invoiceservice "github.com/opencampus/campuspay/internal/invoice/service"
	memberrepository "github.com/opencampus/campuspay/internal/member/repository"
	"github.com/opencampus/campuspay/internal/observability"
	"github.com/opencampus/campuspay/internal/payment/gateway"
	paymentrepository "github.com/opencampus/campuspay/internal/payment/repository"
	paymentservice "github.com/opencampus/campuspay/internal/payment/service"
	"github.com/opencampus/campuspay/internal/providers/email"
	"github.com/opencampus/campuspay/internal/providers/pdf"
	reconcileservice "github.com/opencampus/campuspay/internal/reconcile/service"
	"github.com/opencampus/campuspay/internal/report"
	"github.com/opencampus/campuspay/internal/testutil"
)

type testServer struct {
	srv         *Server
	db          *gorm.DB
	node        *snowflake.Node
	enrollments enrollmentdomain.Service
}

func newTestServer(t *testing.T, gatewayCfg config.GatewayConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	log := testutil.NewLogger()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	members := memberrepository.Provide()
	courses := courserepository.Provide()
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node})

	payments := paymentservice.NewService(paymentservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo:    paymentrepository.Provide(),
		Members: members,
		Courses: courses,
		Addresses: addressservice.NewService(addressservice.Params{
			DB: db, Log: log, GenID: node,
		}),
	})
	enrollments := enrollmentservice.NewService(enrollmentservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: enrollmentrepository.Provide(),
	})
	invoices := invoiceservice.NewService(invoiceservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo:        invoicerepository.Provide(),
		Payments:    payments,
		Enrollments: enrollments,
		Members:     members,
		Courses:     courses,
		Audit:       audit,
	})
	metrics := observability.NewMetrics()
	reconciler := reconcileservice.NewService(reconcileservice.Params{
		Log:        log,
		Normalizer: gateway.NewNormalizer(gatewayCfg),
		Payments:   payments,
		Invoices:   invoices,
		Audit:      audit,
		Email:      email.NewNoop(),
		Metrics:    metrics,
	})

	srv := NewServer(ServerParams{
		Gin:           NewEngine(metrics),
		Cfg:           config.Config{},
		DB:            db,
		Log:           log,
		GenID:         node,
		AuditSvc:      audit,
		PaymentSvc:    payments,
		InvoiceSvc:    invoices,
		EnrollmentSvc: enrollments,
		ReconcileSvc:  reconciler,
		ReportSvc:     report.NewService(report.Params{DB: db, Log: log}),
		PDFProvider:   pdf.New(),
	})

	return &testServer{srv: srv, db: db, node: node, enrollments: enrollments}
}

func (ts *testServer) request(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func stripePayload(paymentID string) []byte {
	return []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "` + paymentID + `",
			"amount": 2500,
			"currency": "usd",
			"metadata": {"user_email": "jane@example.com", "course_id": "go-101"}
		}}
	}`)
}

func TestWebhookReconciles(t *testing.T) {
	ts := newTestServer(t, config.GatewayConfig{AllowUnsigned: true})
	testutil.CreateMember(t, ts.db, ts.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, ts.db, ts.node, "go-101", "Go 101", 25.00, "USD")

	rec := ts.request(t, http.MethodPost, "/webhooks/payments", stripePayload("pi_1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Success   bool   `json:"success"`
		InvoiceID string `json:"invoice_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.InvoiceID == "" {
		t.Errorf("result = %s", rec.Body.String())
	}
}

func TestWebhookRejectsEmptyBody(t *testing.T) {
	ts := newTestServer(t, config.GatewayConfig{AllowUnsigned: true})

	rec := ts.request(t, http.MethodPost, "/webhooks/payments", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookRequiresSignatureConfiguration(t *testing.T) {
	ts := newTestServer(t, config.GatewayConfig{})

	rec := ts.request(t, http.MethodPost, "/webhooks/payments", stripePayload("pi_1"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookAcknowledgesUnsupportedEvent(t *testing.T) {
	ts := newTestServer(t, config.GatewayConfig{AllowUnsigned: true})

	rec := ts.request(t, http.MethodPost, "/webhooks/payments",
		[]byte(`{"event": "subscription.renewed"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result struct {
		Success       bool   `json:"success"`
		Message       string `json:"message"`
		ReceivedEvent string `json:"received_event"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Success || result.Message != "webhook event not supported" {
		t.Errorf("result = %s", rec.Body.String())
	}
	if result.ReceivedEvent != "subscription.renewed" {
		t.Errorf("received_event = %q", result.ReceivedEvent)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	ts := newTestServer(t, config.GatewayConfig{AllowUnsigned: true})

	rec := ts.request(t, http.MethodGet, "/api/invoices/123456789", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReconcileEndpointCatchesUp(t *testing.T) {
	ts := newTestServer(t, config.GatewayConfig{AllowUnsigned: true})
	testutil.CreateMember(t, ts.db, ts.node, "jane@example.com", "Jane Doe")
	testutil.CreateCourse(t, ts.db, ts.node, "go-101", "Go 101", 25.00, "USD")

	if rec := ts.request(t, http.MethodPost, "/webhooks/payments", stripePayload("pi_1")); rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", rec.Code)
	}

	rec := ts.request(t, http.MethodPost, "/api/reconcile", []byte(`{"actor": "operator:test"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Total    int `json:"total"`
		Invoiced int `json:"invoiced"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("total = %d, want 0 (webhook already invoiced)", result.Total)
	}
}

func TestInvoiceForEnrollmentEndpoint(t *testing.T) {
	ts := newTestServer(t, config.GatewayConfig{AllowUnsigned: true})
	member := testutil.CreateMember(t, ts.db, ts.node, "jane@example.com", "Jane Doe")
	course := testutil.CreateCourse(t, ts.db, ts.node, "go-101", "Go 101", 149.00, "INR")

	enrollment, err := ts.enrollments.EnsureEnrollment(context.Background(), member.ID, course.ID, nil)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	rec := ts.request(t, http.MethodPost, "/api/enrollments/"+enrollment.ID.String()+"/invoice",
		[]byte(`{"actor": "operator:test"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var invoice struct {
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &invoice); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if invoice.Status != "PAID" || invoice.Amount != 149.00 || invoice.Currency != "INR" {
		t.Errorf("invoice = %s", rec.Body.String())
	}
}
