package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/opencampus/campuspay/internal/payment/domain"
)

// Razorpay handles payment.captured events. Amounts arrive in paise;
// currency defaults to INR. Buyer email and course must come from the
// payment entity or its notes; there is no fallback identity.
type Razorpay struct{}

func NewRazorpay() *Razorpay {
	return &Razorpay{}
}

func (g *Razorpay) Name() string { return "razorpay" }

func (g *Razorpay) Match(body map[string]any, headers http.Header) bool {
	return readString(body, "event") == "payment.captured"
}

func (g *Razorpay) Verify(payload []byte, headers http.Header) error {
	return nil
}

type razorpayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type razorpayPayment struct {
	ID       string         `json:"id"`
	OrderID  string         `json:"order_id"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Email    string         `json:"email"`
	Notes    map[string]any `json:"notes"`
}

func (g *Razorpay) Parse(body map[string]any, payload []byte) (*domain.PaymentEvent, error) {
	var envelope razorpayEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, ErrInvalidPayload
	}

	entity := envelope.Payload.Payment.Entity
	if strings.TrimSpace(entity.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	email := strings.TrimSpace(entity.Email)
	if email == "" {
		email = metadataString(entity.Notes, "user_email", "customer_email")
	}
	if email == "" {
		return nil, domain.ErrMissingBuyerEmail
	}

	courseRef := metadataString(entity.Notes, "course_id", "course")
	if courseRef == "" {
		return nil, domain.ErrMissingTarget
	}

	return &domain.PaymentEvent{
		GatewayPaymentID: entity.ID,
		GatewayOrderID:   strings.TrimSpace(entity.OrderID),
		Amount:           float64(entity.Amount) / 100, // paise
		Currency:         normalizeCurrency(entity.Currency, "inr"),
		BuyerEmail:       email,
		TargetType:       domain.TargetTypeCourse,
		TargetRef:        courseRef,
		Metadata:         stringMetadata(entity.Notes),
	}, nil
}
