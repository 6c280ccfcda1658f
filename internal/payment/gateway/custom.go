package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/opencampus/campuspay/internal/payment/domain"
)

// Custom is the last entry in the classification order: a flat first-party
// shape used by manual gateways and internal tooling. It only accepts
// completed payments; currency defaults to INR.
type Custom struct{}

func NewCustom() *Custom {
	return &Custom{}
}

func (g *Custom) Name() string { return "custom" }

func (g *Custom) Match(body map[string]any, headers http.Header) bool {
	return readString(body, "payment_status") == "completed"
}

func (g *Custom) Verify(payload []byte, headers http.Header) error {
	return nil
}

func (g *Custom) Parse(body map[string]any, payload []byte) (*domain.PaymentEvent, error) {
	email := readString(body, "user_email")
	if email == "" {
		email = readString(body, "email")
	}
	if email == "" {
		return nil, domain.ErrMissingBuyerEmail
	}

	targetType := domain.TargetTypeCourse
	targetRef := metadataString(body, "course_id", "course")
	if declared := strings.ToLower(readString(body, "target_type")); declared == domain.TargetTypeBatch {
		targetType = domain.TargetTypeBatch
		targetRef = metadataString(body, "batch_id", "batch")
	}
	if targetRef == "" {
		return nil, domain.ErrMissingTarget
	}

	amount, ok := readNumber(body, "amount")
	if !ok || amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	return &domain.PaymentEvent{
		GatewayPaymentID: readString(body, "payment_id"),
		GatewayOrderID:   readString(body, "order_id"),
		Amount:           amount,
		Currency:         normalizeCurrency(readString(body, "currency"), "inr"),
		BuyerEmail:       email,
		TargetType:       targetType,
		TargetRef:        targetRef,
	}, nil
}

func readNumber(m map[string]any, key string) (float64, bool) {
	switch value := m[key].(type) {
	case float64:
		return value, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
