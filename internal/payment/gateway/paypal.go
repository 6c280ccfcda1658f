package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/opencampus/campuspay/internal/payment/domain"
)

// PayPal handles PAYMENT.CAPTURE.COMPLETED events. Capture amounts are
// decimal strings already in major units; currency defaults to USD. The
// course reference travels in custom_id.
type PayPal struct{}

func NewPayPal() *PayPal {
	return &PayPal{}
}

func (g *PayPal) Name() string { return "paypal" }

func (g *PayPal) Match(body map[string]any, headers http.Header) bool {
	return readString(body, "event_type") == "PAYMENT.CAPTURE.COMPLETED"
}

func (g *PayPal) Verify(payload []byte, headers http.Header) error {
	return nil
}

type paypalEnvelope struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		CustomID            string `json:"custom_id"`
		InvoiceID           string `json:"invoice_id"`
		SupplementaryData   struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		Payer struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
	} `json:"resource"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (g *PayPal) Parse(body map[string]any, payload []byte) (*domain.PaymentEvent, error) {
	var envelope paypalEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, ErrInvalidPayload
	}

	resource := envelope.Resource
	if strings.TrimSpace(resource.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(resource.Amount.Value), 64)
	if err != nil || amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	email := strings.TrimSpace(resource.Payer.EmailAddress)
	if email == "" {
		email = strings.TrimSpace(envelope.Payer.EmailAddress)
	}
	if email == "" {
		return nil, domain.ErrMissingBuyerEmail
	}

	courseRef := strings.TrimSpace(resource.CustomID)
	if courseRef == "" {
		return nil, domain.ErrMissingTarget
	}

	return &domain.PaymentEvent{
		GatewayPaymentID: strings.TrimSpace(resource.ID),
		GatewayOrderID:   strings.TrimSpace(resource.SupplementaryData.RelatedIDs.OrderID),
		Amount:           amount,
		Currency:         normalizeCurrency(resource.Amount.CurrencyCode, "usd"),
		BuyerEmail:       email,
		TargetType:       domain.TargetTypeCourse,
		TargetRef:        courseRef,
	}, nil
}
