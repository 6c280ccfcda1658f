package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/opencampus/campuspay/internal/config"
	"github.com/opencampus/campuspay/internal/payment/domain"
)

const stripeSignatureHeader = "Stripe-Signature"

// Stripe handles payment_intent.succeeded, checkout.session.completed and
// invoice.payment_succeeded events. Amounts arrive in cents; currency
// defaults to USD. Signature verification is mandatory when a webhook
// secret is configured, and unsigned deliveries are rejected unless the
// explicit opt-out is set.
type Stripe struct {
	webhookSecret string
	allowUnsigned bool
}

func NewStripe(cfg config.GatewayConfig) *Stripe {
	return &Stripe{
		webhookSecret: strings.TrimSpace(cfg.StripeWebhookSecret),
		allowUnsigned: cfg.AllowUnsigned,
	}
}

func (g *Stripe) Name() string { return "stripe" }

func (g *Stripe) Match(body map[string]any, headers http.Header) bool {
	if strings.TrimSpace(headers.Get(stripeSignatureHeader)) != "" {
		return true
	}
	eventType := readString(body, "type")
	return strings.HasPrefix(eventType, "payment_intent.") ||
		strings.HasPrefix(eventType, "checkout.session.") ||
		eventType == "invoice.payment_succeeded"
}

func (g *Stripe) Verify(payload []byte, headers http.Header) error {
	if g.webhookSecret == "" {
		if g.allowUnsigned {
			return nil
		}
		return ErrSignatureRequired
	}

	sigHeader := strings.TrimSpace(headers.Get(stripeSignatureHeader))
	if sigHeader == "" {
		return ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return ErrInvalidSignature
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripePaymentIntent struct {
	ID       string         `json:"id"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata"`
}

type stripeCheckoutSession struct {
	ID            string         `json:"id"`
	PaymentIntent string         `json:"payment_intent"`
	AmountTotal   int64          `json:"amount_total"`
	Currency      string         `json:"currency"`
	CustomerEmail string         `json:"customer_email"`
	Metadata      map[string]any `json:"metadata"`
}

type stripeInvoice struct {
	ID            string         `json:"id"`
	PaymentIntent string         `json:"payment_intent"`
	AmountPaid    int64          `json:"amount_paid"`
	Currency      string         `json:"currency"`
	CustomerEmail string         `json:"customer_email"`
	Metadata      map[string]any `json:"metadata"`
}

func (g *Stripe) Parse(body map[string]any, payload []byte) (*domain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ErrInvalidPayload
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return g.parsePaymentIntent(event)
	case "checkout.session.completed":
		return g.parseCheckoutSession(event)
	case "invoice.payment_succeeded":
		return g.parseInvoice(event)
	default:
		return nil, &IgnoredEventError{EventType: event.Type}
	}
}

func (g *Stripe) parsePaymentIntent(event stripeEvent) (*domain.PaymentEvent, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, ErrInvalidPayload
	}

	email := metadataString(intent.Metadata, "user_email", "customer_email")
	if email == "" {
		return nil, domain.ErrMissingBuyerEmail
	}
	courseRef := metadataString(intent.Metadata, "course_id", "course")
	if courseRef == "" {
		return nil, domain.ErrMissingTarget
	}

	return &domain.PaymentEvent{
		GatewayPaymentID: intent.ID,
		GatewayOrderID:   metadataString(intent.Metadata, "order_id"),
		Amount:           float64(intent.Amount) / 100, // cents
		Currency:         normalizeCurrency(intent.Currency, "usd"),
		BuyerEmail:       email,
		TargetType:       domain.TargetTypeCourse,
		TargetRef:        courseRef,
		Metadata:         stringMetadata(intent.Metadata),
	}, nil
}

func (g *Stripe) parseCheckoutSession(event stripeEvent) (*domain.PaymentEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, ErrInvalidPayload
	}

	email := strings.TrimSpace(session.CustomerEmail)
	if email == "" {
		email = metadataString(session.Metadata, "user_email", "customer_email")
	}
	if email == "" {
		return nil, domain.ErrMissingBuyerEmail
	}
	courseRef := metadataString(session.Metadata, "course_id", "course")
	if courseRef == "" {
		return nil, domain.ErrMissingTarget
	}

	paymentID := strings.TrimSpace(session.PaymentIntent)
	if paymentID == "" {
		paymentID = session.ID
	}

	return &domain.PaymentEvent{
		GatewayPaymentID: paymentID,
		GatewayOrderID:   metadataString(session.Metadata, "order_id"),
		Amount:           float64(session.AmountTotal) / 100,
		Currency:         normalizeCurrency(session.Currency, "usd"),
		BuyerEmail:       email,
		TargetType:       domain.TargetTypeCourse,
		TargetRef:        courseRef,
		Metadata:         stringMetadata(session.Metadata),
	}, nil
}

func (g *Stripe) parseInvoice(event stripeEvent) (*domain.PaymentEvent, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, ErrInvalidPayload
	}

	email := strings.TrimSpace(invoice.CustomerEmail)
	if email == "" {
		email = metadataString(invoice.Metadata, "user_email", "customer_email")
	}
	if email == "" {
		return nil, domain.ErrMissingBuyerEmail
	}
	courseRef := metadataString(invoice.Metadata, "course_id", "course")
	if courseRef == "" {
		return nil, domain.ErrMissingTarget
	}

	paymentID := strings.TrimSpace(invoice.PaymentIntent)
	if paymentID == "" {
		paymentID = invoice.ID
	}

	return &domain.PaymentEvent{
		GatewayPaymentID: paymentID,
		GatewayOrderID:   metadataString(invoice.Metadata, "order_id"),
		Amount:           float64(invoice.AmountPaid) / 100,
		Currency:         normalizeCurrency(invoice.Currency, "usd"),
		BuyerEmail:       email,
		TargetType:       domain.TargetTypeCourse,
		TargetRef:        courseRef,
		Metadata:         stringMetadata(invoice.Metadata),
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
