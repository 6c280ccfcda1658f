// Package gateway classifies raw webhook payloads into canonical payment
// events. Classification runs an explicit ordered list of gateways, each a
// (match, parse) pair, so dispatch is deterministic.
package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/opencampus/campuspay/internal/config"
	"github.com/opencampus/campuspay/internal/payment/domain"
)

var (
	ErrEmptyBody        = errors.New("empty_body")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	// ErrSignatureRequired is returned when a gateway supports signing but
	// no secret is configured and unsigned deliveries are not allowed.
	ErrSignatureRequired = errors.New("signature_verification_not_configured")
)

// UnsupportedEventError is a recognized terminal outcome, not a failure of
// the pipeline: the payload matched no gateway shape.
type UnsupportedEventError struct {
	ReceivedEvent string
}

func (e *UnsupportedEventError) Error() string {
	return fmt.Sprintf("webhook event not supported: %s", e.ReceivedEvent)
}

// IgnoredEventError marks an event type a gateway recognizes but does not
// process (e.g. stripe lifecycle noise). Callers acknowledge and move on.
type IgnoredEventError struct {
	EventType string
}

func (e *IgnoredEventError) Error() string {
	return fmt.Sprintf("event %s received but not processed", e.EventType)
}

// Gateway is one entry in the classification order.
type Gateway interface {
	Name() string
	// Match inspects the decoded body and headers for the gateway's
	// structural signature.
	Match(body map[string]any, headers http.Header) bool
	// Verify checks the delivery signature where the gateway supports one.
	Verify(payload []byte, headers http.Header) error
	Parse(body map[string]any, payload []byte) (*domain.PaymentEvent, error)
}

type Normalizer struct {
	gateways []Gateway
}

// NewNormalizer builds the default classification order: stripe, razorpay,
// paypal, then the generic custom shape.
func NewNormalizer(cfg config.GatewayConfig) *Normalizer {
	return &Normalizer{
		gateways: []Gateway{
			NewStripe(cfg),
			NewRazorpay(),
			NewPayPal(),
			NewCustom(),
		},
	}
}

func NewNormalizerWith(gateways ...Gateway) *Normalizer {
	return &Normalizer{gateways: gateways}
}

// Classify parses the payload into a canonical PaymentEvent using the first
// matching gateway. An empty or malformed body is rejected before any
// gateway is consulted.
func (n *Normalizer) Classify(payload []byte, headers http.Header) (*domain.PaymentEvent, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, ErrEmptyBody
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, ErrInvalidPayload
	}

	for _, g := range n.gateways {
		if !g.Match(body, headers) {
			continue
		}
		if err := g.Verify(payload, headers); err != nil {
			return nil, err
		}
		event, err := g.Parse(body, payload)
		if err != nil {
			return nil, err
		}
		event.Gateway = g.Name()
		if event.RawPayload == nil {
			event.RawPayload = payload
		}
		return event, nil
	}

	return nil, &UnsupportedEventError{ReceivedEvent: receivedEventName(body)}
}

func receivedEventName(body map[string]any) string {
	for _, key := range []string{"event", "type", "event_type"} {
		if value, ok := body[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return "unknown"
}

func readString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	value, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func metadataString(metadata map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := readString(metadata, key); value != "" {
			return value
		}
	}
	return ""
}

func stringMetadata(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if cast, ok := value.(string); ok {
			out[key] = cast
		}
	}
	return out
}

func normalizeCurrency(currency string, fallback string) string {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = fallback
	}
	return strings.ToUpper(currency)
}
