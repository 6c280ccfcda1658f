package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/campuspay/internal/config"
	"github.com/opencampus/campuspay/internal/payment/domain"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(config.GatewayConfig{AllowUnsigned: true})
}

func TestClassifyStripePaymentIntent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_123",
			"amount": 2500,
			"currency": "usd",
			"metadata": {"user_email": "jane@example.com", "course_id": "go-101", "order_id": "ord_9"}
		}}
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "stripe", event.Gateway)
	assert.Equal(t, "pi_123", event.GatewayPaymentID)
	assert.Equal(t, "ord_9", event.GatewayOrderID)
	assert.Equal(t, 25.00, event.Amount)
	assert.Equal(t, "USD", event.Currency)
	assert.Equal(t, "jane@example.com", event.BuyerEmail)
	assert.Equal(t, domain.TargetTypeCourse, event.TargetType)
	assert.Equal(t, "go-101", event.TargetRef)
}

func TestClassifyStripeCheckoutSessionFallsBackToSessionID(t *testing.T) {
	payload := []byte(`{
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_55",
			"amount_total": 999,
			"customer_email": "sam@example.com",
			"metadata": {"course_id": "go-101"}
		}}
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "cs_55", event.GatewayPaymentID)
	assert.Equal(t, 9.99, event.Amount)
	assert.Equal(t, "USD", event.Currency)
}

func TestClassifyStripeIgnoredSubtype(t *testing.T) {
	payload := []byte(`{"type": "payment_intent.created", "data": {"object": {}}}`)

	_, err := newTestNormalizer().Classify(payload, http.Header{})

	var ignored *IgnoredEventError
	require.ErrorAs(t, err, &ignored)
	assert.Equal(t, "payment_intent.created", ignored.EventType)
}

func TestClassifyRazorpayCaptured(t *testing.T) {
	payload := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_r1",
			"order_id": "order_r1",
			"amount": 150000,
			"email": "dev@example.in",
			"notes": {"course_id": "go-101"}
		}}}
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "razorpay", event.Gateway)
	assert.Equal(t, "pay_r1", event.GatewayPaymentID)
	assert.Equal(t, "order_r1", event.GatewayOrderID)
	assert.Equal(t, 1500.00, event.Amount)
	assert.Equal(t, "INR", event.Currency)
	assert.Equal(t, "dev@example.in", event.BuyerEmail)
}

func TestClassifyRazorpayEmailFromNotes(t *testing.T) {
	payload := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_r2",
			"amount": 50000,
			"notes": {"user_email": "notes@example.in", "course_id": "go-101"}
		}}}
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "notes@example.in", event.BuyerEmail)
}

func TestClassifyRazorpayMissingBuyer(t *testing.T) {
	payload := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_r3", "amount": 100, "notes": {"course_id": "go-101"}}}}
	}`)

	_, err := newTestNormalizer().Classify(payload, http.Header{})
	assert.ErrorIs(t, err, domain.ErrMissingBuyerEmail)
}

func TestClassifyPayPalCapture(t *testing.T) {
	payload := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "cap_1",
			"amount": {"value": "49.50", "currency_code": "EUR"},
			"custom_id": "go-101",
			"payer": {"email_address": "buyer@example.com"}
		}
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "paypal", event.Gateway)
	assert.Equal(t, "cap_1", event.GatewayPaymentID)
	assert.Equal(t, 49.50, event.Amount)
	assert.Equal(t, "EUR", event.Currency)
	assert.Equal(t, "buyer@example.com", event.BuyerEmail)
	assert.Equal(t, "go-101", event.TargetRef)
}

func TestClassifyPayPalDefaultsToUSD(t *testing.T) {
	payload := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "cap_2",
			"amount": {"value": "10.00"},
			"custom_id": "go-101",
			"payer": {"email_address": "buyer@example.com"}
		}
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "USD", event.Currency)
}

func TestClassifyCustomCompleted(t *testing.T) {
	payload := []byte(`{
		"payment_status": "completed",
		"payment_id": "man_1",
		"order_id": "ord_man",
		"course_id": "go-101",
		"user_email": "local@example.in",
		"amount": 750.5
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "custom", event.Gateway)
	assert.Equal(t, "man_1", event.GatewayPaymentID)
	assert.Equal(t, 750.5, event.Amount)
	assert.Equal(t, "INR", event.Currency)
	assert.Equal(t, domain.TargetTypeCourse, event.TargetType)
}

func TestClassifyCustomBatchTarget(t *testing.T) {
	payload := []byte(`{
		"payment_status": "completed",
		"payment_id": "man_2",
		"target_type": "batch",
		"batch_id": "spring-2026",
		"user_email": "local@example.in",
		"amount": 100
	}`)

	event, err := newTestNormalizer().Classify(payload, http.Header{})
	require.NoError(t, err)

	assert.Equal(t, domain.TargetTypeBatch, event.TargetType)
	assert.Equal(t, "spring-2026", event.TargetRef)
}

func TestClassifyUnsupportedEvent(t *testing.T) {
	payload := []byte(`{"event": "refund.created", "payment_id": "x"}`)

	_, err := newTestNormalizer().Classify(payload, http.Header{})

	var unsupported *UnsupportedEventError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "refund.created", unsupported.ReceivedEvent)
	assert.Contains(t, err.Error(), "not supported")
}

func TestClassifyRejectsEmptyAndMalformedBody(t *testing.T) {
	n := newTestNormalizer()

	_, err := n.Classify([]byte("  "), http.Header{})
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = n.Classify([]byte("{not json"), http.Header{})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestClassificationOrderPrefersStripeHeader(t *testing.T) {
	// A payload that would also satisfy the custom shape still routes to
	// stripe when the signature header is present.
	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"payment_status": "completed",
		"data": {"object": {
			"id": "pi_dual",
			"amount": 100,
			"metadata": {"user_email": "a@b.c", "course_id": "go-101"}
		}}
	}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1,v1=deadbeef")

	n := NewNormalizerWith(NewStripe(config.GatewayConfig{AllowUnsigned: true}), NewCustom())
	event, err := n.Classify(payload, headers)
	require.NoError(t, err)
	assert.Equal(t, "stripe", event.Gateway)
}

func signStripe(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestStripeSignatureVerification(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_sig", "amount": 2500, "currency": "usd",
			"metadata": {"user_email": "jane@example.com", "course_id": "go-101"}}}
	}`)

	n := NewNormalizer(config.GatewayConfig{StripeWebhookSecret: secret})

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=1693500000,v1=%s", signStripe(secret, "1693500000", payload)))
	event, err := n.Classify(payload, headers)
	require.NoError(t, err)
	assert.Equal(t, "pi_sig", event.GatewayPaymentID)

	headers.Set("Stripe-Signature", "t=1693500000,v1=0000")
	_, err = n.Classify(payload, headers)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	headers.Del("Stripe-Signature")
	_, err = n.Classify(payload, headers)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeSignatureRequiredWithoutSecret(t *testing.T) {
	payload := []byte(`{"type": "payment_intent.succeeded", "data": {"object": {}}}`)

	n := NewNormalizer(config.GatewayConfig{})
	_, err := n.Classify(payload, http.Header{})
	assert.ErrorIs(t, err, ErrSignatureRequired)
}
