// Package domain defines the reconciliation pipeline's result envelopes.
package domain

import (
	"context"
	"net/http"
)

// Result is the terminal outcome of one webhook delivery. Recognized
// non-processable events (unsupported shapes, ignored subtypes) are results,
// not errors; only transport-level rejections surface as errors.
type Result struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ReceivedEvent string `json:"received_event,omitempty"`
	Gateway       string `json:"gateway,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	InvoiceID     string `json:"invoice_id,omitempty"`
}

// CatchupItem reports one payment touched by the bulk scan.
type CatchupItem struct {
	PaymentID string `json:"payment_id"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
}

type CatchupResult struct {
	Total    int           `json:"total"`
	Invoiced int           `json:"invoiced"`
	Failed   int           `json:"failed"`
	Items    []CatchupItem `json:"items"`
}

type Service interface {
	// Reconcile runs the full pipeline for one webhook delivery:
	// classify, record the payment, ensure and submit the invoice.
	Reconcile(ctx context.Context, payload []byte, headers http.Header) (*Result, error)
	// ReconcileUnprocessed invoices every received payment that has no
	// invoice yet. Already invoiced payments are not touched.
	ReconcileUnprocessed(ctx context.Context, actor string) (*CatchupResult, error)
}
