// Package email sends transactional mail over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/opencampus/campuspay/internal/config"
	invoicedomain "github.com/opencampus/campuspay/internal/invoice/domain"
)

type Provider interface {
	// SendPaymentConfirmation mails the invoice summary to the buyer.
	SendPaymentConfirmation(ctx context.Context, to string, display *invoicedomain.Display) error
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<html>
<body>
  <p>Hi {{ .BillingName }},</p>
  <p>We received your payment of {{ printf "%.2f" .Amount }} {{ .Currency }} for <strong>{{ .ItemTitle }}</strong>.</p>
  <p>Your invoice number is {{ .Number }}.</p>
  <p>Happy learning!</p>
</body>
</html>
`))

type confirmationData struct {
	BillingName string
	Amount      float64
	Currency    string
	ItemTitle   string
	Number      string
}

type smtpProvider struct {
	cfg config.EmailConfig
	log *zap.Logger
}

func NewSMTP(cfg config.EmailConfig, log *zap.Logger) Provider {
	return &smtpProvider{cfg: cfg, log: log.Named("email.smtp")}
}

func (p *smtpProvider) SendPaymentConfirmation(ctx context.Context, to string, display *invoicedomain.Display) error {
	var body bytes.Buffer
	err := confirmationTemplate.Execute(&body, confirmationData{
		BillingName: display.Invoice.BillingName,
		Amount:      display.Invoice.TotalAmount,
		Currency:    display.Invoice.Currency,
		ItemTitle:   display.ItemTitle,
		Number:      display.Invoice.Number,
	})
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Payment received for %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		p.cfg.SMTPFrom, to, display.ItemTitle, body.String())

	addr := fmt.Sprintf("%s:%d", p.cfg.SMTPHost, p.cfg.SMTPPort)
	var auth smtp.Auth
	if p.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", p.cfg.SMTPUsername, p.cfg.SMTPPassword, p.cfg.SMTPHost)
	}
	return smtp.SendMail(addr, auth, p.cfg.SMTPFrom, []string{to}, []byte(msg))
}

type noopProvider struct{}

// NewNoop returns a provider that drops all mail. Used when email is
// disabled and in tests.
func NewNoop() Provider {
	return noopProvider{}
}

func (noopProvider) SendPaymentConfirmation(ctx context.Context, to string, display *invoicedomain.Display) error {
	return nil
}

// NewFromConfig selects the SMTP provider when email is enabled.
func NewFromConfig(cfg config.EmailConfig, log *zap.Logger) Provider {
	if !cfg.Enabled {
		return NewNoop()
	}
	return NewSMTP(cfg, log)
}
