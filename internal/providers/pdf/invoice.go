// Package pdf renders invoices as PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	invoicedomain "github.com/opencampus/campuspay/internal/invoice/domain"
)

const dateLayout = "2006-01-02"

type Provider interface {
	RenderInvoice(ctx context.Context, display *invoicedomain.Display) (io.Reader, error)
}

type renderer struct{}

func New() Provider {
	return &renderer{}
}

func (r *renderer) RenderInvoice(ctx context.Context, display *invoicedomain.Display) (io.Reader, error) {
	if display == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	invoice := display.Invoice

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.Number, props.Text{Top: 0}),
			text.New("Date of issue: "+stamp(invoice.IssuedAt), props.Text{Top: 4}),
			text.New("Date due: "+stamp(invoice.DueAt), props.Text{Top: 8}),
			text.New("Status: "+invoice.Status, props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Billed to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillingName, props.Text{Top: 5}),
			text.New(display.MemberEmail, props.Text{Top: 9}),
		),
		col.New(6),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(15,
		text.NewCol(8, display.ItemTitle, props.Text{Size: 9}),
		text.NewCol(4, money(invoice.Amount, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, money(invoice.TaxAmount, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, money(invoice.TotalAmount, invoice.Currency), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func money(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}
