// Package report aggregates received payments into revenue summaries.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Filter narrows the report window. Zero values mean no constraint.
type Filter struct {
	From     time.Time
	To       time.Time
	Gateway  string
	CourseID snowflake.ID
}

// Row is revenue for one (course, month, currency) bucket.
type Row struct {
	CourseID    string  `json:"course_id"`
	CourseTitle string  `json:"course_title"`
	Month       string  `json:"month"`
	Currency    string  `json:"currency"`
	Payments    int64   `json:"payments"`
	Total       float64 `json:"total"`
}

// Total is overall revenue for one currency.
type Total struct {
	Currency string  `json:"currency"`
	Payments int64   `json:"payments"`
	Total    float64 `json:"total"`
}

type Report struct {
	Rows   []Row   `json:"rows"`
	Totals []Total `json:"totals"`
}

type Service interface {
	PaymentsReport(ctx context.Context, filter Filter) (*Report, error)
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) Service {
	return &service{db: p.DB, log: p.Log.Named("report.service")}
}

type paymentRow struct {
	CourseID    snowflake.ID
	CourseTitle string
	Currency    string
	Amount      float64
	CreatedAt   time.Time
}

func (s *service) PaymentsReport(ctx context.Context, filter Filter) (*Report, error) {
	query := `SELECT p.target_id AS course_id, c.title AS course_title,
			p.currency, p.amount, p.created_at
		FROM payments p
		LEFT JOIN courses c ON c.id = p.target_id AND p.target_type = 'course'
		WHERE p.received = TRUE`
	args := []any{}

	if !filter.From.IsZero() {
		query += ` AND p.created_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += ` AND p.created_at < ?`
		args = append(args, filter.To.UTC())
	}
	if filter.Gateway != "" {
		query += ` AND p.gateway = ?`
		args = append(args, filter.Gateway)
	}
	if filter.CourseID != 0 {
		query += ` AND p.target_id = ?`
		args = append(args, filter.CourseID)
	}
	query += ` ORDER BY p.created_at ASC`

	var rows []paymentRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	// Bucketing happens here rather than in SQL so the report behaves
	// identically on every supported database.
	type bucketKey struct {
		courseID snowflake.ID
		month    string
		currency string
	}
	buckets := map[bucketKey]*Row{}
	totals := map[string]*Total{}

	for _, p := range rows {
		key := bucketKey{p.CourseID, p.CreatedAt.UTC().Format("2006-01"), p.Currency}
		bucket, ok := buckets[key]
		if !ok {
			title := p.CourseTitle
			if title == "" {
				title = "(batch purchase)"
			}
			bucket = &Row{
				CourseID:    p.CourseID.String(),
				CourseTitle: title,
				Month:       key.month,
				Currency:    p.Currency,
			}
			buckets[key] = bucket
		}
		bucket.Payments++
		bucket.Total += p.Amount

		total, ok := totals[p.Currency]
		if !ok {
			total = &Total{Currency: p.Currency}
			totals[p.Currency] = total
		}
		total.Payments++
		total.Total += p.Amount
	}

	report := &Report{Rows: make([]Row, 0, len(buckets)), Totals: make([]Total, 0, len(totals))}
	for _, bucket := range buckets {
		report.Rows = append(report.Rows, *bucket)
	}
	for _, total := range totals {
		report.Totals = append(report.Totals, *total)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Month != report.Rows[j].Month {
			return report.Rows[i].Month < report.Rows[j].Month
		}
		return report.Rows[i].CourseTitle < report.Rows[j].CourseTitle
	})
	sort.Slice(report.Totals, func(i, j int) bool {
		return report.Totals[i].Currency < report.Totals[j].Currency
	})
	return report, nil
}

var Module = fx.Module("report",
	fx.Provide(NewService),
)
