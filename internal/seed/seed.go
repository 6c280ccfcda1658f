// Package seed bootstraps demo data for local development.
package seed

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type demoCourse struct {
	title    string
	price    float64
	currency string
}

var demoCourses = []demoCourse{
	{title: "Go 101", price: 25.00, currency: "USD"},
	{title: "Distributed Systems with Go", price: 79.00, currency: "USD"},
	{title: "Web Development Bootcamp", price: 1500.00, currency: "INR"},
}

// EnsureDemoData inserts a demo member and a few courses when they are
// missing. Safe to run on every boot.
func EnsureDemoData(db *gorm.DB) error {
	node, err := snowflake.NewNode(900)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	err = db.Exec(
		`INSERT INTO members (id, email, full_name, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, TRUE, ?, ?)
		 ON CONFLICT (email) DO NOTHING`,
		node.Generate(), "demo@campuspay.local", "Demo Learner", now, now,
	).Error
	if err != nil {
		return err
	}

	for _, course := range demoCourses {
		err = db.Exec(
			`INSERT INTO courses (id, slug, title, price, currency, published, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, TRUE, ?, ?)
			 ON CONFLICT (slug) DO NOTHING`,
			node.Generate(), slug.Make(course.title), course.title,
			course.price, course.currency, now, now,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}
