// Package testutil provides the shared sqlite harness for service tests.
package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	coursedomain "github.com/opencampus/campuspay/internal/course/domain"
	memberdomain "github.com/opencampus/campuspay/internal/member/domain"
)

var schema = []string{
	`CREATE TABLE members (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE courses (
		id INTEGER PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		price REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'INR',
		published INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE batches (
		id INTEGER PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		course_id INTEGER,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE addresses (
		id INTEGER PRIMARY KEY,
		member_id INTEGER,
		title TEXT NOT NULL UNIQUE,
		line1 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		pincode TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payments (
		id INTEGER PRIMARY KEY,
		member_id INTEGER NOT NULL,
		target_type TEXT NOT NULL DEFAULT 'course',
		target_id INTEGER NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		gateway TEXT NOT NULL DEFAULT '',
		gateway_payment_id TEXT,
		gateway_order_id TEXT NOT NULL DEFAULT '',
		received INTEGER NOT NULL DEFAULT 0,
		billing_name TEXT NOT NULL DEFAULT '',
		address_id INTEGER,
		gstin TEXT NOT NULL DEFAULT '',
		pan TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payments_gateway_payment_id
		ON payments (gateway_payment_id) WHERE gateway_payment_id IS NOT NULL`,
	`CREATE TABLE invoices (
		id INTEGER PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		payment_id INTEGER NOT NULL UNIQUE,
		member_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		amount REAL NOT NULL DEFAULT 0,
		tax_amount REAL NOT NULL DEFAULT 0,
		total_amount REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		item_name TEXT NOT NULL DEFAULT '',
		billing_name TEXT NOT NULL DEFAULT '',
		address_id INTEGER,
		issued_at DATETIME,
		due_at DATETIME,
		paid_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE enrollments (
		id INTEGER PRIMARY KEY,
		member_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		member_type TEXT NOT NULL DEFAULT 'student',
		payment_id INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (member_id, course_id)
	)`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL DEFAULT '',
		target_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	)`,
}

// NewDB opens an in-memory sqlite database with the application schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

var nodeSeq atomic.Int64

// NewNode returns a snowflake node for generating test ids. Each call uses
// a distinct node number so ids from separate nodes cannot collide.
func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(nodeSeq.Add(1) % 1024)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// NewLogger returns a no-op logger for service construction.
func NewLogger() *zap.Logger {
	return zap.NewNop()
}

// CreateMember inserts an enabled member.
func CreateMember(t *testing.T, db *gorm.DB, node *snowflake.Node, email, fullName string) *memberdomain.Member {
	t.Helper()

	now := time.Now().UTC()
	m := &memberdomain.Member{
		ID:        node.Generate(),
		Email:     email,
		FullName:  fullName,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.Exec(
		`INSERT INTO members (id, email, full_name, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Email, m.FullName, m.Enabled, m.CreatedAt, m.UpdatedAt,
	).Error
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

// CreateCourse inserts a published course.
func CreateCourse(t *testing.T, db *gorm.DB, node *snowflake.Node, slug, title string, price float64, currency string) *coursedomain.Course {
	t.Helper()

	now := time.Now().UTC()
	c := &coursedomain.Course{
		ID:        node.Generate(),
		Slug:      slug,
		Title:     title,
		Price:     price,
		Currency:  currency,
		Published: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.Exec(
		`INSERT INTO courses (id, slug, title, price, currency, published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Slug, c.Title, c.Price, c.Currency, c.Published, c.CreatedAt, c.UpdatedAt,
	).Error
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}

// CreateBatch inserts a batch linked to a course.
func CreateBatch(t *testing.T, db *gorm.DB, node *snowflake.Node, slug, title string, courseID snowflake.ID) *coursedomain.Batch {
	t.Helper()

	b := &coursedomain.Batch{
		ID:        node.Generate(),
		Slug:      slug,
		Title:     title,
		CourseID:  &courseID,
		CreatedAt: time.Now().UTC(),
	}
	err := db.Exec(
		`INSERT INTO batches (id, slug, title, course_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Slug, b.Title, b.CourseID, b.CreatedAt,
	).Error
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return b
}

// Count returns the number of rows matching the query.
func Count(t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()

	var n int64
	if err := db.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
