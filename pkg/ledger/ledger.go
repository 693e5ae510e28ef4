// Package ledger records every payment gateway interaction in SQL so support can follow up
// on sessions that were charged but never matched an order.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/example/foodhall/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type AttemptStatus string

const (
	AttemptSessionCreated AttemptStatus = "session_created"
	AttemptGatewayError   AttemptStatus = "gateway_error"
	AttemptPaid           AttemptStatus = "paid"
	AttemptUnpaid         AttemptStatus = "unpaid"
	AttemptOrphaned       AttemptStatus = "orphaned"
)

// NeedsFollowUp reports statuses that must be resolved by a person, never retried automatically.
func (s AttemptStatus) NeedsFollowUp() bool {
	return s == AttemptGatewayError || s == AttemptOrphaned
}

type PaymentAttempt struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	OrderID   string        `gorm:"type:varchar(24);index" json:"orderId"`
	UserID    string        `gorm:"type:varchar(24);index" json:"userId"`
	SessionID string        `gorm:"type:varchar(255);index" json:"sessionId"`
	Status    AttemptStatus `gorm:"type:varchar(32);index" json:"status"`
	Amount    float64       `gorm:"type:decimal(10,2)" json:"amount"`
	Currency  string        `gorm:"type:varchar(8)" json:"currency"`
	Detail    string        `gorm:"type:text" json:"detail"`
	FollowUp  bool          `gorm:"index" json:"followUp"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}

// Recorder is what the order service writes attempts through.
type Recorder interface {
	Record(ctx context.Context, attempt *PaymentAttempt) error
	FollowUps(ctx context.Context, limit int) ([]PaymentAttempt, error)
}

type Ledger struct {
	db *gorm.DB
}

func Open(cfg *config.LedgerConfig) (*Ledger, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.AutoMigrate(&PaymentAttempt{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Record(ctx context.Context, attempt *PaymentAttempt) error {
	attempt.FollowUp = attempt.Status.NeedsFollowUp()
	if err := l.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}
	return nil
}

func (l *Ledger) FollowUps(ctx context.Context, limit int) ([]PaymentAttempt, error) {
	var attempts []PaymentAttempt
	err := l.db.WithContext(ctx).
		Where("follow_up = ?", true).
		Order("created_at desc").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list follow ups: %w", err)
	}
	return attempts, nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Discard is used when no ledger DSN is configured.
type Discard struct{}

func (Discard) Record(context.Context, *PaymentAttempt) error { return nil }

func (Discard) FollowUps(context.Context, int) ([]PaymentAttempt, error) {
	return []PaymentAttempt{}, nil
}
