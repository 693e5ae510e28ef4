// Package payment talks to the hosted checkout provider.
package payment

import (
	"context"
	"errors"
)

var ErrSessionNotFound = errors.New("payment session not found")

type LineItem struct {
	Name      string
	UnitPrice float64
	Quantity  int
}

type SessionRequest struct {
	OrderID       string
	CustomerEmail string
	Items         []LineItem
	// SuccessURL may contain the provider's session id placeholder.
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type Session struct {
	ID              string
	URL             string
	PaymentIntentID string
	Paid            bool
	AmountTotal     int64
	Currency        string
}

// Gateway creates checkout sessions and reports whether they were paid.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}

var ErrNotConfigured = errors.New("payment gateway not configured")

// Unavailable rejects every call. It stands in when no provider key is configured so cash
// orders keep working.
type Unavailable struct{}

func (Unavailable) CreateSession(context.Context, SessionRequest) (*Session, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) GetSession(context.Context, string) (*Session, error) {
	return nil, ErrNotConfigured
}
