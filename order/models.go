package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// LineItem is the single negotiated item of an order.
type LineItem struct {
	ProductID   string
	Description string
	Units       int
	AgreedPrice decimal.Decimal
}

// ShippingAddress is the delivery destination agreed between the parties.
// Optional at creation, required before the order can be completed.
type ShippingAddress struct {
	Line       string
	Department string
	City       string
}

// Order is the aggregate representing one buyer-seller transaction.
// It mirrors the orders table; messages and the dispute record are stored
// alongside it and loaded on demand.
type Order struct {
	ID          string
	BuyerID     string
	SellerID    string
	VentureID   string
	Status      Status
	LineItem    LineItem
	Total       decimal.Decimal
	Address     *ShippingAddress
	Deleted     bool
	CreatedAt   time.Time
	AcceptedAt  *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// IsParticipant reports whether userID is the buyer or the seller.
func (o Order) IsParticipant(userID string) bool {
	return userID != "" && (userID == o.BuyerID || userID == o.SellerID)
}

// Counterparty returns the other party of the order, or "" when userID is
// not a participant.
func (o Order) Counterparty(userID string) string {
	switch userID {
	case o.BuyerID:
		return o.SellerID
	case o.SellerID:
		return o.BuyerID
	default:
		return ""
	}
}

// Message is one entry of an order's conversation. SentAt is assigned by
// the database so concurrent appends carry non-decreasing stamps.
type Message struct {
	ID       int64
	OrderID  string
	SenderID string
	Content  string
	SentAt   time.Time
}
