package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	descriptionMin = 3
	descriptionMax = 500
	messageMax     = 1000

	// storage calls are bounded; expiry surfaces as a retryable failure
	// rather than a silent success.
	storageTimeout = 5 * time.Second
)

// CreateParams enumerates the fields supplied by the buyer at creation.
// BuyerID is filled in by the engine from the acting identity.
type CreateParams struct {
	BuyerID   string
	SellerID  string
	VentureID string
	LineItem  LineItem
	Total     decimal.Decimal
	Address   *ShippingAddress
}

// Service is the order lifecycle engine. Every operation takes the acting
// user's id resolved at the boundary; the engine never reads ambient state.
type Service struct {
	repo    Repository
	timeout time.Duration
}

// NewService builds the lifecycle engine on top of a Repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, timeout: storageTimeout}
}

// WithTimeout overrides the per-call storage deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// mapTimeout converts a deadline expiry into the retryable storage error.
func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStorageTimeout, err)
	}
	return err
}

func validateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalidf(field, "not a valid identifier")
	}
	return nil
}

// Create validates and persists a new pending order placed by actorID.
func (s *Service) Create(ctx context.Context, actorID string, params CreateParams) (Order, error) {
	if err := validateID("buyer_id", actorID); err != nil {
		return Order{}, err
	}
	if err := validateID("seller_id", params.SellerID); err != nil {
		return Order{}, err
	}
	if err := validateID("venture_id", params.VentureID); err != nil {
		return Order{}, err
	}
	if err := validateID("product_id", params.LineItem.ProductID); err != nil {
		return Order{}, err
	}
	if actorID == params.SellerID {
		return Order{}, invalidf("seller_id", "buyer and seller must differ")
	}
	desc := strings.TrimSpace(params.LineItem.Description)
	if n := utf8.RuneCountInString(desc); n < descriptionMin || n > descriptionMax {
		return Order{}, invalidf("description", "must be between %d and %d characters", descriptionMin, descriptionMax)
	}
	if params.LineItem.Units < 1 {
		return Order{}, invalidf("units", "must be at least 1")
	}
	if params.LineItem.AgreedPrice.IsNegative() {
		return Order{}, invalidf("agreed_price", "must not be negative")
	}
	if params.Total.IsNegative() {
		return Order{}, invalidf("total", "must not be negative")
	}
	if params.Address != nil {
		if err := validateAddress(*params.Address); err != nil {
			return Order{}, err
		}
	}

	params.LineItem.Description = desc
	params.BuyerID = actorID

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err := s.repo.Create(ctx, params)
	if err != nil {
		return Order{}, mapTimeout(err)
	}
	return o, nil
}

// Get returns the order when actorID is one of its parties.
func (s *Service) Get(ctx context.Context, actorID, orderID string) (Order, error) {
	if err := validateID("order_id", orderID); err != nil {
		return Order{}, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, mapTimeout(err)
	}
	if !o.IsParticipant(actorID) {
		return Order{}, ErrForbidden
	}
	return o, nil
}

// ListPurchases returns the actor's orders as buyer, any status.
func (s *Service) ListPurchases(ctx context.Context, actorID string) ([]Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	out, err := s.repo.ListByBuyer(ctx, actorID)
	return out, mapTimeout(err)
}

// ListSales returns the actor's orders as seller, any status.
func (s *Service) ListSales(ctx context.Context, actorID string) ([]Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	out, err := s.repo.ListBySeller(ctx, actorID)
	return out, mapTimeout(err)
}

// Accept moves a pending order to accepted. Only the seller may accept.
func (s *Service) Accept(ctx context.Context, actorID, orderID string) (Order, error) {
	o, err := s.Get(ctx, actorID, orderID)
	if err != nil {
		return Order{}, err
	}
	if actorID != o.SellerID {
		return Order{}, ErrForbidden
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err = s.repo.Transition(ctx, TransitionParams{
		OrderID:      orderID,
		Expected:     []Status{StatusPending},
		Next:         StatusAccepted,
		MarkAccepted: true,
	})
	return o, mapTimeout(err)
}

// Complete moves an accepted order to completed. The seller confirms
// fulfillment; a shipping address must be on file first.
func (s *Service) Complete(ctx context.Context, actorID, orderID string) (Order, error) {
	o, err := s.Get(ctx, actorID, orderID)
	if err != nil {
		return Order{}, err
	}
	if actorID != o.SellerID {
		return Order{}, ErrForbidden
	}
	if o.Address == nil {
		return Order{}, invalidf("shipping_address", "required before completion")
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err = s.repo.Transition(ctx, TransitionParams{
		OrderID:       orderID,
		Expected:      []Status{StatusAccepted},
		Next:          StatusCompleted,
		MarkCompleted: true,
	})
	return o, mapTimeout(err)
}

// Cancel aborts an order that has not reached a terminal state. Either party
// may cancel while the order is pending or accepted; a second cancel is a
// conflict, not a silent no-op.
func (s *Service) Cancel(ctx context.Context, actorID, orderID string) (Order, error) {
	if _, err := s.Get(ctx, actorID, orderID); err != nil {
		return Order{}, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err := s.repo.Transition(ctx, TransitionParams{
		OrderID:  orderID,
		Expected: []Status{StatusPending, StatusAccepted},
		Next:     StatusCancelled,
	})
	return o, mapTimeout(err)
}

// UpdateShippingAddress replaces the delivery address. Only the buyer edits
// where the goods go.
func (s *Service) UpdateShippingAddress(ctx context.Context, actorID, orderID string, addr ShippingAddress) (Order, error) {
	o, err := s.Get(ctx, actorID, orderID)
	if err != nil {
		return Order{}, err
	}
	if actorID != o.BuyerID {
		return Order{}, ErrForbidden
	}
	if err := validateAddress(addr); err != nil {
		return Order{}, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err = s.repo.UpdateAddress(ctx, orderID, addr)
	return o, mapTimeout(err)
}

// UpdateDetails edits the negotiable fields of a pending order.
func (s *Service) UpdateDetails(ctx context.Context, actorID, orderID string, params DetailsParams) (Order, error) {
	o, err := s.Get(ctx, actorID, orderID)
	if err != nil {
		return Order{}, err
	}
	if actorID != o.BuyerID {
		return Order{}, ErrForbidden
	}
	desc := strings.TrimSpace(params.Description)
	if n := utf8.RuneCountInString(desc); n < descriptionMin || n > descriptionMax {
		return Order{}, invalidf("description", "must be between %d and %d characters", descriptionMin, descriptionMax)
	}
	if params.Units < 1 {
		return Order{}, invalidf("units", "must be at least 1")
	}
	if params.AgreedPrice.IsNegative() {
		return Order{}, invalidf("agreed_price", "must not be negative")
	}
	if params.Total.IsNegative() {
		return Order{}, invalidf("total", "must not be negative")
	}
	params.Description = desc

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err = s.repo.UpdateDetails(ctx, orderID, params)
	return o, mapTimeout(err)
}

// SoftDelete hides an order with no active purchase. Pending and accepted
// orders are protected because the counterparty still relies on them.
func (s *Service) SoftDelete(ctx context.Context, actorID, orderID string) (Order, error) {
	if _, err := s.Get(ctx, actorID, orderID); err != nil {
		return Order{}, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	o, err := s.repo.SoftDelete(ctx, orderID)
	return o, mapTimeout(err)
}

// AppendMessage persists one conversation entry for a participant. Content
// is expected to be sanitized plain text already; the engine enforces length
// bounds and the order's liveness.
func (s *Service) AppendMessage(ctx context.Context, actorID, orderID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, invalidf("content", "must not be empty")
	}
	if utf8.RuneCountInString(content) > messageMax {
		return Message{}, invalidf("content", "must not exceed %d characters", messageMax)
	}
	if _, err := s.Get(ctx, actorID, orderID); err != nil {
		return Message{}, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	m, err := s.repo.AppendMessage(ctx, orderID, actorID, content)
	return m, mapTimeout(err)
}

// History returns the full conversation for a participant, oldest first.
func (s *Service) History(ctx context.Context, actorID, orderID string) ([]Message, error) {
	if _, err := s.Get(ctx, actorID, orderID); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	out, err := s.repo.ListMessages(ctx, orderID)
	return out, mapTimeout(err)
}

func validateAddress(addr ShippingAddress) error {
	if strings.TrimSpace(addr.Line) == "" {
		return invalidf("address.line", "must not be empty")
	}
	if strings.TrimSpace(addr.Department) == "" {
		return invalidf("address.department", "must not be empty")
	}
	if strings.TrimSpace(addr.City) == "" {
		return invalidf("address.city", "must not be empty")
	}
	return nil
}
