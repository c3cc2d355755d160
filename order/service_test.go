package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	buyerID   = "0c2e51c0-8f6f-4a5b-9a55-7a1f6f3f0001"
	sellerID  = "0c2e51c0-8f6f-4a5b-9a55-7a1f6f3f0002"
	ventureID = "0c2e51c0-8f6f-4a5b-9a55-7a1f6f3f0003"
	productID = "0c2e51c0-8f6f-4a5b-9a55-7a1f6f3f0004"
	otherID   = "0c2e51c0-8f6f-4a5b-9a55-7a1f6f3f0005"
)

func validCreateParams() CreateParams {
	return CreateParams{
		SellerID:  sellerID,
		VentureID: ventureID,
		LineItem: LineItem{
			ProductID:   productID,
			Description: "Dos frascos de mermelada de mora",
			Units:       2,
			AgreedPrice: decimal.NewFromInt(1000),
		},
		Total: decimal.NewFromInt(2000),
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateParams)
		actor  string
		field  string
	}{
		{"buyer equals seller", func(p *CreateParams) { p.SellerID = buyerID }, buyerID, "seller_id"},
		{"zero units", func(p *CreateParams) { p.LineItem.Units = 0 }, buyerID, "units"},
		{"short description", func(p *CreateParams) { p.LineItem.Description = "ab" }, buyerID, "description"},
		{"long description", func(p *CreateParams) { p.LineItem.Description = strings.Repeat("x", 501) }, buyerID, "description"},
		{"negative price", func(p *CreateParams) { p.LineItem.AgreedPrice = decimal.NewFromInt(-1) }, buyerID, "agreed_price"},
		{"negative total", func(p *CreateParams) { p.Total = decimal.NewFromInt(-5) }, buyerID, "total"},
		{"malformed product id", func(p *CreateParams) { p.LineItem.ProductID = "not-a-uuid" }, buyerID, "product_id"},
		{"malformed actor id", func(p *CreateParams) {}, "someone", "buyer_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validCreateParams()
			tc.mutate(&params)
			_, err := svc.Create(ctx, tc.actor, params)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestService_CreateDescriptionCountsCharactersNotBytes(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	// Two accented characters are four bytes but still below the minimum.
	params := validCreateParams()
	params.LineItem.Description = strings.Repeat("ñ", 2)
	_, err := svc.Create(ctx, buyerID, params)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "description" {
		t.Fatalf("expected description validation error, got %v", err)
	}

	// 300 accented characters are 600 bytes but within the 500-character limit.
	params = validCreateParams()
	params.LineItem.Description = strings.Repeat("ñ", 300)
	if _, err := svc.Create(ctx, buyerID, params); err != nil {
		t.Fatalf("create with multibyte description: %v", err)
	}
}

func TestService_CreateStartsPending(t *testing.T) {
	svc := NewService(newFakeRepo())

	o, err := svc.Create(context.Background(), buyerID, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Status != StatusPending {
		t.Fatalf("expected status pending, got %s", o.Status)
	}
	if o.BuyerID != buyerID {
		t.Fatalf("expected buyer %s, got %s", buyerID, o.BuyerID)
	}
	if o.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}

func TestService_AcceptOnlySeller(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, err := svc.Create(ctx, buyerID, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Accept(ctx, buyerID, o.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for buyer accept, got %v", err)
	}
	if _, err := svc.Accept(ctx, otherID, o.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	accepted, err := svc.Accept(ctx, sellerID, o.ID)
	if err != nil {
		t.Fatalf("seller accept: %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if accepted.AcceptedAt == nil || accepted.AcceptedAt.Before(accepted.CreatedAt) {
		t.Fatalf("accepted_at must be set and not precede created_at: %+v", accepted.AcceptedAt)
	}
}

func TestService_CompleteRequiresAddress(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, _ := svc.Create(ctx, buyerID, validCreateParams())
	if _, err := svc.Accept(ctx, sellerID, o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := svc.Complete(ctx, sellerID, o.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "shipping_address" {
		t.Fatalf("expected shipping_address validation error, got %v", err)
	}

	addr := ShippingAddress{Line: "Cra 7 #12-34", Department: "Cundinamarca", City: "Bogota"}
	if _, err := svc.UpdateShippingAddress(ctx, buyerID, o.ID, addr); err != nil {
		t.Fatalf("update address: %v", err)
	}

	done, err := svc.Complete(ctx, sellerID, o.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.CompletedAt == nil || done.CompletedAt.Before(*done.AcceptedAt) {
		t.Fatal("completed_at must be set and not precede accepted_at")
	}
}

func TestService_CancelIsNotIdempotent(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, _ := svc.Create(ctx, buyerID, validCreateParams())

	cancelled, err := svc.Cancel(ctx, buyerID, o.ID)
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	_, err = svc.Cancel(ctx, buyerID, o.ID)
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError on second cancel, got %v", err)
	}
	if cerr.Current != StatusCancelled {
		t.Fatalf("conflict should report cancelled, got %s", cerr.Current)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatal("ConflictError must match ErrConflict")
	}
}

func TestService_CancelRefusedOnceCompleted(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, _ := svc.Create(ctx, buyerID, validCreateParams())
	addr := ShippingAddress{Line: "Calle 1", Department: "Antioquia", City: "Medellin"}
	_, _ = svc.UpdateShippingAddress(ctx, buyerID, o.ID, addr)
	_, _ = svc.Accept(ctx, sellerID, o.ID)
	if _, err := svc.Complete(ctx, sellerID, o.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := svc.Cancel(ctx, sellerID, o.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict cancelling a completed order, got %v", err)
	}
}

func TestService_SoftDeleteGating(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, _ := svc.Create(ctx, buyerID, validCreateParams())

	// Pending: active purchase, refuse.
	if _, err := svc.SoftDelete(ctx, buyerID, o.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict deleting pending order, got %v", err)
	}

	_, _ = svc.Accept(ctx, sellerID, o.ID)
	if _, err := svc.SoftDelete(ctx, buyerID, o.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict deleting accepted order, got %v", err)
	}

	if _, err := svc.Cancel(ctx, buyerID, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	deleted, err := svc.SoftDelete(ctx, buyerID, o.ID)
	if err != nil {
		t.Fatalf("soft delete after cancel: %v", err)
	}
	if !deleted.Deleted {
		t.Fatal("expected deleted flag set")
	}

	// Deleted is terminal: no further mutation succeeds.
	if _, err := svc.SoftDelete(ctx, buyerID, o.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on double delete, got %v", err)
	}
	if _, err := svc.AppendMessage(ctx, buyerID, o.ID, "hola"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict appending to deleted order, got %v", err)
	}
	addr := ShippingAddress{Line: "Calle 2", Department: "Valle", City: "Cali"}
	if _, err := svc.UpdateShippingAddress(ctx, buyerID, o.ID, addr); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict updating deleted order, got %v", err)
	}
}

func TestService_AppendMessageValidation(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, _ := svc.Create(ctx, buyerID, validCreateParams())

	if _, err := svc.AppendMessage(ctx, buyerID, o.ID, "   "); err == nil {
		t.Fatal("expected error for blank content")
	}
	if _, err := svc.AppendMessage(ctx, buyerID, o.ID, strings.Repeat("a", 1001)); err == nil {
		t.Fatal("expected error for oversized content")
	}
	if _, err := svc.AppendMessage(ctx, otherID, o.ID, "hola"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	m, err := svc.AppendMessage(ctx, buyerID, o.ID, "¿Cuándo se despacha?")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if m.SenderID != buyerID || m.Content != "¿Cuándo se despacha?" {
		t.Fatalf("unexpected message %+v", m)
	}

	history, err := svc.History(ctx, sellerID, o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
}

func TestService_UpdateDetailsOnlyWhilePending(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, _ := svc.Create(ctx, buyerID, validCreateParams())
	patch := DetailsParams{
		Description: "Tres frascos de mermelada de mora",
		Units:       3,
		AgreedPrice: decimal.NewFromInt(1000),
		Total:       decimal.NewFromInt(3000),
	}

	updated, err := svc.UpdateDetails(ctx, buyerID, o.ID, patch)
	if err != nil {
		t.Fatalf("update details: %v", err)
	}
	if updated.LineItem.Units != 3 {
		t.Fatalf("expected 3 units, got %d", updated.LineItem.Units)
	}

	if _, err := svc.UpdateDetails(ctx, sellerID, o.ID, patch); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for seller edit, got %v", err)
	}

	_, _ = svc.Accept(ctx, sellerID, o.ID)
	if _, err := svc.UpdateDetails(ctx, buyerID, o.ID, patch); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict editing accepted order, got %v", err)
	}
}

func TestService_GetGuardsParticipants(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	o, _ := svc.Create(ctx, buyerID, validCreateParams())

	if _, err := svc.Get(ctx, otherID, o.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, buyerID, "c3e4a1d2-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, buyerID, "nope"); err == nil {
		t.Fatal("expected validation error for malformed id")
	}
}

// fakeRepo is an in-memory Repository with the same compare-and-swap
// semantics as the PostgreSQL implementation.
type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]*Order
	msgs   map[string][]Message
	nextID int
	msgSeq int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: make(map[string]*Order),
		msgs:   make(map[string][]Message),
	}
}

func (f *fakeRepo) Create(_ context.Context, params CreateParams) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Now()
	o := Order{
		ID:        fmt.Sprintf("11111111-2222-3333-4444-%012d", f.nextID),
		BuyerID:   params.BuyerID,
		SellerID:  params.SellerID,
		VentureID: params.VentureID,
		Status:    StatusPending,
		LineItem:  params.LineItem,
		Total:     params.Total,
		Address:   params.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.orders[o.ID] = &o
	return o, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

func (f *fakeRepo) ListByBuyer(_ context.Context, buyerID string) ([]Order, error) {
	return f.listBy(func(o *Order) bool { return o.BuyerID == buyerID && !o.Deleted })
}

func (f *fakeRepo) ListBySeller(_ context.Context, sellerID string) ([]Order, error) {
	return f.listBy(func(o *Order) bool { return o.SellerID == sellerID && !o.Deleted })
}

func (f *fakeRepo) listBy(match func(*Order) bool) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Order{}
	for _, o := range f.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeRepo) conflict(o *Order, op string) error {
	return &ConflictError{Op: op, Current: o.Status, Deleted: o.Deleted}
}

func (f *fakeRepo) Transition(_ context.Context, params TransitionParams) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[params.OrderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	matched := false
	for _, s := range params.Expected {
		if o.Status == s {
			matched = true
			break
		}
	}
	if o.Deleted || !matched {
		return Order{}, f.conflict(o, "transition to "+string(params.Next))
	}
	now := time.Now()
	o.Status = params.Next
	if params.MarkAccepted {
		o.AcceptedAt = &now
	}
	if params.MarkCompleted {
		o.CompletedAt = &now
	}
	o.UpdatedAt = now
	return *o, nil
}

func (f *fakeRepo) UpdateAddress(_ context.Context, orderID string, addr ShippingAddress) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Deleted {
		return Order{}, f.conflict(o, "update address")
	}
	o.Address = &addr
	o.UpdatedAt = time.Now()
	return *o, nil
}

func (f *fakeRepo) UpdateDetails(_ context.Context, orderID string, params DetailsParams) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Deleted || o.Status != StatusPending {
		return Order{}, f.conflict(o, "edit")
	}
	o.LineItem.Description = params.Description
	o.LineItem.Units = params.Units
	o.LineItem.AgreedPrice = params.AgreedPrice
	o.Total = params.Total
	o.UpdatedAt = time.Now()
	return *o, nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, orderID string) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Deleted || (o.Status != StatusCompleted && o.Status != StatusCancelled) {
		return Order{}, f.conflict(o, "delete")
	}
	o.Deleted = true
	o.UpdatedAt = time.Now()
	return *o, nil
}

func (f *fakeRepo) AppendMessage(_ context.Context, orderID, senderID, content string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return Message{}, ErrNotFound
	}
	if o.Deleted {
		return Message{}, f.conflict(o, "send message")
	}
	f.msgSeq++
	m := Message{
		ID:       f.msgSeq,
		OrderID:  orderID,
		SenderID: senderID,
		Content:  content,
		SentAt:   time.Now(),
	}
	f.msgs[orderID] = append(f.msgs[orderID], m)
	return m, nil
}

func (f *fakeRepo) ListMessages(_ context.Context, orderID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.msgs[orderID]...), nil
}
