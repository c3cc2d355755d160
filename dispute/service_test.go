package dispute

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pedidoflow/order"
)

const (
	orderID  = "9a7b1c00-1111-2222-3333-444455550001"
	buyerID  = "9a7b1c00-1111-2222-3333-444455550002"
	sellerID = "9a7b1c00-1111-2222-3333-444455550003"
	adminID  = "9a7b1c00-1111-2222-3333-444455550004"
	otherID  = "9a7b1c00-1111-2222-3333-444455550005"
)

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	orders := &fakeOrders{orders: map[string]order.Order{
		orderID: {ID: orderID, BuyerID: buyerID, SellerID: sellerID},
	}}
	return NewService(repo, orders), repo
}

func TestFileReport_DescriptionBoundary(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// 19 characters: rejected.
	_, err := svc.FileReport(ctx, buyerID, FileParams{
		OrderID:     orderID,
		Reason:      ReasonItemNotReceived,
		Description: strings.Repeat("x", 19),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "description" {
		t.Fatalf("expected description validation error, got %v", err)
	}

	// 20 characters: accepted.
	rec, err := svc.FileReport(ctx, buyerID, FileParams{
		OrderID:     orderID,
		Reason:      ReasonItemNotReceived,
		Description: strings.Repeat("x", 20),
	})
	if err != nil {
		t.Fatalf("file report: %v", err)
	}
	if rec.ReporterID != buyerID || rec.ReportedID != sellerID {
		t.Fatalf("expected buyer reporting seller, got %+v", rec)
	}
	if rec.Resolved {
		t.Fatal("new dispute must start unresolved")
	}
	if rec.ActionTaken != ActionNoAction {
		t.Fatalf("expected default no_action, got %s", rec.ActionTaken)
	}
}

func TestFileReport_DescriptionCountsCharactersNotBytes(t *testing.T) {
	ctx := context.Background()

	// 10 accented characters are 20 bytes but still only 10 characters.
	svc, _ := newTestService()
	_, err := svc.FileReport(ctx, buyerID, FileParams{
		OrderID:     orderID,
		Reason:      ReasonItemNotReceived,
		Description: strings.Repeat("ñ", 10),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "description" {
		t.Fatalf("expected description validation error, got %v", err)
	}

	// 300 accented characters are 600 bytes but well within the 500 limit.
	svc, _ = newTestService()
	if _, err := svc.FileReport(ctx, buyerID, FileParams{
		OrderID:     orderID,
		Reason:      ReasonItemNotReceived,
		Description: strings.Repeat("ñ", 300),
	}); err != nil {
		t.Fatalf("file report with multibyte description: %v", err)
	}
}

func TestFileReport_DeletedOrderConflicts(t *testing.T) {
	repo := newFakeRepo()
	orders := &fakeOrders{orders: map[string]order.Order{
		orderID: {ID: orderID, BuyerID: buyerID, SellerID: sellerID, Deleted: true},
	}}
	svc := NewService(repo, orders)

	_, err := svc.FileReport(context.Background(), buyerID, FileParams{
		OrderID:     orderID,
		Reason:      ReasonItemNotReceived,
		Description: "the package never arrived at the address",
	})
	if !errors.Is(err, order.ErrConflict) {
		t.Fatalf("expected conflict for deleted order, got %v", err)
	}
}

func TestFileReport_Guards(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	desc := "the package never arrived at the address"

	if _, err := svc.FileReport(ctx, otherID, FileParams{OrderID: orderID, Reason: ReasonFraud, Description: desc}); !errors.Is(err, order.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
	if _, err := svc.FileReport(ctx, buyerID, FileParams{OrderID: orderID, Reason: "nonsense", Description: desc}); err == nil {
		t.Fatal("expected error for unknown reason")
	}
	if _, err := svc.FileReport(ctx, buyerID, FileParams{OrderID: "not-a-uuid", Reason: ReasonFraud, Description: desc}); err == nil {
		t.Fatal("expected error for malformed order id")
	}
}

func TestFileReport_SecondOpenDisputeConflicts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	desc := "seller stopped answering after payment"

	if _, err := svc.FileReport(ctx, buyerID, FileParams{OrderID: orderID, Reason: ReasonFraud, Description: desc}); err != nil {
		t.Fatalf("first report: %v", err)
	}
	_, err := svc.FileReport(ctx, sellerID, FileParams{OrderID: orderID, Reason: ReasonSpam, Description: desc})
	if !errors.Is(err, ErrOpenDispute) {
		t.Fatalf("expected ErrOpenDispute, got %v", err)
	}
}

func TestResolve_SanctionValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	longReason := strings.Repeat("seller repeatedly ignored delivery deadlines ", 3)

	seed := func() {
		_, _ = svc.FileReport(ctx, buyerID, FileParams{
			OrderID: orderID, Reason: ReasonItemNotReceived,
			Description: "the package never arrived at the address",
		})
	}
	seed()

	// reason text below 50 chars.
	_, err := svc.Resolve(ctx, adminID, ResolveInput{
		OrderID:     orderID,
		ActionTaken: ActionWarning,
		Sanctions:   []SanctionInput{{Type: SanctionWarning, ReasonText: "too short"}},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// 30 accented characters (60 bytes) are still below the 50-character minimum.
	_, err = svc.Resolve(ctx, adminID, ResolveInput{
		OrderID:     orderID,
		ActionTaken: ActionWarning,
		Sanctions:   []SanctionInput{{Type: SanctionWarning, ReasonText: strings.Repeat("ñ", 30)}},
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for short multibyte reason, got %v", err)
	}

	// end before start.
	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.Resolve(ctx, adminID, ResolveInput{
		OrderID:     orderID,
		ActionTaken: ActionWarning,
		Sanctions: []SanctionInput{{
			Type: SanctionTemporarySuspension, ReasonText: longReason,
			StartAt: &start, EndAt: &end,
		}},
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for inverted window, got %v", err)
	}

	// zero duration days.
	zero := 0
	_, err = svc.Resolve(ctx, adminID, ResolveInput{
		OrderID:     orderID,
		ActionTaken: ActionWarning,
		Sanctions: []SanctionInput{{
			Type: SanctionFine, ReasonText: longReason, DurationDays: &zero,
		}},
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for duration, got %v", err)
	}
}

func TestResolve_SanctionOutlivesResolution(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.FileReport(ctx, buyerID, FileParams{
		OrderID: orderID, Reason: ReasonItemNotReceived,
		Description: "the package never arrived at the address",
	})
	if err != nil {
		t.Fatalf("file report: %v", err)
	}

	start := time.Now()
	end := start.Add(7 * 24 * time.Hour)
	rec, err := svc.Resolve(ctx, adminID, ResolveInput{
		OrderID:     orderID,
		ActionTaken: ActionWarning,
		Sanctions: []SanctionInput{{
			Type:       SanctionTemporarySuspension,
			ReasonText: strings.Repeat("ignored the buyer and withheld the agreed shipment ", 2),
			StartAt:    &start,
			EndAt:      &end,
		}},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !rec.Resolved || rec.ResolvedAt == nil {
		t.Fatal("expected dispute resolved with timestamp")
	}
	if rec.ResolvedAt.Before(rec.FiledAt) {
		t.Fatal("resolved_at must not precede filed_at")
	}
	if len(rec.Sanctions) != 1 {
		t.Fatalf("expected 1 sanction, got %d", len(rec.Sanctions))
	}

	s := rec.Sanctions[0]
	if !s.Active {
		t.Fatal("sanction must stay active after dispute resolution")
	}
	if !s.InForce(start.Add(24 * time.Hour)) {
		t.Fatal("sanction should be in force before end_at")
	}
	if s.InForce(end.Add(time.Hour)) {
		t.Fatal("sanction should lapse after end_at")
	}

	// Resolving again conflicts.
	if _, err := svc.Resolve(ctx, adminID, ResolveInput{OrderID: orderID, ActionTaken: ActionRejected}); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

type fakeOrders struct {
	orders map[string]order.Order
}

func (f *fakeOrders) Get(_ context.Context, id string) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

// fakeRepo models the partial unique index and conditional resolve of the
// PostgreSQL repository.
type fakeRepo struct {
	records map[string][]*Record
	nextID  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string][]*Record)}
}

func (f *fakeRepo) Create(_ context.Context, params CreateParams) (Record, error) {
	for _, rec := range f.records[params.OrderID] {
		if !rec.Resolved {
			return Record{}, ErrOpenDispute
		}
	}
	f.nextID++
	rec := &Record{
		ID:          string(rune('a' + f.nextID)),
		OrderID:     params.OrderID,
		ReporterID:  params.ReporterID,
		ReportedID:  params.ReportedID,
		Reason:      params.Reason,
		Description: params.Description,
		ActionTaken: ActionNoAction,
		FiledAt:     time.Now(),
	}
	f.records[params.OrderID] = append(f.records[params.OrderID], rec)
	return *rec, nil
}

func (f *fakeRepo) GetByOrder(_ context.Context, orderID string) (Record, error) {
	recs := f.records[orderID]
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return *recs[len(recs)-1], nil
}

func (f *fakeRepo) Resolve(_ context.Context, params ResolveParams) (Record, error) {
	var open *Record
	for _, rec := range f.records[params.OrderID] {
		if !rec.Resolved {
			open = rec
			break
		}
	}
	if open == nil {
		if len(f.records[params.OrderID]) > 0 {
			return Record{}, ErrAlreadyResolved
		}
		return Record{}, ErrNotFound
	}
	now := time.Now()
	open.Resolved = true
	open.ResolvedAt = &now
	open.ActionTaken = params.ActionTaken
	for _, sp := range params.Sanctions {
		start := now
		if sp.StartAt != nil {
			start = *sp.StartAt
		}
		open.Sanctions = append(open.Sanctions, Sanction{
			ID:              "s",
			DisputeID:       open.ID,
			Type:            sp.Type,
			ReasonText:      sp.ReasonText,
			StartAt:         start,
			EndAt:           sp.EndAt,
			DurationDays:    sp.DurationDays,
			IssuedByAdminID: sp.IssuedByAdminID,
			Active:          true,
		})
	}
	return *open, nil
}
