package dispute

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pedidoflow/order"
)

const (
	descriptionMin = 20
	descriptionMax = 500
	reasonTextMin  = 50
)

// ValidationError reports a user-correctable input problem with field detail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dispute: invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// OrderDirectory is the slice of the order store the workflow needs to
// identify the parties of an order.
type OrderDirectory interface {
	Get(ctx context.Context, id string) (order.Order, error)
}

// Service runs the report/sanction workflow on top of the repository.
type Service struct {
	repo   Repository
	orders OrderDirectory
}

// NewService builds the dispute workflow service.
func NewService(repo Repository, orders OrderDirectory) *Service {
	return &Service{repo: repo, orders: orders}
}

// FileParams is the caller-facing input for filing a report.
type FileParams struct {
	OrderID     string
	Reason      Reason
	Description string
}

// FileReport creates the dispute record for an order. The reporter must be a
// party of the order; the reported user is always the counterparty.
func (s *Service) FileReport(ctx context.Context, actorID string, params FileParams) (Record, error) {
	if _, err := uuid.Parse(params.OrderID); err != nil {
		return Record{}, invalidf("order_id", "not a valid identifier")
	}
	if !validReason(params.Reason) {
		return Record{}, invalidf("reason", "unknown reason %q", params.Reason)
	}
	desc := strings.TrimSpace(params.Description)
	if n := utf8.RuneCountInString(desc); n < descriptionMin || n > descriptionMax {
		return Record{}, invalidf("description", "must be between %d and %d characters", descriptionMin, descriptionMax)
	}

	o, err := s.orders.Get(ctx, params.OrderID)
	if err != nil {
		return Record{}, err
	}
	reported := o.Counterparty(actorID)
	if reported == "" {
		return Record{}, order.ErrForbidden
	}
	if o.Deleted {
		return Record{}, &order.ConflictError{Op: "file report", Deleted: true}
	}

	return s.repo.Create(ctx, CreateParams{
		OrderID:     params.OrderID,
		ReporterID:  actorID,
		ReportedID:  reported,
		Reason:      params.Reason,
		Description: desc,
	})
}

// Get returns the order's dispute for one of its parties.
func (s *Service) Get(ctx context.Context, actorID, orderID string) (Record, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return Record{}, invalidf("order_id", "not a valid identifier")
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Record{}, err
	}
	if !o.IsParticipant(actorID) {
		return Record{}, order.ErrForbidden
	}
	return s.repo.GetByOrder(ctx, orderID)
}

// ResolveInput is the caller-facing input for resolving a dispute.
type ResolveInput struct {
	OrderID     string
	ActionTaken Action
	Sanctions   []SanctionInput
}

// SanctionInput is one sanction requested by the resolving administrator.
type SanctionInput struct {
	Type         SanctionType
	ReasonText   string
	StartAt      *time.Time
	EndAt        *time.Time
	DurationDays *int
}

// Resolve closes the order's open dispute and issues the requested
// sanctions. Sanctions stay active on their own schedule after resolution.
func (s *Service) Resolve(ctx context.Context, adminID string, input ResolveInput) (Record, error) {
	if _, err := uuid.Parse(input.OrderID); err != nil {
		return Record{}, invalidf("order_id", "not a valid identifier")
	}
	if !validAction(input.ActionTaken) {
		return Record{}, invalidf("action_taken", "unknown action %q", input.ActionTaken)
	}

	sanctions := make([]SanctionParams, 0, len(input.Sanctions))
	for i, in := range input.Sanctions {
		if !validSanctionType(in.Type) {
			return Record{}, invalidf(fmt.Sprintf("sanctions[%d].type", i), "unknown sanction type %q", in.Type)
		}
		reason := strings.TrimSpace(in.ReasonText)
		if utf8.RuneCountInString(reason) < reasonTextMin {
			return Record{}, invalidf(fmt.Sprintf("sanctions[%d].reason_text", i), "must be at least %d characters", reasonTextMin)
		}
		if in.EndAt != nil {
			start := time.Now()
			if in.StartAt != nil {
				start = *in.StartAt
			}
			if in.EndAt.Before(start) {
				return Record{}, invalidf(fmt.Sprintf("sanctions[%d].end_at", i), "must not precede start_at")
			}
		}
		if in.DurationDays != nil && *in.DurationDays < 1 {
			return Record{}, invalidf(fmt.Sprintf("sanctions[%d].duration_days", i), "must be at least 1")
		}
		sanctions = append(sanctions, SanctionParams{
			Type:            in.Type,
			ReasonText:      reason,
			StartAt:         in.StartAt,
			EndAt:           in.EndAt,
			DurationDays:    in.DurationDays,
			IssuedByAdminID: adminID,
		})
	}

	return s.repo.Resolve(ctx, ResolveParams{
		OrderID:     input.OrderID,
		ActionTaken: input.ActionTaken,
		Sanctions:   sanctions,
	})
}
