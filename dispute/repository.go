package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pedidoflow/order"
)

var (
	// ErrNotFound is returned when no dispute exists for the order.
	ErrNotFound = errors.New("dispute: not found")
	// ErrOpenDispute signals an unresolved dispute already exists for the order.
	ErrOpenDispute = errors.New("dispute: an unresolved dispute already exists for this order")
	// ErrAlreadyResolved signals the dispute was resolved by a concurrent request.
	ErrAlreadyResolved = errors.New("dispute: already resolved")
)

// Repository handles data access for disputes and sanctions.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Record, error)
	GetByOrder(ctx context.Context, orderID string) (Record, error)
	Resolve(ctx context.Context, params ResolveParams) (Record, error)
}

// CreateParams contains the write parameters for filing a report.
type CreateParams struct {
	OrderID     string
	ReporterID  string
	ReportedID  string
	Reason      Reason
	Description string
}

// SanctionParams is one sanction to issue while resolving. A nil StartAt
// means the database clock.
type SanctionParams struct {
	Type            SanctionType
	ReasonText      string
	StartAt         *time.Time
	EndAt           *time.Time
	DurationDays    *int
	IssuedByAdminID string
}

// ResolveParams closes the open dispute of an order and records sanctions.
type ResolveParams struct {
	OrderID     string
	ActionTaken Action
	Sanctions   []SanctionParams
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed dispute repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const disputeColumns = `
	id, order_id, reporter_id, reported_id, reason::text, description,
	resolved, action_taken::text, filed_at, resolved_at
`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.OrderID, &rec.ReporterID, &rec.ReportedID, &rec.Reason,
		&rec.Description, &rec.Resolved, &rec.ActionTaken, &rec.FiledAt, &rec.ResolvedAt,
	)
	return rec, err
}

// Create files the report. The partial unique index on (order_id) WHERE NOT
// resolved makes the "one open dispute" rule hold under concurrent filings,
// and the insert is conditioned on the order row so a report never lands on
// a deleted order.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Record, error) {
	const insertSQL = `
		INSERT INTO disputes (order_id, reporter_id, reported_id, reason, description)
		SELECT o.id, $2, $3, $4::dispute_reason, $5
		FROM orders o
		WHERE o.id = $1 AND NOT o.deleted
		RETURNING ` + disputeColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, insertSQL,
		params.OrderID, params.ReporterID, params.ReportedID, params.Reason, params.Description))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrOpenDispute
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, &order.ConflictError{Op: "file report", Deleted: true}
		}
		return Record{}, fmt.Errorf("dispute: create: %w", err)
	}
	return rec, nil
}

// GetByOrder returns the most recent dispute for the order with its sanctions.
func (r *PGRepository) GetByOrder(ctx context.Context, orderID string) (Record, error) {
	const query = `
		SELECT ` + disputeColumns + `
		FROM disputes
		WHERE order_id = $1
		ORDER BY filed_at DESC
		LIMIT 1
	`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: get: %w", err)
	}

	sanctions, err := r.listSanctions(ctx, rec.ID)
	if err != nil {
		return Record{}, err
	}
	rec.Sanctions = sanctions
	return rec, nil
}

// Resolve closes the open dispute and inserts its sanctions in one
// transaction. The conditional update loses against a concurrent resolve,
// in which case the follow-up read tells the caller which rule fired.
func (r *PGRepository) Resolve(ctx context.Context, params ResolveParams) (Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateSQL = `
		UPDATE disputes
		SET resolved = true,
		    resolved_at = now(),
		    action_taken = $2::dispute_action
		WHERE order_id = $1 AND NOT resolved
		RETURNING ` + disputeColumns

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL, params.OrderID, params.ActionTaken))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("dispute: resolve: %w", err)
		}
		return Record{}, r.resolveConflict(ctx, params.OrderID)
	}

	const sanctionSQL = `
		INSERT INTO sanctions (dispute_id, type, reason_text, start_at, end_at, duration_days, issued_by_admin_id)
		VALUES ($1, $2::sanction_type, $3, COALESCE($4::timestamptz, now()), $5::timestamptz, $6, $7)
		RETURNING id, dispute_id, type::text, reason_text, start_at, end_at, duration_days, issued_by_admin_id, active
	`
	for _, sp := range params.Sanctions {
		var s Sanction
		err := tx.QueryRow(ctx, sanctionSQL,
			rec.ID, sp.Type, sp.ReasonText, sp.StartAt, sp.EndAt, sp.DurationDays, sp.IssuedByAdminID,
		).Scan(&s.ID, &s.DisputeID, &s.Type, &s.ReasonText, &s.StartAt, &s.EndAt, &s.DurationDays, &s.IssuedByAdminID, &s.Active)
		if err != nil {
			return Record{}, fmt.Errorf("dispute: insert sanction: %w", err)
		}
		rec.Sanctions = append(rec.Sanctions, s)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit resolve: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) resolveConflict(ctx context.Context, orderID string) error {
	var resolved bool
	err := r.pool.QueryRow(ctx,
		`SELECT resolved FROM disputes WHERE order_id=$1 ORDER BY filed_at DESC LIMIT 1`, orderID,
	).Scan(&resolved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("dispute: resolve fetch: %w", err)
	}
	if resolved {
		return ErrAlreadyResolved
	}
	return ErrNotFound
}

func (r *PGRepository) listSanctions(ctx context.Context, disputeID string) ([]Sanction, error) {
	const query = `
		SELECT id, dispute_id, type::text, reason_text, start_at, end_at, duration_days, issued_by_admin_id, active
		FROM sanctions
		WHERE dispute_id = $1
		ORDER BY start_at
	`
	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list sanctions: %w", err)
	}
	defer rows.Close()

	out := make([]Sanction, 0, 4)
	for rows.Next() {
		var s Sanction
		if err := rows.Scan(&s.ID, &s.DisputeID, &s.Type, &s.ReasonText, &s.StartAt, &s.EndAt, &s.DurationDays, &s.IssuedByAdminID, &s.Active); err != nil {
			return nil, fmt.Errorf("dispute: scan sanction: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate sanctions: %w", err)
	}
	return out, nil
}
