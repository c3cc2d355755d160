package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository defines the data access required by the lifecycle engine and
// the conversation channel.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Order, error)
	Transition(ctx context.Context, params TransitionParams) (Order, error)
	UpdateAddress(ctx context.Context, orderID string, addr ShippingAddress) (Order, error)
	UpdateDetails(ctx context.Context, orderID string, params DetailsParams) (Order, error)
	SoftDelete(ctx context.Context, orderID string) (Order, error)
	AppendMessage(ctx context.Context, orderID, senderID, content string) (Message, error)
	ListMessages(ctx context.Context, orderID string) ([]Message, error)
}

// TransitionParams describes a compare-and-swap status move. The update only
// applies while the row still holds one of the Expected statuses, closing the
// read-then-write race between concurrent transition requests.
type TransitionParams struct {
	OrderID       string
	Expected      []Status
	Next          Status
	MarkAccepted  bool
	MarkCompleted bool
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed order repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const orderColumns = `
	id, buyer_id, seller_id, venture_id, status::text,
	product_id, description, units, agreed_price, total,
	address_line, address_department, address_city,
	deleted, created_at, accepted_at, completed_at, updated_at
`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o          Order
		line, dept *string
		city       *string
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.VentureID, &o.Status,
		&o.LineItem.ProductID, &o.LineItem.Description, &o.LineItem.Units, &o.LineItem.AgreedPrice, &o.Total,
		&line, &dept, &city,
		&o.Deleted, &o.CreatedAt, &o.AcceptedAt, &o.CompletedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	if line != nil && dept != nil && city != nil {
		o.Address = &ShippingAddress{Line: *line, Department: *dept, City: *city}
	}
	return o, nil
}

// Create inserts a new pending order. created_at comes from the database
// clock so later accepted_at/completed_at stamps can never precede it.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Order, error) {
	const insertSQL = `
		INSERT INTO orders (buyer_id, seller_id, venture_id, product_id, description, units, agreed_price, total, address_line, address_department, address_city)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING ` + orderColumns

	var line, dept, city any
	if params.Address != nil {
		line, dept, city = params.Address.Line, params.Address.Department, params.Address.City
	}

	o, err := scanOrder(r.pool.QueryRow(ctx, insertSQL,
		params.BuyerID, params.SellerID, params.VentureID,
		params.LineItem.ProductID, params.LineItem.Description, params.LineItem.Units, params.LineItem.AgreedPrice,
		params.Total, line, dept, city,
	))
	if err != nil {
		return Order{}, fmt.Errorf("order: insert: %w", err)
	}
	return o, nil
}

// Get returns the order regardless of status or deletion; callers decide
// what a deleted row means for them.
func (r *PGRepository) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: get: %w", err)
	}
	return o, nil
}

func (r *PGRepository) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return r.list(ctx, "buyer_id", buyerID)
}

func (r *PGRepository) ListBySeller(ctx context.Context, sellerID string) ([]Order, error) {
	return r.list(ctx, "seller_id", sellerID)
}

func (r *PGRepository) list(ctx context.Context, column, userID string) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + `=$1 AND NOT deleted ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	defer rows.Close()

	out := make([]Order, 0, 16)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("order: scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: iterate: %w", err)
	}
	return out, nil
}

// Transition applies a status-conditioned update. When no row matches, a
// follow-up read distinguishes a missing order from a lost race so callers
// receive ErrNotFound or a ConflictError describing the state that won.
func (r *PGRepository) Transition(ctx context.Context, params TransitionParams) (Order, error) {
	const updateSQL = `
		UPDATE orders
		SET status = $2::order_status,
		    accepted_at  = CASE WHEN $3 THEN now() ELSE accepted_at END,
		    completed_at = CASE WHEN $4 THEN now() ELSE completed_at END,
		    updated_at   = now()
		WHERE id = $1
		  AND NOT deleted
		  AND status = ANY($5::order_status[])
		RETURNING ` + orderColumns

	expected := make([]string, len(params.Expected))
	for i, s := range params.Expected {
		expected[i] = string(s)
	}

	o, err := scanOrder(r.pool.QueryRow(ctx, updateSQL,
		params.OrderID, params.Next, params.MarkAccepted, params.MarkCompleted, expected,
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: transition: %w", err)
	}
	return Order{}, r.conflictFor(ctx, params.OrderID, "transition to "+string(params.Next))
}

// UpdateAddress replaces the shipping address on a live order.
func (r *PGRepository) UpdateAddress(ctx context.Context, orderID string, addr ShippingAddress) (Order, error) {
	const updateSQL = `
		UPDATE orders
		SET address_line=$2, address_department=$3, address_city=$4, updated_at=now()
		WHERE id=$1 AND NOT deleted
		RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, updateSQL, orderID, addr.Line, addr.Department, addr.City))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: update address: %w", err)
	}
	return Order{}, r.conflictFor(ctx, orderID, "update address")
}

// DetailsParams carries the editable fields of a pending order.
type DetailsParams struct {
	Description string
	Units       int
	AgreedPrice decimal.Decimal
	Total       decimal.Decimal
}

// UpdateDetails edits the negotiable fields. Only pending orders accept it;
// once the seller has moved the order forward the terms are locked.
func (r *PGRepository) UpdateDetails(ctx context.Context, orderID string, params DetailsParams) (Order, error) {
	const updateSQL = `
		UPDATE orders
		SET description=$2, units=$3, agreed_price=$4, total=$5, updated_at=now()
		WHERE id=$1 AND NOT deleted AND status='pending'
		RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, updateSQL, orderID, params.Description, params.Units, params.AgreedPrice, params.Total))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: update details: %w", err)
	}
	return Order{}, r.conflictFor(ctx, orderID, "edit")
}

// SoftDelete hides an order that is no longer active. The guard rejects
// pending and accepted orders in the same statement that flips the flag, so
// a concurrent accept cannot slip a live purchase under the delete.
func (r *PGRepository) SoftDelete(ctx context.Context, orderID string) (Order, error) {
	const updateSQL = `
		UPDATE orders
		SET deleted=true, updated_at=now()
		WHERE id=$1 AND NOT deleted AND status IN ('completed','cancelled')
		RETURNING ` + orderColumns

	o, err := scanOrder(r.pool.QueryRow(ctx, updateSQL, orderID))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: soft delete: %w", err)
	}
	return Order{}, r.conflictFor(ctx, orderID, "delete")
}

// AppendMessage persists one chat message as a single INSERT guarded by the
// order's liveness. Two concurrent senders both succeed; neither can
// overwrite the other.
func (r *PGRepository) AppendMessage(ctx context.Context, orderID, senderID, content string) (Message, error) {
	const insertSQL = `
		INSERT INTO order_messages (order_id, sender_id, content)
		SELECT o.id, $2, $3 FROM orders o WHERE o.id=$1 AND NOT o.deleted
		RETURNING id, order_id, sender_id, content, sent_at
	`

	var m Message
	err := r.pool.QueryRow(ctx, insertSQL, orderID, senderID, content).
		Scan(&m.ID, &m.OrderID, &m.SenderID, &m.Content, &m.SentAt)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, fmt.Errorf("order: append message: %w", err)
	}
	return Message{}, r.conflictFor(ctx, orderID, "send message")
}

// ListMessages returns the full conversation in append order.
func (r *PGRepository) ListMessages(ctx context.Context, orderID string) ([]Message, error) {
	const query = `
		SELECT id, order_id, sender_id, content, sent_at
		FROM order_messages
		WHERE order_id=$1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("order: list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 32)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.Content, &m.SentAt); err != nil {
			return nil, fmt.Errorf("order: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: iterate messages: %w", err)
	}
	return out, nil
}

// conflictFor explains why a conditional write matched nothing.
func (r *PGRepository) conflictFor(ctx context.Context, orderID, op string) error {
	var (
		status  Status
		deleted bool
	)
	err := r.pool.QueryRow(ctx, `SELECT status::text, deleted FROM orders WHERE id=$1`, orderID).
		Scan(&status, &deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("order: %s fetch: %w", op, err)
	}
	return &ConflictError{Op: op, Current: status, Deleted: deleted}
}
