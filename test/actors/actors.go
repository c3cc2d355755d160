package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// transient reports whether the failure came from the connection rather than
// the data: the chaos goroutine kills backends at random and actors are
// expected to ride that out.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57P01 admin shutdown, 08xxx connection errors
		return pgErr.Code == "57P01" || pgErr.Code[:2] == "08"
	}
	// pool-level failures (broken conn, closed socket)
	return true
}

// MessageSender appends conversation entries for one participant. Each
// successful append is counted so the run can check at the end that nothing
// was lost.
func MessageSender(ctx context.Context, pool *pgxpool.Pool, orderID, senderID string, sent *atomic.Int64, stop <-chan struct{}) error {
	const appendSQL = `
		INSERT INTO order_messages (order_id, sender_id, content)
		SELECT o.id, $2, $3 FROM orders o WHERE o.id = $1 AND NOT o.deleted
		RETURNING id`
	n := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		n++
		var id int64
		err := pool.QueryRow(ctx, appendSQL, orderID, senderID, fmt.Sprintf("mensaje %d de %s", n, senderID)).Scan(&id)
		switch {
		case err == nil:
			sent.Add(1)
		case errors.Is(err, pgx.ErrNoRows):
			// order deleted under us; nothing to count
		case !transient(err):
			return fmt.Errorf("sender append: %w", err)
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// transitionSQL is the same compare-and-swap shape the repository uses: the
// update applies only while the row still holds one of the expected statuses.
const transitionSQL = `
	UPDATE orders SET status = $2::order_status,
	       accepted_at  = CASE WHEN $3 THEN now() ELSE accepted_at END,
	       completed_at = CASE WHEN $4 THEN now() ELSE completed_at END,
	       updated_at   = now()
	WHERE id = $1 AND NOT deleted AND status = ANY($5::order_status[])
	RETURNING id`

func casTransition(ctx context.Context, pool *pgxpool.Pool, orderID, next string, markAccepted, markCompleted bool, expected []string) (bool, error) {
	var id string
	err := pool.QueryRow(ctx, transitionSQL, orderID, next, markAccepted, markCompleted, expected).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case transient(err):
		return false, nil
	default:
		return false, err
	}
}

// Accepter plays the seller hammering accept on a pending order.
func Accepter(ctx context.Context, pool *pgxpool.Pool, orderID string, wins *atomic.Int64, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		won, err := casTransition(ctx, pool, orderID, "accepted", true, false, []string{"pending"})
		if err != nil {
			return fmt.Errorf("accepter: %w", err)
		}
		if won {
			wins.Add(1)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Canceller races the accepter from the other side of the transaction.
func Canceller(ctx context.Context, pool *pgxpool.Pool, orderID string, wins *atomic.Int64, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		won, err := casTransition(ctx, pool, orderID, "cancelled", false, false, []string{"pending", "accepted"})
		if err != nil {
			return fmt.Errorf("canceller: %w", err)
		}
		if won {
			wins.Add(1)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Completer finishes accepted orders; it loses the race whenever the
// canceller got there first.
func Completer(ctx context.Context, pool *pgxpool.Pool, orderID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := casTransition(ctx, pool, orderID, "completed", false, true, []string{"accepted"}); err != nil {
			return fmt.Errorf("completer: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Editor plays the buyer editing negotiable fields while the order is still
// pending. Once accepted the guard makes these writes no-ops.
func Editor(ctx context.Context, pool *pgxpool.Pool, orderID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		units := 1 + rand.Intn(9)
		_, err := pool.Exec(ctx, `
			UPDATE orders SET units = $2, total = agreed_price * $2, updated_at = now()
			WHERE id = $1 AND NOT deleted AND status = 'pending'`, orderID, units)
		if err != nil && !transient(err) {
			return fmt.Errorf("editor: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// Reporter repeatedly files a dispute for the order. The partial unique
// index admits one unresolved dispute at a time; duplicates surface as 23505
// and count as losses, not failures.
func Reporter(ctx context.Context, pool *pgxpool.Pool, orderID, reporterID, reportedID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO disputes (order_id, reporter_id, reported_id, reason, description)
			VALUES ($1, $2, $3, 'item_not_received', 'el paquete nunca llegó a destino')`,
			orderID, reporterID, reportedID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// expected under contention
			} else if !transient(err) {
				return fmt.Errorf("reporter: %w", err)
			}
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// Resolver closes whatever open dispute exists, issuing a warning sanction.
func Resolver(ctx context.Context, pool *pgxpool.Pool, orderID, adminID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var disputeID string
		err := pool.QueryRow(ctx, `
			UPDATE disputes SET resolved = true, action_taken = 'warning', resolved_at = now()
			WHERE order_id = $1 AND NOT resolved
			RETURNING id`, orderID).Scan(&disputeID)
		if err == nil {
			_, err = pool.Exec(ctx, `
				INSERT INTO sanctions (dispute_id, type, reason_text, issued_by_admin_id)
				VALUES ($1, 'warning', $2, $3)`,
				disputeID, "amonestación formal tras revisar la conversación y la evidencia aportada", adminID)
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) && !transient(err) {
			return fmt.Errorf("resolver: %w", err)
		}
		time.Sleep(time.Duration(100+rand.Intn(150)) * time.Millisecond)
	}
}
