package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against the live database while the
// actors are hammering it. Every query must come back empty.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_status_stamp_consistency",
			SQL: `SELECT id, status FROM orders
                  WHERE (status IN ('accepted','completed') AND accepted_at IS NULL)
                     OR (status = 'completed' AND completed_at IS NULL)
                     OR (status IN ('pending','cancelled') AND completed_at IS NOT NULL)`,
		},
		{
			Name: "O2_temporal_order",
			SQL: `SELECT id FROM orders
                  WHERE accepted_at < created_at
                     OR completed_at < accepted_at`,
		},
		{
			Name: "O3_no_deleted_active",
			SQL: `SELECT id, status FROM orders
                  WHERE deleted AND status IN ('pending','accepted')`,
		},
		{
			Name: "O4_single_open_dispute",
			SQL: `SELECT order_id, COUNT(*) FROM disputes
                  WHERE NOT resolved
                  GROUP BY order_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_resolution_complete",
			SQL: `SELECT id FROM disputes
                  WHERE (resolved AND resolved_at IS NULL)
                     OR (NOT resolved AND resolved_at IS NOT NULL)
                     OR resolved_at < filed_at`,
		},
		{
			Name: "O6_sanction_integrity",
			SQL: `SELECT id FROM sanctions
                  WHERE end_at < start_at
                     OR char_length(reason_text) < 50
                     OR duration_days < 1`,
		},
		{
			Name: "O7_sanction_belongs_to_resolved",
			SQL: `SELECT s.id FROM sanctions s
                  JOIN disputes d ON d.id = s.dispute_id
                  WHERE NOT d.resolved`,
		},
		{
			Name: "O8_message_bounds",
			SQL: `SELECT m.id FROM order_messages m
                  WHERE char_length(m.content) < 1 OR char_length(m.content) > 1000`,
		},
		{
			Name: "O9_no_messages_after_delete",
			SQL: `SELECT m.id FROM order_messages m
                  JOIN orders o ON o.id = m.order_id
                  WHERE o.deleted AND m.sent_at > o.updated_at`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
