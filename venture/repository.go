package venture

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested venture does not exist.
var ErrNotFound = errors.New("venture: not found")

// Repository provides read access to venture profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a venture profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT id, owner_id, name, description, verified, created_at
		FROM ventures
		WHERE id = $1
	`

	var profile Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.OwnerID,
		&profile.Name,
		&profile.Description,
		&profile.Verified,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("venture: query by id: %w", err)
	}

	return profile, nil
}

// List fetches up to limit venture profiles ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, owner_id, name, description, verified, created_at
		FROM ventures
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("venture: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(&profile.ID, &profile.OwnerID, &profile.Name, &profile.Description, &profile.Verified, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("venture: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("venture: iterate profiles: %w", err)
	}

	return profiles, nil
}

// ListByOwner fetches the ventures belonging to one seller.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Profile, error) {
	const query = `
		SELECT id, owner_id, name, description, verified, created_at
		FROM ventures
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("venture: list by owner: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(&profile.ID, &profile.OwnerID, &profile.Name, &profile.Description, &profile.Verified, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("venture: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("venture: iterate profiles: %w", err)
	}

	return profiles, nil
}
