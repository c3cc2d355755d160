package venture

import "time"

// Profile captures the subset of venture data exposed via the public API layer.
type Profile struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Verified    bool
	CreatedAt   time.Time
}
