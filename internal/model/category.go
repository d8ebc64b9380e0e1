package model

import "time"

// Category represents a user-defined transaction category.
//
// Names are unique per user, compared case-insensitively; the storage layer
// enforces the constraint.
type Category struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
}
