package models

import "time"

// Student represents a learner profile owned by a user account.
type Student struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	FullName         string    `db:"full_name" json:"full_name"`
	Phone            string    `db:"phone" json:"phone"`
	EmergencyContact string    `db:"emergency_contact" json:"emergency_contact"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
