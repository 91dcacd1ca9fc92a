package models

import "time"

// Teacher is an instructor assigned to classes. Teachers are managed by
// admins and do not have login accounts.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Specialty *string   `db:"specialty" json:"specialty,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Room is a physical studio a class takes place in.
type Room struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
}
