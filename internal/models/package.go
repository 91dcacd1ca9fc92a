package models

import "time"

// PackageDefinition is a purchasable credit bundle in the catalog.
// Credits, unlimited flag and duration are snapshotted onto instances at
// purchase time, so later catalog edits never retroact.
type PackageDefinition struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	Credits      int       `db:"credits" json:"credits"`
	IsUnlimited  bool      `db:"is_unlimited" json:"is_unlimited"`
	Price        float64   `db:"price" json:"price"`
	DurationDays int       `db:"duration_days" json:"duration_days"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentPackage is one student's purchase of a catalog package. Instances
// are never deleted, only deactivated, so the ledger trail stays complete.
type StudentPackage struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	PackageID        string    `db:"package_id" json:"package_id"`
	PackageName      string    `db:"package_name" json:"package_name"`
	Credits          int       `db:"credits" json:"credits"`
	CreditsRemaining int       `db:"credits_remaining" json:"credits_remaining"`
	IsUnlimited      bool      `db:"is_unlimited" json:"is_unlimited"`
	ValidFrom        time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil       time.Time `db:"valid_until" json:"valid_until"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// EligibleFor reports whether the instance can cover a debit of cost credits
// at the given time.
func (p StudentPackage) EligibleFor(cost int, at time.Time) bool {
	if !p.IsActive {
		return false
	}
	if at.Before(p.ValidFrom) || at.After(p.ValidUntil) {
		return false
	}
	return p.IsUnlimited || p.CreditsRemaining >= cost
}

// PackageFilter scopes catalog listing.
type PackageFilter struct {
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
