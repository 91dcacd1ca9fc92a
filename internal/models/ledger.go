package models

import "time"

// LedgerEntryType distinguishes debit and refund rows.
type LedgerEntryType string

const (
	LedgerEntryDebit  LedgerEntryType = "DEBIT"
	LedgerEntryRefund LedgerEntryType = "REFUND"
)

// LedgerEntry is one accounting row against a student package. For every
// instance, sum(DEBIT) - sum(REFUND) + credits_remaining equals the
// snapshotted credits (unlimited instances record zero-delta debits).
type LedgerEntry struct {
	ID               string          `db:"id" json:"id"`
	StudentPackageID string          `db:"student_package_id" json:"student_package_id"`
	AttendanceID     string          `db:"attendance_id" json:"attendance_id"`
	Type             LedgerEntryType `db:"type" json:"type"`
	Credits          int             `db:"credits" json:"credits"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}
