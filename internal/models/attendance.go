package models

import (
	"strings"
	"time"
)

// EntryMethod records how a check-in was captured.
type EntryMethod string

const (
	EntryMethodManual EntryMethod = "manual"
	EntryMethodNFC    EntryMethod = "nfc"
	EntryMethodOther  EntryMethod = "other"
)

// Valid returns true when the entry method is a supported value.
func (m EntryMethod) Valid() bool {
	switch m {
	case EntryMethodManual, EntryMethodNFC, EntryMethodOther:
		return true
	default:
		return false
	}
}

// ParseEntryMethod normalises a raw string into an EntryMethod.
func ParseEntryMethod(raw string) EntryMethod {
	return EntryMethod(strings.ToLower(strings.TrimSpace(raw)))
}

// AttendanceRecord is one class check-in. Records are immutable after
// creation; corrections go through reversal, never in-place edits.
type AttendanceRecord struct {
	ID               string      `db:"id" json:"id"`
	StudentID        string      `db:"student_id" json:"student_id"`
	ClassID          string      `db:"class_id" json:"class_id"`
	Date             time.Time   `db:"date" json:"date"`
	CreditsUsed      int         `db:"credits_used" json:"credits_used"`
	EntryMethod      EntryMethod `db:"entry_method" json:"entry_method"`
	SourcePackageID  *string     `db:"source_package_id" json:"source_package_id,omitempty"`
	Reversed         bool        `db:"reversed" json:"reversed"`
	ReversedAt       *time.Time  `db:"reversed_at" json:"reversed_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// AttendanceDetail extends a record with class metadata for listings.
type AttendanceDetail struct {
	AttendanceRecord
	StudentName string  `db:"student_name" json:"student_name"`
	ClassName   string  `db:"class_name" json:"class_name"`
	ClassStyle  *string `db:"class_style" json:"class_style,omitempty"`
}

// AttendanceFilter defines query filters for listings.
type AttendanceFilter struct {
	StudentID       string
	ClassID         string
	DateFrom        *time.Time
	DateTo          *time.Time
	IncludeReversed bool
	Page            int
	PageSize        int
	SortOrder       string
}
