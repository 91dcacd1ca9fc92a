package models

import "time"

// PaymentStatus enumerates payment lifecycle states.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// Valid returns true when the method is a supported value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	default:
		return false
	}
}

// Payment records money received for a package purchase.
type Payment struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	StudentPackageID *string       `db:"student_package_id" json:"student_package_id,omitempty"`
	Amount           float64       `db:"amount" json:"amount"`
	Method           PaymentMethod `db:"method" json:"method"`
	ReceiptNumber    string        `db:"receipt_number" json:"receipt_number"`
	Status           PaymentStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// PaymentDetail adds student metadata for admin listings.
type PaymentDetail struct {
	Payment
	StudentName string `db:"student_name" json:"student_name"`
}

// PaymentFilter scopes payment listings.
type PaymentFilter struct {
	StudentID string
	Status    *PaymentStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
