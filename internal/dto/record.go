package dto

// RecordPackageInfo describes the catalog package behind an instance.
type RecordPackageInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Credits     int    `json:"credits"`
	IsUnlimited bool   `json:"isUnlimited"`
}

// RecordPackage is one purchased package as shown in the student record.
type RecordPackage struct {
	ID               string             `json:"id"`
	CreditsRemaining int                `json:"creditsRemaining"`
	IsActive         bool               `json:"isActive"`
	ValidUntil       string             `json:"validUntil"`
	Package          *RecordPackageInfo `json:"package,omitempty"`
}

// RecordPayment is one payment row in the student record.
type RecordPayment struct {
	ID            string `json:"id"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	ReceiptNumber string `json:"receiptNumber"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

// RecordResponse is the full per-student history view.
type RecordResponse struct {
	Attendances []AttendanceEntry `json:"attendances"`
	Payments    []RecordPayment   `json:"payments"`
	Packages    []RecordPackage   `json:"packages"`
}
