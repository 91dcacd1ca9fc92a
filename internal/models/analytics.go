package models

import "time"

// RevenuePoint is one month of revenue for chart series.
type RevenuePoint struct {
	Month  time.Time `db:"month" json:"month"`
	Amount float64   `db:"amount" json:"amount"`
}

// StyleCount aggregates attendances per dance style.
type StyleCount struct {
	Style string `db:"style" json:"style"`
	Count int    `db:"count" json:"count"`
}

// GrowthPoint is one month of new-student counts.
type GrowthPoint struct {
	Month time.Time `db:"month" json:"month"`
	Count int       `db:"count" json:"count"`
}

// ClassOccupancy aggregates enrollment pressure for one class.
type ClassOccupancy struct {
	ClassID             string  `db:"class_id" json:"class_id"`
	ClassName           string  `db:"class_name" json:"class_name"`
	Style               string  `db:"style" json:"style"`
	MaxCapacity         int     `db:"max_capacity" json:"max_capacity"`
	EnrolledCount       int     `db:"enrolled_count" json:"enrolled_count"`
	OccupancyPercentage float64 `db:"occupancy_percentage" json:"occupancy_percentage"`
	TotalAttendances    int     `db:"total_attendances" json:"total_attendances"`
	RevenueGenerated    float64 `db:"revenue_generated" json:"revenue_generated"`
}

// TeacherPerformance aggregates per-teacher attendance averages.
type TeacherPerformance struct {
	TeacherID         string  `db:"teacher_id" json:"id"`
	TeacherName       string  `db:"teacher_name" json:"name"`
	TotalClasses      int     `db:"total_classes" json:"totalClasses"`
	AverageAttendance float64 `db:"average_attendance" json:"averageAttendance"`
}

// ChurnRiskStudent flags a student likely to lapse: active package close to
// expiry or nearly out of credits.
type ChurnRiskStudent struct {
	StudentID        string    `db:"student_id" json:"student_id"`
	StudentName      string    `db:"student_name" json:"student_name"`
	PackageName      string    `db:"package_name" json:"package_name"`
	CreditsRemaining int       `db:"credits_remaining" json:"credits_remaining"`
	IsUnlimited      bool      `db:"is_unlimited" json:"is_unlimited"`
	ValidUntil       time.Time `db:"valid_until" json:"valid_until"`
}

// UpcomingClass is a schedule slot happening later today with its
// enrollment pressure.
type UpcomingClass struct {
	ClassID       string `db:"class_id" json:"id"`
	ClassName     string `db:"class_name" json:"className"`
	StartTime     string `db:"start_time" json:"startTime"`
	TeacherName   string `db:"teacher_name" json:"teacherName"`
	RoomName      string `db:"room_name" json:"roomName"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolledCount"`
	Capacity      int    `db:"capacity" json:"capacity"`
}

// SystemMetrics is a point-in-time snapshot of runtime instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// RevenueSummary aggregates the money figures for the admin dashboard.
type RevenueSummary struct {
	TotalMonth     float64 `db:"total_month"`
	TotalLastMonth float64 `db:"total_last_month"`
	Pending        float64 `db:"pending"`
}
