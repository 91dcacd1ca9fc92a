package dto

import "github.com/ritmo-academy/academy-api/internal/models"

// ActivePackage is the package the ledger would debit next for a student.
type ActivePackage struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	CreditsRemaining int    `json:"creditsRemaining"`
	IsUnlimited      bool   `json:"isUnlimited"`
	ValidUntil       string `json:"validUntil"`
}

// Streak is the consecutive-day attendance summary.
type Streak struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// AttendanceClass is the class metadata embedded in attendance entries.
type AttendanceClass struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Style *string `json:"style,omitempty"`
}

// AttendanceEntry is one attendance row as rendered to clients.
type AttendanceEntry struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	CreditsUsed int              `json:"creditsUsed"`
	EntryMethod string           `json:"entryMethod"`
	Class       *AttendanceClass `json:"class,omitempty"`
}

// StudentDashboardResponse backs the student home view.
type StudentDashboardResponse struct {
	ActivePackage     *ActivePackage       `json:"activePackage"`
	Streak            Streak               `json:"streak"`
	RecentAttendances []AttendanceEntry    `json:"recentAttendances"`
	Classes           []models.ClassDetail `json:"classes"`
}

// AdminStats aggregates the headline figures for the admin dashboard.
type AdminStats struct {
	Revenue struct {
		TotalMonth       float64 `json:"totalMonth"`
		GrowthPercentage float64 `json:"growthPercentage"`
		PendingPayments  float64 `json:"pendingPayments"`
	} `json:"revenue"`
	Students struct {
		TotalActive    int `json:"totalActive"`
		NewThisMonth   int `json:"newThisMonth"`
		AtRiskOfChurn  int `json:"atRiskOfChurn"`
	} `json:"students"`
	Occupancy struct {
		AveragePercentage float64 `json:"averagePercentage"`
		MostPopularClass  string  `json:"mostPopularClass"`
	} `json:"occupancy"`
}

// DailyOverview captures today's operational snapshot.
type DailyOverview struct {
	TodayAttendances int                    `json:"todayAttendances"`
	UpcomingClasses  []models.UpcomingClass `json:"upcomingClasses"`
	RecentPayments   []RecentPayment        `json:"recentPayments"`
}

// RecentPayment is a payment row for the daily overview.
type RecentPayment struct {
	ID          string  `json:"id"`
	StudentName string  `json:"studentName"`
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
}

// ChartPoint is a generic date/amount series element.
type ChartPoint struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// MonthCount is a month/count series element.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// AdminCharts groups the dashboard chart series.
type AdminCharts struct {
	RevenueHistory    []ChartPoint        `json:"revenueHistory"`
	AttendanceByStyle []models.StyleCount `json:"attendanceByStyle"`
	StudentGrowth     []MonthCount        `json:"studentGrowth"`
}

// AdminDashboardResponse backs the admin dashboard view.
type AdminDashboardResponse struct {
	Stats               AdminStats                  `json:"stats"`
	Daily               DailyOverview               `json:"daily"`
	Charts              AdminCharts                 `json:"charts"`
	TopTeachers         []models.TeacherPerformance `json:"topTeachers"`
	LowOccupancyClasses []models.ClassOccupancy     `json:"lowOccupancyClasses"`
}
