package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo-academy/academy-api/internal/models"
)

type mockDashboardAttendanceRepo struct {
	dates     []time.Time
	recent    []models.AttendanceDetail
	datesErr  error
	recentErr error
}

func (m *mockDashboardAttendanceRepo) StudentDates(ctx context.Context, studentID string) ([]time.Time, error) {
	if m.datesErr != nil {
		return nil, m.datesErr
	}
	return m.dates, nil
}

func (m *mockDashboardAttendanceRepo) Recent(ctx context.Context, studentID string, limit int) ([]models.AttendanceDetail, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

type mockDashboardPackageRepo struct {
	packages []models.StudentPackage
	err      error
}

func (m *mockDashboardPackageRepo) ListByStudent(ctx context.Context, studentID string) ([]models.StudentPackage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.packages, nil
}

type mockDashboardClassRepo struct {
	classes []models.ClassDetail
	err     error
}

func (m *mockDashboardClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.classes, nil
}

type mockAnalyticsRepo struct {
	revenue      *models.RevenueSummary
	revenueErr   error
	activeCount  int
	newCount     int
	churn        []models.ChurnRiskStudent
	occupancy    []models.ClassOccupancy
	occupancyErr error
	todayCount   int
	upcoming     []models.UpcomingClass
	payments     []models.PaymentDetail
	history      []models.RevenuePoint
	styles       []models.StyleCount
	growth       []models.GrowthPoint
	teachers     []models.TeacherPerformance
}

func (m *mockAnalyticsRepo) RevenueSummary(ctx context.Context, now time.Time) (*models.RevenueSummary, error) {
	if m.revenueErr != nil {
		return nil, m.revenueErr
	}
	return m.revenue, nil
}

func (m *mockAnalyticsRepo) ActiveStudentCount(ctx context.Context) (int, error) {
	return m.activeCount, nil
}

func (m *mockAnalyticsRepo) NewStudentCount(ctx context.Context, now time.Time) (int, error) {
	return m.newCount, nil
}

func (m *mockAnalyticsRepo) ChurnRisk(ctx context.Context, now time.Time, expiryDays, creditsFloor int) ([]models.ChurnRiskStudent, error) {
	return m.churn, nil
}

func (m *mockAnalyticsRepo) ClassOccupancy(ctx context.Context, now time.Time) ([]models.ClassOccupancy, error) {
	if m.occupancyErr != nil {
		return nil, m.occupancyErr
	}
	return m.occupancy, nil
}

func (m *mockAnalyticsRepo) TodayAttendanceCount(ctx context.Context, now time.Time) (int, error) {
	return m.todayCount, nil
}

func (m *mockAnalyticsRepo) UpcomingClasses(ctx context.Context, now time.Time) ([]models.UpcomingClass, error) {
	return m.upcoming, nil
}

func (m *mockAnalyticsRepo) RecentPayments(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	return m.payments, nil
}

func (m *mockAnalyticsRepo) RevenueHistory(ctx context.Context, now time.Time, months int) ([]models.RevenuePoint, error) {
	return m.history, nil
}

func (m *mockAnalyticsRepo) AttendanceByStyle(ctx context.Context, now time.Time) ([]models.StyleCount, error) {
	return m.styles, nil
}

func (m *mockAnalyticsRepo) StudentGrowth(ctx context.Context, now time.Time, months int) ([]models.GrowthPoint, error) {
	return m.growth, nil
}

func (m *mockAnalyticsRepo) TopTeachers(ctx context.Context, now time.Time, limit int) ([]models.TeacherPerformance, error) {
	return m.teachers, nil
}

func newDashboardServiceForTest(att *mockDashboardAttendanceRepo, pkgs *mockDashboardPackageRepo, classes *mockDashboardClassRepo, analytics *mockAnalyticsRepo, now time.Time) *DashboardService {
	return NewDashboardService(DashboardServiceParams{
		Attendances: att,
		Packages:    pkgs,
		Classes:     classes,
		Analytics:   analytics,
		Now:         func() time.Time { return now },
	})
}

func TestStudentDashboardComposition(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	att := &mockDashboardAttendanceRepo{
		dates: []time.Time{
			now.AddDate(0, 0, -1),
			now,
		},
		recent: []models.AttendanceDetail{
			{AttendanceRecord: models.AttendanceRecord{ID: "att-1", Date: now, CreditsUsed: 1, EntryMethod: models.EntryMethodManual}, StudentName: "Dancer", ClassName: "Salsa"},
		},
	}
	pkgs := &mockDashboardPackageRepo{
		packages: []models.StudentPackage{
			pkgAt("sp-1", false, 5, now.AddDate(0, -1, 0), now.AddDate(0, 0, 20)),
		},
	}
	classes := &mockDashboardClassRepo{classes: []models.ClassDetail{{}}}
	svc := newDashboardServiceForTest(att, pkgs, classes, &mockAnalyticsRepo{}, now)

	resp, cacheHit, err := svc.StudentDashboard(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	require.NotNil(t, resp.ActivePackage)
	assert.Equal(t, "sp-1", resp.ActivePackage.ID)
	assert.Equal(t, 2, resp.Streak.Current)
	assert.Equal(t, 2, resp.Streak.Max)
	require.Len(t, resp.RecentAttendances, 1)
	assert.Equal(t, "att-1", resp.RecentAttendances[0].ID)
	assert.Len(t, resp.Classes, 1)
}

func TestStudentDashboardDegradesOnFailures(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	att := &mockDashboardAttendanceRepo{datesErr: assert.AnError, recentErr: assert.AnError}
	pkgs := &mockDashboardPackageRepo{err: assert.AnError}
	classes := &mockDashboardClassRepo{err: assert.AnError}
	svc := newDashboardServiceForTest(att, pkgs, classes, &mockAnalyticsRepo{}, now)

	resp, cacheHit, err := svc.StudentDashboard(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Nil(t, resp.ActivePackage)
	assert.Equal(t, 0, resp.Streak.Current)
	assert.Empty(t, resp.RecentAttendances)
	assert.Empty(t, resp.Classes)
}

func TestAdminDashboardRevenueGrowth(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	analytics := &mockAnalyticsRepo{
		revenue: &models.RevenueSummary{
			TotalMonth:     1200,
			TotalLastMonth: 1000,
			Pending:        150,
		},
		activeCount: 42,
		newCount:    7,
		churn:       []models.ChurnRiskStudent{{}, {}, {}},
	}
	svc := newDashboardServiceForTest(&mockDashboardAttendanceRepo{}, &mockDashboardPackageRepo{}, &mockDashboardClassRepo{}, analytics, now)

	resp, _, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 20.0, resp.Stats.Revenue.GrowthPercentage, 0.001)
	assert.Equal(t, 1200.0, resp.Stats.Revenue.TotalMonth)
	assert.Equal(t, 150.0, resp.Stats.Revenue.PendingPayments)
	assert.Equal(t, 42, resp.Stats.Students.TotalActive)
	assert.Equal(t, 7, resp.Stats.Students.NewThisMonth)
	assert.Equal(t, 3, resp.Stats.Students.AtRiskOfChurn)
}

func TestAdminDashboardGrowthZeroWhenNoPriorRevenue(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	analytics := &mockAnalyticsRepo{
		revenue: &models.RevenueSummary{TotalMonth: 500, TotalLastMonth: 0},
	}
	svc := newDashboardServiceForTest(&mockDashboardAttendanceRepo{}, &mockDashboardPackageRepo{}, &mockDashboardClassRepo{}, analytics, now)

	resp, _, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Stats.Revenue.GrowthPercentage)
}

func TestAdminDashboardZeroRevenueWhenSummaryMissing(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	svc := newDashboardServiceForTest(&mockDashboardAttendanceRepo{}, &mockDashboardPackageRepo{}, &mockDashboardClassRepo{}, &mockAnalyticsRepo{}, now)

	resp, _, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Stats.Revenue.TotalMonth)
	assert.Equal(t, 0.0, resp.Stats.Revenue.GrowthPercentage)
	assert.Equal(t, 0.0, resp.Stats.Revenue.PendingPayments)
}

func TestAdminDashboardOccupancy(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	analytics := &mockAnalyticsRepo{
		occupancy: []models.ClassOccupancy{
			{ClassName: "Salsa", OccupancyPercentage: 80, TotalAttendances: 120},
			{ClassName: "Tango", OccupancyPercentage: 20, TotalAttendances: 30},
		},
	}
	svc := newDashboardServiceForTest(&mockDashboardAttendanceRepo{}, &mockDashboardPackageRepo{}, &mockDashboardClassRepo{}, analytics, now)

	resp, _, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50.0, resp.Stats.Occupancy.AveragePercentage, 0.001)
	assert.Equal(t, "Salsa", resp.Stats.Occupancy.MostPopularClass)
	require.Len(t, resp.LowOccupancyClasses, 1)
	assert.Equal(t, "Tango", resp.LowOccupancyClasses[0].ClassName)
}

func TestAdminDashboardChartsFormatMonths(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	analytics := &mockAnalyticsRepo{
		history: []models.RevenuePoint{
			{Month: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Amount: 900},
		},
		growth: []models.GrowthPoint{
			{Month: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Count: 4},
		},
	}
	svc := newDashboardServiceForTest(&mockDashboardAttendanceRepo{}, &mockDashboardPackageRepo{}, &mockDashboardClassRepo{}, analytics, now)

	resp, _, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Charts.RevenueHistory, 1)
	assert.Equal(t, "2025-05", resp.Charts.RevenueHistory[0].Date)
	assert.Equal(t, 900.0, resp.Charts.RevenueHistory[0].Amount)
	require.Len(t, resp.Charts.StudentGrowth, 1)
	assert.Equal(t, "2025-05", resp.Charts.StudentGrowth[0].Month)
	assert.Equal(t, 4, resp.Charts.StudentGrowth[0].Count)
}

func TestAdminDashboardDegradesOnRevenueFailure(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	analytics := &mockAnalyticsRepo{revenueErr: assert.AnError, occupancyErr: assert.AnError}
	svc := newDashboardServiceForTest(&mockDashboardAttendanceRepo{}, &mockDashboardPackageRepo{}, &mockDashboardClassRepo{}, analytics, now)

	resp, _, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Stats.Revenue.TotalMonth)
	assert.Equal(t, 0.0, resp.Stats.Occupancy.AveragePercentage)
	assert.Empty(t, resp.LowOccupancyClasses)
}
