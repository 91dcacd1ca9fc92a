package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/internal/models"
)

type dashboardAttendanceRepository interface {
	StudentDates(ctx context.Context, studentID string) ([]time.Time, error)
	Recent(ctx context.Context, studentID string, limit int) ([]models.AttendanceDetail, error)
}

type dashboardPackageRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentPackage, error)
}

type dashboardClassRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error)
}

type dashboardAnalyticsRepository interface {
	RevenueSummary(ctx context.Context, now time.Time) (*models.RevenueSummary, error)
	ActiveStudentCount(ctx context.Context) (int, error)
	NewStudentCount(ctx context.Context, now time.Time) (int, error)
	ChurnRisk(ctx context.Context, now time.Time, expiryDays, creditsFloor int) ([]models.ChurnRiskStudent, error)
	ClassOccupancy(ctx context.Context, now time.Time) ([]models.ClassOccupancy, error)
	TodayAttendanceCount(ctx context.Context, now time.Time) (int, error)
	UpcomingClasses(ctx context.Context, now time.Time) ([]models.UpcomingClass, error)
	RecentPayments(ctx context.Context, limit int) ([]models.PaymentDetail, error)
	RevenueHistory(ctx context.Context, now time.Time, months int) ([]models.RevenuePoint, error)
	AttendanceByStyle(ctx context.Context, now time.Time) ([]models.StyleCount, error)
	StudentGrowth(ctx context.Context, now time.Time, months int) ([]models.GrowthPoint, error)
	TopTeachers(ctx context.Context, now time.Time, limit int) ([]models.TeacherPerformance, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL              time.Duration
	ChurnExpiryDays       int
	ChurnCreditsFloor     int
	RecentAttendances     int
	ChartMonths           int
	TopTeachersLimit      int
	RecentPaymentsLimit   int
	LowOccupancyThreshold float64
}

// DashboardService composes the student and admin dashboard payloads.
// Every aggregate degrades to zero values when its source query fails, so
// a broken chart never takes the whole dashboard down.
type DashboardService struct {
	attendances dashboardAttendanceRepository
	packages    dashboardPackageRepository
	classes     dashboardClassRepository
	analytics   dashboardAnalyticsRepository
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Attendances dashboardAttendanceRepository
	Packages    dashboardPackageRepository
	Classes     dashboardClassRepository
	Analytics   dashboardAnalyticsRepository
	Cache       *CacheService
	Logger      *zap.Logger
	Now         func() time.Time
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ChurnExpiryDays <= 0 {
		cfg.ChurnExpiryDays = 7
	}
	if cfg.ChurnCreditsFloor <= 0 {
		cfg.ChurnCreditsFloor = 2
	}
	if cfg.RecentAttendances <= 0 {
		cfg.RecentAttendances = 10
	}
	if cfg.ChartMonths <= 0 {
		cfg.ChartMonths = 6
	}
	if cfg.TopTeachersLimit <= 0 {
		cfg.TopTeachersLimit = 5
	}
	if cfg.RecentPaymentsLimit <= 0 {
		cfg.RecentPaymentsLimit = 5
	}
	if cfg.LowOccupancyThreshold <= 0 {
		cfg.LowOccupancyThreshold = 40
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DashboardService{
		attendances: params.Attendances,
		packages:    params.Packages,
		classes:     params.Classes,
		analytics:   params.Analytics,
		cache:       params.Cache,
		logger:      logger,
		now:         now,
		cfg:         cfg,
	}
}

// StudentDashboard builds the home view for one student. The second
// return value reports whether the payload came from cache.
func (s *DashboardService) StudentDashboard(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	cacheKey := StudentDashboardKey(studentID)
	var cached dto.StudentDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	now := s.now()
	resp := &dto.StudentDashboardResponse{
		RecentAttendances: []dto.AttendanceEntry{},
		Classes:           []models.ClassDetail{},
	}

	if packages, err := s.packages.ListByStudent(ctx, studentID); err != nil {
		s.logger.Warn("student dashboard: packages unavailable", zap.String("student_id", studentID), zap.Error(err))
	} else {
		resp.ActivePackage = ActivePackageOf(packages, now)
	}

	if dates, err := s.attendances.StudentDates(ctx, studentID); err != nil {
		s.logger.Warn("student dashboard: attendance dates unavailable", zap.String("student_id", studentID), zap.Error(err))
	} else {
		resp.Streak = ComputeStreak(dates, now)
	}

	if recent, err := s.attendances.Recent(ctx, studentID, s.cfg.RecentAttendances); err != nil {
		s.logger.Warn("student dashboard: recent attendances unavailable", zap.String("student_id", studentID), zap.Error(err))
	} else {
		for _, a := range recent {
			resp.RecentAttendances = append(resp.RecentAttendances, AttendanceEntryOf(a))
		}
	}

	active := true
	if classes, err := s.classes.List(ctx, models.ClassFilter{Active: &active}); err != nil {
		s.logger.Warn("student dashboard: classes unavailable", zap.Error(err))
	} else {
		resp.Classes = classes
	}

	_ = s.cache.Set(ctx, cacheKey, resp, s.cfg.CacheTTL)
	return resp, false, nil
}

// AdminDashboard builds the management overview.
func (s *DashboardService) AdminDashboard(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	var cached dto.AdminDashboardResponse
	if hit, _ := s.cache.Get(ctx, AdminDashboardKey, &cached); hit {
		return &cached, true, nil
	}

	now := s.now()
	resp := &dto.AdminDashboardResponse{
		Daily: dto.DailyOverview{
			UpcomingClasses: []models.UpcomingClass{},
			RecentPayments:  []dto.RecentPayment{},
		},
		Charts: dto.AdminCharts{
			RevenueHistory:    []dto.ChartPoint{},
			AttendanceByStyle: []models.StyleCount{},
			StudentGrowth:     []dto.MonthCount{},
		},
		TopTeachers:         []models.TeacherPerformance{},
		LowOccupancyClasses: []models.ClassOccupancy{},
	}

	s.fillRevenueStats(ctx, now, resp)
	s.fillStudentStats(ctx, now, resp)
	s.fillOccupancy(ctx, now, resp)
	s.fillDaily(ctx, now, resp)
	s.fillCharts(ctx, now, resp)

	if teachers, err := s.analytics.TopTeachers(ctx, now, s.cfg.TopTeachersLimit); err != nil {
		s.logger.Warn("admin dashboard: top teachers unavailable", zap.Error(err))
	} else {
		resp.TopTeachers = teachers
	}

	_ = s.cache.Set(ctx, AdminDashboardKey, resp, s.cfg.CacheTTL)
	return resp, false, nil
}

func (s *DashboardService) fillRevenueStats(ctx context.Context, now time.Time, resp *dto.AdminDashboardResponse) {
	summary, err := s.analytics.RevenueSummary(ctx, now)
	if err != nil {
		s.logger.Warn("admin dashboard: revenue summary unavailable", zap.Error(err))
		return
	}
	if summary == nil {
		return
	}
	resp.Stats.Revenue.TotalMonth = summary.TotalMonth
	resp.Stats.Revenue.PendingPayments = summary.Pending
	if summary.TotalLastMonth > 0 {
		resp.Stats.Revenue.GrowthPercentage = (summary.TotalMonth - summary.TotalLastMonth) / summary.TotalLastMonth * 100
	}
}

func (s *DashboardService) fillStudentStats(ctx context.Context, now time.Time, resp *dto.AdminDashboardResponse) {
	if total, err := s.analytics.ActiveStudentCount(ctx); err != nil {
		s.logger.Warn("admin dashboard: active student count unavailable", zap.Error(err))
	} else {
		resp.Stats.Students.TotalActive = total
	}
	if fresh, err := s.analytics.NewStudentCount(ctx, now); err != nil {
		s.logger.Warn("admin dashboard: new student count unavailable", zap.Error(err))
	} else {
		resp.Stats.Students.NewThisMonth = fresh
	}
	if atRisk, err := s.analytics.ChurnRisk(ctx, now, s.cfg.ChurnExpiryDays, s.cfg.ChurnCreditsFloor); err != nil {
		s.logger.Warn("admin dashboard: churn risk unavailable", zap.Error(err))
	} else {
		resp.Stats.Students.AtRiskOfChurn = len(atRisk)
	}
}

func (s *DashboardService) fillOccupancy(ctx context.Context, now time.Time, resp *dto.AdminDashboardResponse) {
	occupancy, err := s.analytics.ClassOccupancy(ctx, now)
	if err != nil {
		s.logger.Warn("admin dashboard: class occupancy unavailable", zap.Error(err))
		return
	}
	if len(occupancy) == 0 {
		return
	}

	var sum float64
	mostPopular := occupancy[0]
	for _, c := range occupancy {
		sum += c.OccupancyPercentage
		if c.TotalAttendances > mostPopular.TotalAttendances {
			mostPopular = c
		}
		if c.OccupancyPercentage < s.cfg.LowOccupancyThreshold {
			resp.LowOccupancyClasses = append(resp.LowOccupancyClasses, c)
		}
	}
	resp.Stats.Occupancy.AveragePercentage = sum / float64(len(occupancy))
	resp.Stats.Occupancy.MostPopularClass = mostPopular.ClassName
}

func (s *DashboardService) fillDaily(ctx context.Context, now time.Time, resp *dto.AdminDashboardResponse) {
	if count, err := s.analytics.TodayAttendanceCount(ctx, now); err != nil {
		s.logger.Warn("admin dashboard: today attendance count unavailable", zap.Error(err))
	} else {
		resp.Daily.TodayAttendances = count
	}
	if upcoming, err := s.analytics.UpcomingClasses(ctx, now); err != nil {
		s.logger.Warn("admin dashboard: upcoming classes unavailable", zap.Error(err))
	} else {
		resp.Daily.UpcomingClasses = upcoming
	}
	if payments, err := s.analytics.RecentPayments(ctx, s.cfg.RecentPaymentsLimit); err != nil {
		s.logger.Warn("admin dashboard: recent payments unavailable", zap.Error(err))
	} else {
		for _, p := range payments {
			resp.Daily.RecentPayments = append(resp.Daily.RecentPayments, dto.RecentPayment{
				ID:          p.ID,
				StudentName: p.StudentName,
				Amount:      p.Amount,
				Method:      string(p.Method),
				Status:      string(p.Status),
			})
		}
	}
}

func (s *DashboardService) fillCharts(ctx context.Context, now time.Time, resp *dto.AdminDashboardResponse) {
	if history, err := s.analytics.RevenueHistory(ctx, now, s.cfg.ChartMonths); err != nil {
		s.logger.Warn("admin dashboard: revenue history unavailable", zap.Error(err))
	} else {
		for _, point := range history {
			resp.Charts.RevenueHistory = append(resp.Charts.RevenueHistory, dto.ChartPoint{
				Date:   point.Month.UTC().Format("2006-01"),
				Amount: point.Amount,
			})
		}
	}
	if styles, err := s.analytics.AttendanceByStyle(ctx, now); err != nil {
		s.logger.Warn("admin dashboard: attendance by style unavailable", zap.Error(err))
	} else {
		resp.Charts.AttendanceByStyle = styles
	}
	if growth, err := s.analytics.StudentGrowth(ctx, now, s.cfg.ChartMonths); err != nil {
		s.logger.Warn("admin dashboard: student growth unavailable", zap.Error(err))
	} else {
		for _, point := range growth {
			resp.Charts.StudentGrowth = append(resp.Charts.StudentGrowth, dto.MonthCount{
				Month: point.Month.UTC().Format("2006-01"),
				Count: point.Count,
			})
		}
	}
}
