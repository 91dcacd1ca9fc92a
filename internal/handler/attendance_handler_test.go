package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo-academy/academy-api/internal/middleware"
	"github.com/ritmo-academy/academy-api/internal/models"
	"github.com/ritmo-academy/academy-api/internal/service"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type fakeCheckinService struct {
	record     *models.AttendanceRecord
	recordErr  error
	lastActor  string
	lastCheck  service.CheckInRequest
	lastRevReq service.ReverseRequest
}

func (f *fakeCheckinService) RecordAttendance(_ context.Context, actorID string, req service.CheckInRequest) (*models.AttendanceRecord, error) {
	f.lastActor = actorID
	f.lastCheck = req
	return f.record, f.recordErr
}

func (f *fakeCheckinService) ReverseAttendance(_ context.Context, req service.ReverseRequest) (*models.AttendanceRecord, error) {
	f.lastRevReq = req
	return f.record, f.recordErr
}

type fakeAttendanceLister struct{}

func (f *fakeAttendanceLister) List(context.Context, models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	return nil, nil, nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}
}

func TestAttendanceCheckInSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeCheckinService{record: &models.AttendanceRecord{ID: "att-1"}}
	handler := NewAttendanceHandler(svc, &fakeAttendanceLister{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/attendances",
		strings.NewReader(`{"student_id":"stu-1","class_id":"cls-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.CheckIn(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "adm-1", svc.lastActor)
	assert.Equal(t, "stu-1", svc.lastCheck.StudentID)

	var body struct {
		Data models.AttendanceRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "att-1", body.Data.ID)
}

func TestAttendanceCheckInRejectsBadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(&fakeCheckinService{}, &fakeAttendanceLister{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/attendances", strings.NewReader("{"))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.CheckIn(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceCheckInNoCreditsConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeCheckinService{recordErr: appErrors.ErrNoEligibleCredits}
	handler := NewAttendanceHandler(svc, &fakeAttendanceLister{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/attendances",
		strings.NewReader(`{"student_id":"stu-1","class_id":"cls-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.CheckIn(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "NO_ELIGIBLE_CREDITS", body.Error.Code)
}

func TestAttendanceReversePassesActorRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeCheckinService{record: &models.AttendanceRecord{ID: "att-1", Reversed: true}}
	handler := NewAttendanceHandler(svc, &fakeAttendanceLister{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/attendances/att-1/reverse", nil)
	c.Params = gin.Params{{Key: "id", Value: "att-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "rec-1", Role: models.RoleReceptionist})

	handler.Reverse(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "att-1", svc.lastRevReq.AttendanceID)
	assert.Equal(t, models.RoleReceptionist, svc.lastRevReq.ActorRole)
}

func TestAttendanceReverseRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(&fakeCheckinService{}, &fakeAttendanceLister{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/attendances/att-1/reverse", nil)

	handler.Reverse(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
