package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	findByIDErr      error
	refreshTokens    map[string]*models.RefreshToken
	createdUser      *models.User
	createdStudent   *models.Student
	createStudentErr error
	revokedTokenIDs  []string
	revokedUserIDs   []string
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	m.createdUser = user
	m.userByEmail = user
	return nil
}

func (m *mockAuthRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.userByEmail == nil {
		return nil, 0, nil
	}
	return []models.User{*m.userByEmail}, 1, nil
}

func (m *mockAuthRepo) CreateWithStudent(ctx context.Context, user *models.User, student *models.Student) error {
	if m.createStudentErr != nil {
		return m.createStudentErr
	}
	m.createdUser = user
	m.createdStudent = student
	m.userByEmail = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUserIDs = append(m.revokedUserIDs, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedTokenIDs = append(m.revokedTokenIDs, id)
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockStudentProfileRepo struct {
	student *models.Student
	err     error
}

func (m *mockStudentProfileRepo) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.student, nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "academy-api-test",
	}
}

func hashedPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func testUser(t *testing.T) *models.User {
	return &models.User{
		ID:           "usr-1",
		Email:        "dancer@example.com",
		PasswordHash: hashedPassword(t, "secret123"),
		FullName:     "Test Dancer",
		Role:         models.RoleStudent,
		Active:       true,
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dancer@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "usr-1", resp.User.ID)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dancer@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := testUser(t)
	user.Active = false
	svc := NewAuthService(&mockAuthRepo{userByEmail: user}, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dancer@example.com",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestLoginSingleSessionRevokesPriorTokens(t *testing.T) {
	cfg := testAuthConfig()
	cfg.SingleSession = true
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, cfg)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dancer@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"usr-1"}, repo.revokedUserIDs)
}

func TestRegisterCreatesUserAndProfile(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		FullName: "New Dancer",
		Phone:    "555-0101",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, repo.createdUser)
	require.NotNil(t, repo.createdStudent)
	assert.Equal(t, models.RoleStudent, repo.createdUser.Role)
	assert.Equal(t, repo.createdUser.ID, repo.createdStudent.UserID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.createdUser.PasswordHash), []byte("secret123")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "dancer@example.com",
		Password: "secret123",
		FullName: "Copy Cat",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dancer@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Len(t, repo.revokedTokenIDs, 1)

	// The consumed token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{
		userByEmail: testUser(t),
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {
				ID:        "rt-1",
				UserID:    "usr-1",
				Token:     "stale",
				ExpiresAt: time.Now().UTC().Add(-time.Hour),
			},
		},
	}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dancer@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestChangePasswordRejectsWrongOld(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), "usr-1", models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "newsecret",
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestMeIncludesStudentProfile(t *testing.T) {
	student := &models.Student{ID: "stu-1", UserID: "usr-1", Active: true}
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{student: student}, nil, nil, testAuthConfig())

	me, err := svc.Me(context.Background(), "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", me.User.ID)
	require.NotNil(t, me.Student)
	assert.Equal(t, "stu-1", me.Student.ID)
}

func TestCreateStaffProvisionsReceptionist(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	user, err := svc.CreateStaff(context.Background(), "adm-1", CreateStaffRequest{
		Email:    "desk@academy.test",
		Password: "frontdesk1",
		FullName: "Front Desk",
		Role:     models.RoleReceptionist,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleReceptionist, user.Role)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("frontdesk1")))
	require.NotEmpty(t, repo.auditLogs)
	assert.Equal(t, models.AuditActionCreate, repo.auditLogs[len(repo.auditLogs)-1].Action)
}

func TestCreateStaffRejectsStudentRole(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	_, err := svc.CreateStaff(context.Background(), "adm-1", CreateStaffRequest{
		Email:    "kid@academy.test",
		Password: "password1",
		FullName: "Not Staff",
		Role:     models.RoleStudent,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateStaffDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: testUser(t)}
	svc := NewAuthService(repo, &mockStudentProfileRepo{}, nil, nil, testAuthConfig())

	_, err := svc.CreateStaff(context.Background(), "adm-1", CreateStaffRequest{
		Email:    testUser(t).Email,
		Password: "password1",
		FullName: "Dup",
		Role:     models.RoleAdmin,
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}
