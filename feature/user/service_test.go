package user_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"loankeeper/core/fault"
	"loankeeper/feature/history"
	"loankeeper/feature/user"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

// sessionsMock is a testify mock for the session store subset.
type sessionsMock struct {
	mock.Mock
}

func (m *sessionsMock) Create(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *sessionsMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *sessionsMock) RevokeAllForUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *sessionsMock) SaveResetToken(ctx context.Context, tokenHash, userID string) error {
	return m.Called(ctx, tokenHash, userID).Error(0)
}

func (m *sessionsMock) ConsumeResetToken(ctx context.Context, tokenHash string) (string, error) {
	args := m.Called(ctx, tokenHash)
	return args.String(0), args.Error(1)
}

var userColumns = []string{
	"id", "username", "display_name", "password_hash", "is_admin",
	"last_login_at", "created_at", "updated_at",
}

func hashOf(password string) string {
	h, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(h)
}

func TestLogin(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)
	svc := user.NewService(db, sessions, history.NewRecorder(), nil, zap.NewNop())

	now := time.Now()
	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "admin", "Admin", hashOf("secret"), true, nil, now, now))
	sessions.On("Create", mock.Anything, mock.AnythingOfType("string"), "u1").Return(nil)
	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO `user_action_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	sessionID, logged, err := svc.Login(context.Background(), "admin", "secret")
	assert.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	assert.Equal(t, "u1", logged.ID)
	assert.NotNil(t, logged.LastLoginAt)
	sessions.AssertExpectations(t)
}

func TestLoginWrongPassword(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)
	svc := user.NewService(db, sessions, history.NewRecorder(), nil, zap.NewNop())

	now := time.Now()
	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "admin", "Admin", hashOf("secret"), true, nil, now, now))

	_, _, err := svc.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, user.ErrBadCredentials)
	sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

// Unknown usernames and non-admin accounts fail identically to a wrong
// password.
func TestLoginNonAdmin(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)
	svc := user.NewService(db, sessions, history.NewRecorder(), nil, zap.NewNop())

	now := time.Now()
	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u2", "maria", "Maria", hashOf("secret"), false, nil, now, now))

	_, _, err := svc.Login(context.Background(), "maria", "secret")
	assert.ErrorIs(t, err, user.ErrBadCredentials)

	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, _, err = svc.Login(context.Background(), "ghost", "secret")
	assert.ErrorIs(t, err, user.ErrBadCredentials)
}

// The token reaches the notifier raw while only its hash reaches the
// store.
func TestIssueResetToken(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)

	var notified string
	notifier := func(ctx context.Context, userID, username, token string) {
		notified = token
	}
	svc := user.NewService(db, sessions, history.NewRecorder(), notifier, zap.NewNop())

	now := time.Now()
	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "admin", "Admin", hashOf("secret"), true, nil, now, now))

	var storedHash string
	sessions.On("SaveResetToken", mock.Anything, mock.AnythingOfType("string"), "u1").
		Run(func(args mock.Arguments) { storedHash = args.String(1) }).
		Return(nil)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("INSERT INTO `user_action_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	svc.IssueResetToken(context.Background(), "admin")

	assert.NotEmpty(t, notified)
	sum := sha256.Sum256([]byte(notified))
	assert.Equal(t, hex.EncodeToString(sum[:]), storedHash)
}

// An unknown username produces no token, no store write, and no
// notification; the caller cannot tell the difference.
func TestIssueResetTokenUnknownUser(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)

	notified := false
	notifier := func(ctx context.Context, userID, username, token string) {
		notified = true
	}
	svc := user.NewService(db, sessions, history.NewRecorder(), notifier, zap.NewNop())

	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns))

	svc.IssueResetToken(context.Background(), "ghost")

	assert.False(t, notified)
	sessions.AssertNotCalled(t, "SaveResetToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)
	svc := user.NewService(db, sessions, history.NewRecorder(), nil, zap.NewNop())

	sessions.On("ConsumeResetToken", mock.Anything, mock.AnythingOfType("string")).Return("u1", nil)
	sessions.On("RevokeAllForUser", mock.Anything, "u1").Return(nil)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO `user_action_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	err := svc.ResetPassword(context.Background(), "raw-token", "new-password")
	assert.NoError(t, err)
	sessions.AssertExpectations(t)
}

func TestResetPasswordInvalidToken(t *testing.T) {
	db, _ := setupMockDB(t)
	sessions := new(sessionsMock)
	svc := user.NewService(db, sessions, history.NewRecorder(), nil, zap.NewNop())

	sessions.On("ConsumeResetToken", mock.Anything, mock.AnythingOfType("string")).
		Return("", errors.New("redis: nil"))

	err := svc.ResetPassword(context.Background(), "stale", "new-password")
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestDeleteUserBlockedByOpenLoan(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)
	svc := user.NewService(db, sessions, history.NewRecorder(), nil, zap.NewNop())

	now := time.Now()
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "maria", "Maria", "", false, nil, now, now))
	dbMock.ExpectQuery("SELECT count\\(\\*\\) FROM `loans`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	dbMock.ExpectRollback()

	err := svc.Delete(context.Background(), "u1", "admin")
	assert.ErrorIs(t, err, fault.ErrConflict)
	sessions.AssertNotCalled(t, "RevokeAllForUser", mock.Anything, mock.Anything)
}

// Deleting an account takes its reservations and returned loans with
// it, audits the cascade, and revokes every session.
func TestDeleteUserCascades(t *testing.T) {
	db, dbMock := setupMockDB(t)
	sessions := new(sessionsMock)
	svc := user.NewService(db, sessions, history.NewRecorder(), nil, zap.NewNop())

	sessions.On("RevokeAllForUser", mock.Anything, "u1").Return(nil)

	now := time.Now()
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT \\* FROM `users` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "maria", "Maria", "", false, nil, now, now))
	dbMock.ExpectQuery("SELECT count\\(\\*\\) FROM `loans`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	dbMock.ExpectQuery("SELECT \\* FROM `reservations` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "user_id", "start_date", "end_date", "status", "created_at", "updated_at"}).
			AddRow("r1", "i1", "u1", now, now.Add(24*time.Hour), "CONFIRMED", now, now))
	dbMock.ExpectExec("INSERT INTO `reservation_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("DELETE FROM `reservations`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("DELETE FROM `loans`").WillReturnResult(sqlmock.NewResult(0, 2))
	dbMock.ExpectExec("INSERT INTO `user_action_history`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("DELETE FROM `users`").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	err := svc.Delete(context.Background(), "u1", "admin")
	assert.NoError(t, err)
	sessions.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
