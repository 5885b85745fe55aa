package user

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"loankeeper/core/fault"
	"loankeeper/feature/history"
	historymodels "loankeeper/feature/history/models"
	loanmodels "loankeeper/feature/loan/models"
	reservationmodels "loankeeper/feature/reservation/models"
	"loankeeper/feature/user/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBadCredentials covers every authentication failure: unknown
// username, wrong password, and non-admin accounts all look the same
// to the caller.
var ErrBadCredentials = errors.New("invalid credentials")

// Sessions is the subset of the session store the user service needs.
type Sessions interface {
	Create(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	SaveResetToken(ctx context.Context, tokenHash, userID string) error
	ConsumeResetToken(ctx context.Context, tokenHash string) (string, error)
}

// Notifier receives issued password-reset tokens. Delivery (mail, chat)
// is up to the hook; the service itself never sends anything.
type Notifier func(ctx context.Context, userID, username, token string)

// Service handles accounts, authentication, and password resets.
type Service struct {
	db       *gorm.DB
	sessions Sessions
	recorder *history.Recorder
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new user service. notifier may be nil.
func NewService(db *gorm.DB, sessions Sessions, recorder *history.Recorder, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		sessions: sessions,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Login verifies an admin's credentials and opens a session. The
// returned ID goes into the session cookie; nothing else does.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrBadCredentials
	}
	if !user.IsAdmin {
		return "", nil, ErrBadCredentials
	}

	sessionID := uuid.NewString()
	if err := s.sessions.Create(ctx, sessionID, user.ID); err != nil {
		return "", nil, err
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("last_login_at", now).Error; err != nil {
			return err
		}
		return s.recorder.User(tx, user.ID, &user.ID, historymodels.ActionLogin, "admin login")
	})
	if err != nil {
		return "", nil, err
	}
	user.LastLoginAt = &now
	return sessionID, &user, nil
}

// Logout drops the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// IsAdmin reports whether the user still exists and is an admin.
// The auth middleware calls this on every request.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password,omitempty"`
	IsAdmin     bool   `json:"isAdmin"`
}

// Create adds an account. Password is optional; accounts without one
// can borrow and reserve but never log in.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*models.User, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.DisplayName) == "" {
		return nil, fault.Validationf("username and displayName are required")
	}

	user := &models.User{
		ID:          uuid.NewString(),
		Username:    in.Username,
		DisplayName: in.DisplayName,
		IsAdmin:     in.IsAdmin,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return s.recorder.User(tx, user.ID, &actorID, historymodels.ActionCreated,
			"account "+user.Username+" created")
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.NotFoundf("user %s", id)
		}
		return nil, err
	}
	return &user, nil
}

// Query filters a user listing.
type Query struct {
	Q    string // keyword against username/display name
	Page int
	Size int
}

// List returns a page of accounts.
func (s *Service) List(ctx context.Context, q Query) ([]models.User, int64, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}

	tx := s.db.WithContext(ctx).Model(&models.User{})
	if kw := strings.TrimSpace(q.Q); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		tx = tx.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := tx.Order("username ASC").Offset((q.Page - 1) * q.Size).Limit(q.Size).Find(&users).Error
	return users, total, err
}

// UpdateInput carries account changes. Nil fields are left untouched.
type UpdateInput struct {
	DisplayName *string `json:"displayName,omitempty"`
	IsAdmin     *bool   `json:"isAdmin,omitempty"`
	Password    *string `json:"password,omitempty"`
}

// Update changes an account. Demoting an admin or changing a password
// revokes every session the user holds.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, actorID string) (*models.User, error) {
	if in.DisplayName == nil && in.IsAdmin == nil && in.Password == nil {
		return nil, fault.Validationf("update contains no changes")
	}
	if in.DisplayName != nil && strings.TrimSpace(*in.DisplayName) == "" {
		return nil, fault.Validationf("displayName cannot be empty")
	}

	var user models.User
	revoke := false
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("user %s", id)
			}
			return err
		}

		updates := map[string]any{"updated_at": now}
		if in.DisplayName != nil {
			updates["display_name"] = *in.DisplayName
		}
		if in.IsAdmin != nil {
			updates["is_admin"] = *in.IsAdmin
			if user.IsAdmin && !*in.IsAdmin {
				revoke = true
			}
		}
		if in.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			updates["password_hash"] = string(hash)
			revoke = true
		}

		if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := s.recorder.User(tx, id, &actorID, historymodels.ActionUpdated,
			"account "+user.Username+" updated"); err != nil {
			return err
		}
		return tx.First(&user, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	if revoke {
		if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
			s.logger.Warn("Failed to revoke sessions after account update",
				zap.String("user_id", id), zap.Error(err))
		}
	}
	return &user, nil
}

// Delete removes an account. Blocked while the user holds an open
// loan; returned loans and reservations go with the account, and every
// session is revoked.
func (s *Service) Delete(ctx context.Context, id string, actorID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fault.NotFoundf("user %s", id)
			}
			return err
		}

		var open int64
		if err := tx.Model(&loanmodels.Loan{}).
			Where("user_id = ? AND returned_at IS NULL", id).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fault.Conflictf("user %s still has %d open loan(s)", user.Username, open)
		}

		var reservations []reservationmodels.Reservation
		if err := tx.Where("user_id = ?", id).Find(&reservations).Error; err != nil {
			return err
		}
		for _, res := range reservations {
			if err := s.recorder.Reservation(tx, res.ID, &actorID, historymodels.ActionCancelled,
				"cancelled because account "+user.Username+" was deleted"); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).
			Delete(&reservationmodels.Reservation{}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", id).
			Delete(&loanmodels.Loan{}).Error; err != nil {
			return err
		}

		if err := s.recorder.User(tx, id, &actorID, historymodels.ActionDeleted,
			"account "+user.Username+" deleted"); err != nil {
			return err
		}
		return tx.Delete(&models.User{ID: id}).Error
	})
	if err != nil {
		return err
	}

	if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
		s.logger.Warn("Failed to revoke sessions for deleted account",
			zap.String("user_id", id), zap.Error(err))
	}
	return nil
}

// IssueResetToken issues a password-reset token for the account behind
// username. Whether the account exists or not, the caller sees the
// same answer; the lookup result never leaks.
func (s *Service) IssueResetToken(ctx context.Context, username string) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Reset token lookup failed", zap.Error(err))
		}
		return
	}

	token := uuid.NewString()
	if err := s.sessions.SaveResetToken(ctx, hashToken(token), user.ID); err != nil {
		s.logger.Error("Failed to store reset token",
			zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recorder.User(tx, user.ID, nil, historymodels.ActionResetLink,
			"password reset link issued")
	})
	if err != nil {
		s.logger.Error("Failed to record reset token issuance",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	if s.notifier != nil {
		s.notifier(ctx, user.ID, user.Username, token)
	}
}

// ResetPassword consumes a reset token and sets a new password. All
// sessions of the user are revoked.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return fault.Validationf("password is required")
	}

	userID, err := s.sessions.ConsumeResetToken(ctx, hashToken(token))
	if err != nil || userID == "" {
		return fault.Validationf("invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		return s.recorder.User(tx, userID, &userID, historymodels.ActionUpdated,
			"password reset completed")
	})
	if err != nil {
		return err
	}

	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warn("Failed to revoke sessions after password reset",
			zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// hashToken is the one-way form a reset token takes before it touches
// the store; the raw token exists only in the notifier call.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
