// Package identity resolves callers to an explicit role-tagged
// identity at authentication time and manages the operator lifecycle.
// Sessions are opaque tokens in Redis; roles are a single field on the
// user record, never inferred from table membership.
package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/models"
	"seva-portal/internal/store"
)

const sessionKeyPrefix = "session:"

// Notifier receives best-effort account notifications. Failures are the
// implementation's to log.
type Notifier interface {
	OperatorApproved(ctx context.Context, email, fullName string)
}

type Service struct {
	db         *sql.DB
	users      *store.UserStore
	operators  *store.OperatorStore
	audit      *store.AuditStore
	redis      *redis.Client
	sessionTTL time.Duration
	bcryptCost int
	notifier   Notifier
	logger     logger.Logger
}

func NewService(db *sql.DB, users *store.UserStore, operators *store.OperatorStore, audit *store.AuditStore, rdb *redis.Client, sessionTTL time.Duration, bcryptCost int, log logger.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		db:         db,
		users:      users,
		operators:  operators,
		audit:      audit,
		redis:      rdb,
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
		logger:     log.WithFields(logger.Fields{"service": "identity"}),
	}
}

// WithNotifier attaches an approval notifier. Optional.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Authenticate verifies credentials and issues a session token. An
// inactive operator exists but cannot authenticate into the operator
// role. Credential failures are indistinguishable from unknown emails.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Identity, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", apperrors.NewAuthenticationError("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return nil, "", apperrors.NewAuthenticationError("invalid credentials")
		}
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", apperrors.NewAuthenticationError("invalid credentials")
	}
	if user.Role == models.RoleOperator && !user.IsActive {
		return nil, "", apperrors.NewAuthenticationError("operator account awaiting approval")
	}

	ident := &models.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		IsActive: user.IsActive,
	}

	token := uuid.New().String()
	raw, err := json.Marshal(ident)
	if err != nil {
		return nil, "", apperrors.NewStoreUnavailableError(err)
	}
	if err := s.redis.Set(ctx, sessionKeyPrefix+token, raw, s.sessionTTL).Err(); err != nil {
		return nil, "", apperrors.NewStoreUnavailableError(err)
	}

	s.logger.Info("user authenticated", logger.Fields{
		"userId": user.ID,
		"role":   string(user.Role),
	})
	return ident, token, nil
}

// Resolve returns the identity bound to a session token.
func (s *Service) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, apperrors.NewAuthenticationError("missing session token")
	}
	raw, err := s.redis.Get(ctx, sessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, apperrors.NewAuthenticationError("session expired or unknown")
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	var ident models.Identity
	if err := json.Unmarshal([]byte(raw), &ident); err != nil {
		return nil, apperrors.NewAuthenticationError("corrupt session")
	}
	return &ident, nil
}

// Logout invalidates a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.redis.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

// RegisterOperatorInput carries an operator self-registration.
type RegisterOperatorInput struct {
	FullName string
	Email    string
	Mobile   string
	Password string
}

// RegisterOperator creates an operator account in the inactive state.
// Only explicit admin approval activates it.
func (s *Service) RegisterOperator(ctx context.Context, in RegisterOperatorInput) (*models.Operator, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FullName == "" || in.Email == "" || len(in.Password) < 8 {
		return nil, apperrors.NewValidationError("full_name, email and a password of at least 8 characters are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewValidationError("password could not be hashed")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	user := &models.User{
		ID:           id,
		FullName:     in.FullName,
		Email:        in.Email,
		Mobile:       in.Mobile,
		Role:         models.RoleOperator,
		IsActive:     false,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	op := &models.Operator{
		ID:        id,
		FullName:  in.FullName,
		Mobile:    in.Mobile,
		IsActive:  false,
		CreatedAt: now,
	}

	// Both rows or neither: a users row without its operators row would
	// make the later approval half-apply.
	err = store.Transact(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.WithTx(tx).Insert(ctx, user); err != nil {
			return err
		}
		return s.operators.WithTx(tx).Insert(ctx, op)
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperrors.NewValidationError("email already registered")
		}
		return nil, err
	}

	s.logger.Info("operator registered", logger.Fields{"operatorId": id})
	return op, nil
}

// ApproveOperator activates an operator account. Admin only.
func (s *Service) ApproveOperator(ctx context.Context, caller models.Identity, operatorID string) error {
	return s.setOperatorActive(ctx, caller, operatorID, true, "operator_approved")
}

// DeactivateOperator reversibly disables an operator account. Admin
// only.
func (s *Service) DeactivateOperator(ctx context.Context, caller models.Identity, operatorID string) error {
	return s.setOperatorActive(ctx, caller, operatorID, false, "operator_deactivated")
}

// DeleteOperator irreversibly removes the operator and its user row.
// Applications assigned to it are left as they are; relisting them is
// a separate admin decision.
func (s *Service) DeleteOperator(ctx context.Context, caller models.Identity, operatorID string) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbiddenError("operator deletion requires the admin role")
	}
	err := store.Transact(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.operators.WithTx(tx).Delete(ctx, operatorID); err != nil {
			return err
		}
		if err := s.users.WithTx(tx).Delete(ctx, operatorID); err != nil && !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "operator_deleted", operatorID, caller.UserID)
	return nil
}

// ListOperators returns all operators for the admin view.
func (s *Service) ListOperators(ctx context.Context, caller models.Identity) ([]*models.Operator, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewForbiddenError("operator listing requires the admin role")
	}
	return s.operators.List(ctx)
}

func (s *Service) setOperatorActive(ctx context.Context, caller models.Identity, operatorID string, active bool, event string) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbiddenError("operator lifecycle changes require the admin role")
	}
	err := store.Transact(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.operators.WithTx(tx).SetActive(ctx, operatorID, active); err != nil {
			return err
		}
		if err := s.users.WithTx(tx).SetActive(ctx, operatorID, active); err != nil && !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, event, operatorID, caller.UserID)
	if active && s.notifier != nil {
		if user, err := s.users.GetByID(ctx, operatorID); err == nil {
			s.notifier.OperatorApproved(ctx, user.Email, user.FullName)
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, event, operatorID, adminID string) {
	if err := s.audit.Record(ctx, event, "operator", operatorID, map[string]interface{}{
		"admin": adminID,
	}); err != nil {
		s.logger.Warn("audit log insert failed", logger.Fields{
			"error":      err,
			"operatorId": operatorID,
		})
	}
}
