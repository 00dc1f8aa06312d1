package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"account-portal/internal/auth"
	"account-portal/internal/domain"
	"account-portal/internal/metrics"
	"account-portal/internal/repository"
)

var (
	// ErrValidation indicates a required field is missing or a field is malformed.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStorage wraps failures of the credential store.
	ErrStorage = errors.New("storage unavailable")
)

// Field limits, matching the column widths of the users table.
const (
	maxUsernameLen = 120
	maxEmailLen    = 200
	maxPhoneLen    = 50
)

// Reasons carried by ValidationError.
const (
	ReasonMissing = "required field missing"
	ReasonTooLong = "field too long"
)

// ValidationError lists the offending form fields. It matches ErrValidation
// with errors.Is.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RegisterInput carries the raw registration form.
type RegisterInput struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// AccountService describes registration and login.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.Grant, error)
}

type accountService struct {
	users   repository.UserRepository
	hasher  auth.PasswordHasher
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time

	dummyMu   sync.Mutex
	dummyHash string
}

func NewAccountService(users repository.UserRepository, hasher auth.PasswordHasher, logger logrus.FieldLogger, m *metrics.Metrics) AccountService {
	if logger == nil {
		logger = logrus.New()
	}
	return &accountService{
		users:   users,
		hasher:  hasher,
		logger:  logger.WithField("component", "account"),
		metrics: m,
		now:     time.Now,
	}
}

// Register creates an account. It does not log the user in.
func (s *accountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := domain.NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	password := in.Password

	if err := validateRegistration(username, email, phone, password); err != nil {
		s.metrics.ObserveRegistration(metrics.OutcomeInvalid)
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.metrics.ObserveRegistration(metrics.OutcomeDuplicate)
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.metrics.ObserveRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: lookup email: %w", ErrStorage, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			s.metrics.ObserveRegistration(metrics.OutcomeInvalid)
			return nil, &ValidationError{Fields: []string{"password"}, Reason: ReasonTooLong}
		}
		s.metrics.ObserveRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		// lost the race against a concurrent registration of the same email
		if repository.IsConflict(err) {
			s.metrics.ObserveRegistration(metrics.OutcomeDuplicate)
			return nil, ErrDuplicateEmail
		}
		s.metrics.ObserveRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: create user: %w", ErrStorage, err)
	}

	s.metrics.ObserveRegistration(metrics.OutcomeSuccess)
	s.logger.WithFields(logrus.Fields{"user_id": user.ID}).Info("account registered")
	return sanitizeUser(user), nil
}

// Login checks the credentials and returns the identity to put in the session.
// Unknown email and wrong password yield the same ErrInvalidCredentials.
func (s *accountService) Login(ctx context.Context, email, password string) (*domain.Grant, error) {
	email = domain.NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.metrics.ObserveLogin(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: lookup email: %w", ErrStorage, err)
	}

	if user == nil {
		// keep the response time of unknown emails close to a real check
		s.hasher.Verify(password, s.dummy())
		s.metrics.ObserveLogin(metrics.OutcomeInvalid)
		s.logger.Debug("login for unknown email")
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.ObserveLogin(metrics.OutcomeInvalid)
		s.logger.WithField("user_id", user.ID).Info("login rejected")
		return nil, ErrInvalidCredentials
	}

	s.metrics.ObserveLogin(metrics.OutcomeSuccess)
	return &domain.Grant{UserID: user.ID, Username: user.Username}, nil
}

// dummy returns the hash verified against for unknown emails. A failed
// computation is retried on the next call.
func (s *accountService) dummy() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash == "" {
		hash, err := s.hasher.Hash("account-portal/dummy")
		if err != nil {
			s.logger.WithError(err).Warn("compute dummy password hash")
			return ""
		}
		s.dummyHash = hash
	}
	return s.dummyHash
}

func validateRegistration(username, email, phone, password string) error {
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: ReasonMissing}
	}

	var long []string
	if utf8.RuneCountInString(username) > maxUsernameLen {
		long = append(long, "username")
	}
	if utf8.RuneCountInString(email) > maxEmailLen {
		long = append(long, "email")
	}
	if utf8.RuneCountInString(phone) > maxPhoneLen {
		long = append(long, "phone")
	}
	if len(long) > 0 {
		return &ValidationError{Fields: long, Reason: ReasonTooLong}
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt,
	}
}
