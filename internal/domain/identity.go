package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmailTaken is returned when a signup email is already registered.
	ErrEmailTaken = errors.New("email already in use")
	// ErrInvalidCredentials is returned for a bad email/password pair. The
	// caller cannot distinguish an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingField rejects signup/login payloads with empty fields.
	ErrMissingField = errors.New("name, email, and password are required")
)

// Account is a registered user. Points accumulate only through the
// rewards consumer, via an atomic increment at the storage layer.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Points       int64
	CreatedAt    time.Time
}

// AccountRepository captures account persistence.
type AccountRepository interface {
	// CreateAccount returns ErrEmailTaken on a unique-email violation.
	CreateAccount(ctx context.Context, account Account) error
	// AccountByEmail matches the stored, lowercased email; nil when absent.
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	// AccountByID returns nil when absent.
	AccountByID(ctx context.Context, accountID string) (*Account, error)
}

// PasswordHasher abstracts credential hashing so the ledger core never
// touches crypto directly.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// IdentityService handles signup, login, and current-account lookup.
type IdentityService struct {
	repo   AccountRepository
	hasher PasswordHasher
	now    func() time.Time
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(repo AccountRepository, hasher PasswordHasher) *IdentityService {
	return &IdentityService{repo: repo, hasher: hasher, now: time.Now}
}

// Signup registers a new account. Emails are unique case-insensitively;
// they are lowercased before storage and lookup.
func (s *IdentityService) Signup(ctx context.Context, name, email, password string) (*Account, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingField
	}

	if existing, err := s.repo.AccountByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	account := Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Login verifies the email/password pair.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrMissingField
	}

	account, err := s.repo.AccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// Account fetches an account by id for current-user lookups.
func (s *IdentityService) Account(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.repo.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}
