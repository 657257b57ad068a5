package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pressline/internal/jobs"
	"pressline/internal/logging"
	"pressline/internal/store"
)

const minPasswordLength = 6

var (
	// ErrInvalidInput marks registration input that fails validation.
	ErrInvalidInput = errors.New("invalid user input")
	// ErrEmployeeExists is returned when an employee id is already registered.
	ErrEmployeeExists = errors.New("employee id already registered")
	// ErrInvalidCredentials is returned for an unknown employee or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the persistence capability the directory needs.
//
// UserByEmployeeID returns nil, nil when no user matches. InsertUser reports a
// duplicate employee id with store.ErrDuplicateKey.
type Store interface {
	InsertUser(ctx context.Context, user *User) error
	UserByEmployeeID(ctx context.Context, employeeID string) (*User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// RegisterInput describes a new user.
type RegisterInput struct {
	Name       string
	EmployeeID string
	Password   string
	Role       Role
}

// Directory registers and authenticates users.
type Directory struct {
	store  Store
	logger *slog.Logger
	cost   int
	now    func() time.Time
}

// Option customizes a Directory.
type Option func(*Directory)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(d *Directory) { d.cost = cost }
}

// WithLogger sets the directory logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logging.NewComponentLogger(logger, "users") }
}

// NewDirectory returns a Directory over store.
func NewDirectory(store Store, opts ...Option) *Directory {
	d := &Directory{
		store:  store,
		logger: logging.NewComponentLogger(nil, "users"),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register validates input, hashes the password, and stores the user.
func (d *Directory) Register(ctx context.Context, in RegisterInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	employeeID := strings.TrimSpace(in.EmployeeID)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case employeeID == "":
		return nil, fmt.Errorf("%w: employeeId is required", ErrInvalidInput)
	case len(in.Password) < minPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	role, ok := ParseRole(string(in.Role))
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		ID:           uuid.NewString(),
		Name:         name,
		EmployeeID:   employeeID,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    d.now().UTC(),
	}
	if err := d.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrEmployeeExists, employeeID)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	d.logger.Info("user registered",
		logging.String(logging.FieldUserID, user.ID),
		logging.String("employee_id", user.EmployeeID),
		logging.String("role", string(user.Role)),
	)
	return user, nil
}

// Authenticate checks a password against the stored hash.
func (d *Directory) Authenticate(ctx context.Context, employeeID, password string) (*User, error) {
	user, err := d.store.UserByEmployeeID(ctx, strings.TrimSpace(employeeID))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Lookup returns the user with employeeID, or nil when none exists.
func (d *Directory) Lookup(ctx context.Context, employeeID string) (*User, error) {
	user, err := d.store.UserByEmployeeID(ctx, strings.TrimSpace(employeeID))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// List returns every registered user.
func (d *Directory) List(ctx context.Context) ([]*User, error) {
	found, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return found, nil
}

// ResolveUsers maps user ids to display references. Unknown ids are omitted.
func (d *Directory) ResolveUsers(ctx context.Context, ids []string) (map[string]jobs.UserRef, error) {
	refs := make(map[string]jobs.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	found, err := d.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}
	for _, user := range found {
		refs[user.ID] = user.Ref()
	}
	return refs, nil
}

// Ref projects a user onto the reference joined into job reads.
func (u *User) Ref() jobs.UserRef {
	return jobs.UserRef{ID: u.ID, Name: u.Name, EmployeeID: u.EmployeeID}
}

// Actor returns the acting identity for job operations.
func (u *User) Actor() jobs.Actor {
	return jobs.Actor{UserID: u.ID, Name: u.Name, Role: string(u.Role), EmployeeID: u.EmployeeID}
}
