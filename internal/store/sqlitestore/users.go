package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pressline/internal/store"
	"pressline/internal/users"
)

const userColumns = "id, name, employee_id, role, password_hash, created_at"

func scanUser(scanner interface{ Scan(dest ...any) error }) (*users.User, error) {
	var (
		user       users.User
		role       string
		createdRaw string
	)
	if err := scanner.Scan(&user.ID, &user.Name, &user.EmployeeID, &role, &user.PasswordHash, &createdRaw); err != nil {
		return nil, err
	}
	user.Role = users.Role(role)
	if created, err := parseTimeString(createdRaw); err == nil {
		user.CreatedAt = created
	}
	return &user, nil
}

// InsertUser stores a new user.
func (s *Store) InsertUser(ctx context.Context, user *users.User) error {
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.EmployeeID, string(user.Role), user.PasswordHash, formatTime(user.CreatedAt),
		)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("insert user %q: %w", user.EmployeeID, store.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmployeeID returns nil, nil when no user matches.
func (s *Store) UserByEmployeeID(ctx context.Context, employeeID string) (*users.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE employee_id = ?`, employeeID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UsersByIDs returns the users with the given ids; unknown ids are skipped.
func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]*users.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		stringArgs(ids)...,
	)
}

// ListUsers returns every user ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]*users.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, employee_id`)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]*users.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var found []*users.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		found = append(found, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return found, nil
}
