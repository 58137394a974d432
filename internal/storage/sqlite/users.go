package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kanban/internal/apperr"
	"kanban/internal/models"
)

const userColumns = `id, name, email, password_hash, refresh_token, refresh_token_expiry, created_at`

// CreateUser stores a new account. The email must not already be registered.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error) {
	email = strings.TrimSpace(email)
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(name, email, password_hash) VALUES(?, ?, ?)`,
		strings.TrimSpace(name), email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, apperr.Conflictf("user already exists")
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, "user not found")
}

// GetUserByEmail fetches a user by its login email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	return scanUser(row, "user not found")
}

// GetUserByRefreshToken finds the single user currently holding token.
func (s *Store) GetUserByRefreshToken(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperr.NotFoundf("refresh token not found")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE refresh_token = ?`, token)
	return scanUser(row, "refresh token not found")
}

// SetRefreshToken overwrites the stored refresh token, invalidating the previous one.
func (s *Store) SetRefreshToken(ctx context.Context, userID int64, token string, expiry time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET refresh_token = ?, refresh_token_expiry = ? WHERE id = ?`,
		token, expiry.UTC(), userID)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFoundf("user not found")
	}
	return nil
}

func scanUser(row *sql.Row, notFound string) (models.User, error) {
	var (
		u      models.User
		expiry sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.RefreshToken, &expiry, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFoundf("%s", notFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	if expiry.Valid {
		u.RefreshTokenExpiry = expiry.Time
	}
	return u, nil
}
