package repository

import (
	"context"
	"database/sql"
	"errors"
)

// UserRepo reads the display columns of the users table owned by the auth
// service.
type UserRepo struct{}

func NewUserRepo() *UserRepo { return &UserRepo{} }

// NameByID fetches a user's display name.
func (r *UserRepo) NameByID(ctx context.Context, q querier, id string) (string, error) {
	var name string
	err := q.QueryRowContext(ctx, "SELECT name FROM users WHERE id=? LIMIT 1", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return name, err
}
