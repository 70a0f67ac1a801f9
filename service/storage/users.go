package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"

	"ChitChat/service/chat"
	"ChitChat/tools/errs"
)

func (s *Store) CreateUser(ctx context.Context, email, fullName, passwordHash string) (*chat.User, error) {
	u := &chat.User{Email: email, FullName: fullName}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id`, email, fullName, passwordHash).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if pkgerrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, errs.ErrDuplicateKey.WrapMsg("email already registered", "email", email)
		}
		return nil, pkgerrors.Wrap(err, "insert user")
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*chat.User, error) {
	u := &chat.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, full_name FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &u.FullName)
	if err != nil {
		if pkgerrors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WrapMsg("user", "id", userID)
		}
		return nil, pkgerrors.Wrap(err, "select user")
	}
	return u, nil
}

// GetUserByEmail also returns the stored password hash for login checks.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*chat.User, string, error) {
	u := &chat.User{}
	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, full_name, hashed_password FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.FullName, &hash)
	if err != nil {
		if pkgerrors.Is(err, pgx.ErrNoRows) {
			return nil, "", errs.ErrRecordNotFound.WrapMsg("user", "email", email)
		}
		return nil, "", pkgerrors.Wrap(err, "select user by email")
	}
	return u, hash, nil
}

// ListUsers returns users excluding excludeID, for the new-chat contact
// picker.
func (s *Store) ListUsers(ctx context.Context, excludeID int64, skip, limit int) ([]*chat.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, full_name FROM users
		WHERE id <> $1 AND email <> $2
		ORDER BY id
		OFFSET $3 LIMIT $4`, excludeID, s.botEmail, skip, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list users")
	}
	defer rows.Close()

	var out []*chat.User
	for rows.Next() {
		u := &chat.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName); err != nil {
			return nil, pkgerrors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	return out, pkgerrors.Wrap(rows.Err(), "iterate users")
}

func (s *Store) FindBotIdentity(ctx context.Context) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, s.botEmail).Scan(&id)
	if err != nil {
		if pkgerrors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, pkgerrors.Wrap(err, "select bot user")
	}
	return id, true, nil
}
