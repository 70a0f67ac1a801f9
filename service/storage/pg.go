package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"ChitChat/logger"
)

// Store is the relational persistence layer over pgx. It backs both the
// REST handlers and the realtime pipeline's chat.Store contract.
type Store struct {
	pool     *pgxpool.Pool
	botEmail string
}

func Open(ctx context.Context, databaseURL, botEmail string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &Store{pool: pool, botEmail: botEmail}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	full_name       VARCHAR(100) NOT NULL DEFAULT '',
	email           VARCHAR(100) NOT NULL UNIQUE,
	hashed_password VARCHAR(255) NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chats (
	id         BIGSERIAL PRIMARY KEY,
	name       VARCHAR(100) NOT NULL DEFAULT '',
	chat_type  VARCHAR(20) NOT NULL,
	creator_id BIGINT REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id             BIGSERIAL PRIMARY KEY,
	chat_id        BIGINT NOT NULL REFERENCES chats(id),
	sender_id      BIGINT NOT NULL REFERENCES users(id),
	content        TEXT NOT NULL,
	is_bot_message BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at);

CREATE TABLE IF NOT EXISTS chat_participants (
	id        BIGSERIAL PRIMARY KEY,
	chat_id   BIGINT NOT NULL REFERENCES chats(id),
	user_id   BIGINT NOT NULL REFERENCES users(id),
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (chat_id, user_id)
);
`

// EnsureSchema creates the tables on startup; idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, "ensure schema")
	}
	return nil
}

// EnsureBotUser seeds the designated bot identity so FindBotIdentity
// resolves. The password hash is a sentinel; the bot never logs in.
func (s *Store) EnsureBotUser(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (full_name, email, hashed_password)
		VALUES ($1, $2, '!bot')
		ON CONFLICT (email) DO UPDATE SET updated_at = now()
		RETURNING id`, name, s.botEmail).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "ensure bot user")
	}
	logger.Infof("[storage] bot user ready id=%d email=%s", id, s.botEmail)
	return id, nil
}
