package storage

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"ChitChat/service/chat"
)

// CreateMessage persists one message and bumps the chat's updated_at, the
// ordering key for the chat list. Returns the row with sender embedded.
func (s *Store) CreateMessage(ctx context.Context, chatID, senderID int64, content string, isBot bool) (*chat.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "begin create message")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m := &chat.Message{
		ChatID:       chatID,
		SenderID:     senderID,
		Content:      content,
		IsBotMessage: isBot,
		Sender:       &chat.User{},
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (chat_id, sender_id, content, is_bot_message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, chatID, senderID, content, isBot).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "insert message")
	}

	if _, err := tx.Exec(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, chatID); err != nil {
		return nil, pkgerrors.Wrap(err, "touch chat")
	}

	err = tx.QueryRow(ctx, `SELECT id, email, full_name FROM users WHERE id = $1`, senderID).
		Scan(&m.Sender.ID, &m.Sender.Email, &m.Sender.FullName)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "select sender")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "commit create message")
	}
	return m, nil
}

// RecentMessages returns up to limit of the newest messages for the chat,
// in chronological ascending order.
func (s *Store) RecentMessages(ctx context.Context, chatID int64, limit int) ([]*chat.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT * FROM (
			SELECT m.id, m.chat_id, m.sender_id, m.content, m.is_bot_message, m.created_at,
			       u.email, u.full_name
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.chat_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) w ORDER BY w.created_at ASC, w.id ASC`, chatID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "recent messages")
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesForChat pages the chat's messages chronological ascending,
// returning nothing when the caller is not a participant.
func (s *Store) MessagesForChat(ctx context.Context, chatID, userID int64, skip, limit int) ([]*chat.Message, error) {
	ok, err := s.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.is_bot_message, m.created_at,
		       u.email, u.full_name
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at ASC, m.id ASC
		OFFSET $2 LIMIT $3`, chatID, skip, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "messages for chat")
	}
	defer rows.Close()
	return scanMessages(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows rowScanner) ([]*chat.Message, error) {
	var out []*chat.Message
	for rows.Next() {
		m := &chat.Message{Sender: &chat.User{}}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.IsBotMessage, &m.CreatedAt,
			&m.Sender.Email, &m.Sender.FullName); err != nil {
			return nil, pkgerrors.Wrap(err, "scan message")
		}
		m.Sender.ID = m.SenderID
		out = append(out, m)
	}
	return out, pkgerrors.Wrap(rows.Err(), "iterate messages")
}
