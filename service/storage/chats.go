package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	pkgerrors "github.com/pkg/errors"

	"ChitChat/service/chat"
	"ChitChat/tools/errs"
)

// Participant is a chat membership row with the user embedded, the shape
// the REST surface returns.
type Participant struct {
	UserID   int64      `json:"user_id"`
	JoinedAt time.Time  `json:"joined_at"`
	User     *chat.User `json:"user"`
}

// ChatDetail is a chat plus its participants (and, for the detail endpoint,
// a recent message window).
type ChatDetail struct {
	chat.Room
	Participants []Participant   `json:"participants"`
	Messages     []*chat.Message `json:"messages,omitempty"`
}

func (s *Store) GetRoom(ctx context.Context, chatID int64) (*chat.Room, error) {
	r := &chat.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, chat_type, COALESCE(creator_id, 0), created_at, updated_at
		FROM chats WHERE id = $1`, chatID).
		Scan(&r.ID, &r.Name, &r.Type, &r.CreatorID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if pkgerrors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WrapMsg("chat", "id", chatID)
		}
		return nil, pkgerrors.Wrap(err, "select chat")
	}
	return r, nil
}

func (s *Store) IsParticipant(ctx context.Context, chatID, userID int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2
		)`, chatID, userID).Scan(&ok)
	if err != nil {
		return false, pkgerrors.Wrap(err, "select participant")
	}
	return ok, nil
}

// CreateChat creates a chat with the creator plus participantIDs as members.
// For one_on_one chats with a single other user an existing chat between
// exactly the two is returned instead of creating a duplicate.
func (s *Store) CreateChat(ctx context.Context, name string, typ chat.ChatType, creatorID int64, participantIDs []int64) (*ChatDetail, error) {
	if typ == chat.TypeOneOnOne && len(participantIDs) == 1 {
		if id, found, err := s.findOneOnOne(ctx, creatorID, participantIDs[0]); err != nil {
			return nil, err
		} else if found {
			return s.chatDetail(ctx, id)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "begin create chat")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var chatID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO chats (name, chat_type, creator_id)
		VALUES ($1, $2, $3)
		RETURNING id`, name, typ, creatorID).Scan(&chatID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "insert chat")
	}

	members := append([]int64{creatorID}, participantIDs...)
	if typ == chat.TypeBot {
		if botID, ok, berr := s.FindBotIdentity(ctx); berr == nil && ok {
			members = append(members, botID)
		}
	}
	seen := make(map[int64]struct{}, len(members))
	for _, uid := range members {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_participants (chat_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, uid); err != nil {
			return nil, pkgerrors.Wrap(err, "insert participant")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "commit create chat")
	}
	return s.chatDetail(ctx, chatID)
}

// findOneOnOne locates an existing one_on_one chat whose member set is
// exactly {a, b}.
func (s *Store) findOneOnOne(ctx context.Context, a, b int64) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		SELECT c.id
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE c.chat_type = 'one_on_one'
		GROUP BY c.id
		HAVING COUNT(*) = 2
		   AND COUNT(*) FILTER (WHERE p.user_id IN ($1, $2)) = 2
		LIMIT 1`, a, b).Scan(&id)
	if err != nil {
		if pkgerrors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, pkgerrors.Wrap(err, "find one_on_one chat")
	}
	return id, true, nil
}

// ChatsForUser lists the caller's chats newest-activity first.
func (s *Store) ChatsForUser(ctx context.Context, userID int64, skip, limit int) ([]*ChatDetail, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.chat_type, COALESCE(c.creator_id, 0), c.created_at, c.updated_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC
		OFFSET $2 LIMIT $3`, userID, skip, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list chats")
	}
	defer rows.Close()

	var out []*ChatDetail
	for rows.Next() {
		d := &ChatDetail{}
		if err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.CreatorID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, pkgerrors.Wrap(err, "scan chat")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "iterate chats")
	}
	for _, d := range out {
		if d.Participants, err = s.participants(ctx, d.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetChatDetail returns the chat with participants, gated on membership:
// not-found when the caller is not a participant.
func (s *Store) GetChatDetail(ctx context.Context, chatID, userID int64) (*ChatDetail, error) {
	ok, err := s.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat not found or user not a participant", "chat", chatID)
	}
	return s.chatDetail(ctx, chatID)
}

func (s *Store) chatDetail(ctx context.Context, chatID int64) (*ChatDetail, error) {
	room, err := s.GetRoom(ctx, chatID)
	if err != nil {
		return nil, err
	}
	d := &ChatDetail{Room: *room}
	if d.Participants, err = s.participants(ctx, chatID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) participants(ctx context.Context, chatID int64) ([]Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.user_id, p.joined_at, u.email, u.full_name
		FROM chat_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.chat_id = $1
		ORDER BY p.joined_at`, chatID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list participants")
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		p := Participant{User: &chat.User{}}
		if err := rows.Scan(&p.UserID, &p.JoinedAt, &p.User.Email, &p.User.FullName); err != nil {
			return nil, pkgerrors.Wrap(err, "scan participant")
		}
		p.User.ID = p.UserID
		out = append(out, p)
	}
	return out, pkgerrors.Wrap(rows.Err(), "iterate participants")
}
