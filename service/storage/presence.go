package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ChitChat/logger"
)

// PresenceManager keeps a per-chat set of online user ids in redis. Purely
// advisory: every operation is best effort and a nil manager is a no-op,
// so the server runs fine without redis configured.
type PresenceManager struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceManager(rdb *redis.Client) *PresenceManager {
	if rdb == nil {
		return nil
	}
	return &PresenceManager{rdb: rdb, ttl: 24 * time.Hour}
}

func presenceKey(chatID int64) string {
	return fmt.Sprintf("chat:online:%d", chatID)
}

func (m *PresenceManager) Online(ctx context.Context, chatID, userID int64) {
	if m == nil {
		return
	}
	key := presenceKey(chatID)
	pipe := m.rdb.Pipeline()
	pipe.SAdd(ctx, key, userID)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnf("[presence] online failed chat=%d user=%d err=%v", chatID, userID, err)
	}
}

func (m *PresenceManager) Offline(ctx context.Context, chatID, userID int64) {
	if m == nil {
		return
	}
	if err := m.rdb.SRem(ctx, presenceKey(chatID), userID).Err(); err != nil {
		logger.Warnf("[presence] offline failed chat=%d user=%d err=%v", chatID, userID, err)
	}
}

// OnlineUsers lists user ids currently connected to the chat.
func (m *PresenceManager) OnlineUsers(ctx context.Context, chatID int64) ([]int64, error) {
	if m == nil {
		return nil, nil
	}
	vals, err := m.rdb.SMembers(ctx, presenceKey(chatID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
