package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/youssefm/groupchat/pkg/redisclient"
)

// Cache holds recent message history per group. Implementations are
// best-effort: a miss or failure falls back to the store.
type Cache interface {
	GetMessages(ctx context.Context, groupID int64) ([]*Message, bool)
	SetMessages(ctx context.Context, groupID int64, messages []*Message)
	Invalidate(ctx context.Context, groupID int64)
}

const historyTTL = 5 * time.Minute

// redisCache is the redis-backed Cache implementation
type redisCache struct {
	client *redisclient.Client
}

// NewRedisCache creates a message history cache over a redis client
func NewRedisCache(client *redisclient.Client) Cache {
	return &redisCache{client: client}
}

func historyKey(groupID int64) string {
	return fmt.Sprintf("messages:%d", groupID)
}

func (c *redisCache) GetMessages(ctx context.Context, groupID int64) ([]*Message, bool) {
	raw, err := c.client.Get(ctx, historyKey(groupID))
	if err != nil {
		log.Printf("message cache read failed for group %d: %v", groupID, err)
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var messages []*Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		log.Printf("message cache decode failed for group %d: %v", groupID, err)
		return nil, false
	}
	return messages, true
}

func (c *redisCache) SetMessages(ctx context.Context, groupID int64, messages []*Message) {
	raw, err := json.Marshal(messages)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, historyKey(groupID), string(raw), historyTTL); err != nil {
		log.Printf("message cache write failed for group %d: %v", groupID, err)
	}
}

func (c *redisCache) Invalidate(ctx context.Context, groupID int64) {
	if err := c.client.Del(ctx, historyKey(groupID)); err != nil {
		log.Printf("message cache invalidation failed for group %d: %v", groupID, err)
	}
}
