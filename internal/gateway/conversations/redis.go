package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	errx "github.com/bookpal-ai/server/internal/core/error"
	"github.com/bookpal-ai/server/internal/gateway/model"
)

// storedMessage is the wire form kept in the Redis list. Only the fields the
// window needs survive round-tripping; tool-call payloads stay request-local.
type storedMessage struct {
	Role    schema.RoleType `json:"role"`
	Content string          `json:"content"`
}

// RedisRepository stores session windows as Redis lists with a TTL. The
// FIFO cap is enforced with LTRIM on every append, so the window never
// exceeds its capacity server-side either.
type RedisRepository struct {
	client      *redis.Client
	ttl         time.Duration
	maxMessages int64
}

// NewRedisRepository creates a Redis-backed store capped at maxExchanges
// user/assistant pairs per session.
func NewRedisRepository(client *redis.Client, ttl time.Duration, maxExchanges int) *RedisRepository {
	if maxExchanges <= 0 {
		maxExchanges = DefaultExchanges
	}
	return &RedisRepository{
		client:      client,
		ttl:         ttl,
		maxMessages: int64(maxExchanges * 2),
	}
}

func (r *RedisRepository) key(sessionID string) string {
	return fmt.Sprintf("conversation:%s", sessionID)
}

func (r *RedisRepository) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return nil
	}
	data, err := json.Marshal(storedMessage{Role: message.Role, Content: message.Content})
	if err != nil {
		return err
	}

	key := r.key(sessionID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -r.maxMessages, -1)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisRepository) LoadHistory(ctx context.Context, sessionID string) (*model.ConversationHistory, error) {
	raw, err := r.client.LRange(ctx, r.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	messages := make([]*schema.Message, 0, len(raw))
	for _, item := range raw {
		var sm storedMessage
		if err := json.Unmarshal([]byte(item), &sm); err != nil {
			// A corrupt entry loses one message, not the whole window.
			continue
		}
		messages = append(messages, &schema.Message{Role: sm.Role, Content: sm.Content})
	}

	return &model.ConversationHistory{
		SessionID: sessionID,
		Messages:  messages,
	}, nil
}

func (r *RedisRepository) ClearHistory(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisRepository) MessageCount(ctx context.Context, sessionID string) (int, error) {
	n, err := r.client.LLen(ctx, r.key(sessionID)).Result()
	if err != nil {
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}
