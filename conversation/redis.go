package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "alice:conv:"
	redisIndexKey  = "alice:conv:index"
)

func convKey(chatID int64) string {
	return redisKeyPrefix + strconv.FormatInt(chatID, 10)
}

func parseConvKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, redisKeyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Redis keeps one JSON document per chat plus a sorted-set index scored by
// last-update time for eviction ordering. Dispatch serializes work within a
// chat, so the read-modify-write in Append needs no transaction.
type Redis struct {
	rdb    *redis.Client
	limits Limits
}

func NewRedis(rdb *redis.Client, limits Limits) *Redis {
	return &Redis{rdb: rdb, limits: limits.normalized()}
}

func (r *Redis) Get(ctx context.Context, chatID int64) ([]Turn, error) {
	doc, found, err := r.read(ctx, chatID)
	if err != nil || !found {
		return nil, err
	}
	return doc.Turns, nil
}

func (r *Redis) read(ctx context.Context, chatID int64) (storedConversation, bool, error) {
	raw, err := r.rdb.Get(ctx, convKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return storedConversation{}, false, nil
	}
	if err != nil {
		return storedConversation{}, false, fmt.Errorf("redis get conversation %d: %w", chatID, err)
	}
	var doc storedConversation
	if err := json.Unmarshal(raw, &doc); err != nil {
		return storedConversation{}, false, fmt.Errorf("redis decode conversation %d: %w", chatID, err)
	}
	return doc, true, nil
}

func (r *Redis) Append(ctx context.Context, chatID int64, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	turns = withTimestamps(turns)

	doc, found, err := r.read(ctx, chatID)
	if err != nil {
		return err
	}
	if !found {
		if err := r.evict(ctx); err != nil {
			return err
		}
		doc = storedConversation{ChatID: chatID}
	}
	now := time.Now()
	doc.Updated = now
	doc.Turns = trimTurns(append(doc.Turns, turns...), r.limits.MaxTurns)

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis encode conversation %d: %w", chatID, err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, convKey(chatID), raw, 0)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(now.Unix()),
		Member: strconv.FormatInt(chatID, 10),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store conversation %d: %w", chatID, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, chatID int64) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, convKey(chatID))
	pipe.ZRem(ctx, redisIndexKey, strconv.FormatInt(chatID, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis clear conversation %d: %w", chatID, err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if id, ok := parseConvKey(iter.Val()); ok {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan conversations: %w", err)
	}
	return ids, nil
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	ids, err := r.Keys(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Backend: "redis", Conversations: len(ids)}
	for _, id := range ids {
		doc, found, err := r.read(ctx, id)
		if err != nil || !found {
			continue
		}
		st.Turns += len(doc.Turns)
	}
	midnight := strconv.FormatInt(startOfToday(time.Now()).Unix(), 10)
	active, err := r.rdb.ZCount(ctx, redisIndexKey, midnight, "+inf").Result()
	if err == nil {
		st.ActiveToday = int(active)
	}
	return st, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

// evict removes the oldest-updated conversations once the cap is reached,
// using the index sorted set for ordering.
func (r *Redis) evict(ctx context.Context) error {
	count, err := r.rdb.ZCard(ctx, redisIndexKey).Result()
	if err != nil {
		return fmt.Errorf("redis count conversations: %w", err)
	}
	if int(count) < r.limits.MaxConversations {
		return nil
	}
	drop := int(count) - r.limits.evictTarget()
	oldest, err := r.rdb.ZRange(ctx, redisIndexKey, 0, int64(drop-1)).Result()
	if err != nil {
		return fmt.Errorf("redis list oldest conversations: %w", err)
	}
	if len(oldest) == 0 {
		return nil
	}
	pipe := r.rdb.TxPipeline()
	for _, member := range oldest {
		if id, err := strconv.ParseInt(member, 10, 64); err == nil {
			pipe.Del(ctx, convKey(id))
		}
		pipe.ZRem(ctx, redisIndexKey, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis evict conversations: %w", err)
	}
	return nil
}
