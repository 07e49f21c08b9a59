package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Key schema:
//
//	rt:channel:<id>    JSON channel document
//	rt:members:<id>    SET of user ids
//	rt:user:<id>       JSON user document
//	rt:messages:<id>   LIST of JSON messages, newest first, trimmed
//	rt:presence:<uid>  gateway node id, with TTL
const (
	keyChannel  = "rt:channel:"
	keyMembers  = "rt:members:"
	keyUser     = "rt:user:"
	keyMessages = "rt:messages:"
	keyPresence = "rt:presence:"

	messageListCap = 100
)

// RedisStore keeps channel/member/user facts in Redis so several gateway
// nodes can share them.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) CreateChannel(ctx context.Context, ch Channel) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return errors.Wrap(err, "marshal channel")
	}
	if err := s.rdb.Set(ctx, keyChannel+ch.ID, raw, 0).Err(); err != nil {
		return errors.Wrap(err, "set channel")
	}
	return nil
}

func (s *RedisStore) GetChannel(ctx context.Context, id string) (*Channel, error) {
	raw, err := s.rdb.Get(ctx, keyChannel+id).Bytes()
	if err == redis.Nil {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get channel")
	}
	var ch Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, errors.Wrap(err, "unmarshal channel")
	}
	return &ch, nil
}

func (s *RedisStore) ChannelExists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyChannel+id).Result()
	if err != nil {
		return false, errors.Wrap(err, "exists channel")
	}
	return n > 0, nil
}

func (s *RedisStore) AddMember(ctx context.Context, channelID, userID string) error {
	ok, err := s.ChannelExists(ctx, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChannelNotFound
	}
	added, err := s.rdb.SAdd(ctx, keyMembers+channelID, userID).Result()
	if err != nil {
		return errors.Wrap(err, "sadd member")
	}
	if added == 0 {
		return ErrAlreadyMember
	}
	return nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, channelID, userID string) error {
	if err := s.rdb.SRem(ctx, keyMembers+channelID, userID).Err(); err != nil {
		return errors.Wrap(err, "srem member")
	}
	return nil
}

func (s *RedisStore) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, keyMembers+channelID, userID).Result()
	if err != nil {
		return false, errors.Wrap(err, "sismember")
	}
	return ok, nil
}

func (s *RedisStore) ListMembers(ctx context.Context, channelID string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, keyMembers+channelID).Result()
	if err != nil {
		return nil, errors.Wrap(err, "smembers")
	}
	return members, nil
}

func (s *RedisStore) UpsertUser(ctx context.Context, u User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "marshal user")
	}
	if err := s.rdb.Set(ctx, keyUser+u.ID, raw, 0).Err(); err != nil {
		return errors.Wrap(err, "set user")
	}
	return nil
}

func (s *RedisStore) GetUser(ctx context.Context, id string) (*User, error) {
	raw, err := s.rdb.Get(ctx, keyUser+id).Bytes()
	if err == redis.Nil {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, errors.Wrap(err, "unmarshal user")
	}
	return &u, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, m Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, keyMessages+m.ChannelID, raw)
	pipe.LTrim(ctx, keyMessages+m.ChannelID, 0, messageListCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "append message")
	}
	return nil
}

func (s *RedisStore) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > messageListCap {
		limit = messageListCap
	}
	raws, err := s.rdb.LRange(ctx, keyMessages+channelID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "lrange messages")
	}
	// list is newest-first; return oldest-first like the memory store
	out := make([]Message, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var m Message
		if err := json.Unmarshal([]byte(raws[i]), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) SetOnline(ctx context.Context, userID, nodeID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, keyPresence+userID, nodeID, ttl).Err(); err != nil {
		return errors.Wrap(err, "set presence")
	}
	return nil
}

func (s *RedisStore) SetOffline(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, keyPresence+userID).Err(); err != nil {
		return errors.Wrap(err, "del presence")
	}
	return nil
}

func (s *RedisStore) LookupOnline(ctx context.Context, userID string) (string, bool, error) {
	nodeID, err := s.rdb.Get(ctx, keyPresence+userID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "get presence")
	}
	return nodeID, true, nil
}
