package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const roomsSetKey = "rooms"

func roomKey(code string) string { return "room:" + code }

func playerRoomKey(playerID string) string { return "player_room:" + playerID }

type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(ctx context.Context, url string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBackend{client: client}, nil
}

func (r *RedisBackend) SaveRoom(ctx context.Context, doc RoomDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", doc.Code, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, roomKey(doc.Code), raw, 0)
	pipe.SAdd(ctx, roomsSetKey, doc.Code)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisBackend) DeleteRoom(ctx context.Context, code string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, roomKey(code))
	pipe.SRem(ctx, roomsSetKey, code)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisBackend) SetPlayerRoom(ctx context.Context, playerID, code string) error {
	return r.client.Set(ctx, playerRoomKey(playerID), code, 0).Err()
}

func (r *RedisBackend) DeletePlayerRoom(ctx context.Context, playerID string) error {
	return r.client.Del(ctx, playerRoomKey(playerID)).Err()
}

// LoadRooms reads every room in the index set. Index entries whose room key
// is gone are dropped from the set.
func (r *RedisBackend) LoadRooms(ctx context.Context) ([]RoomDocument, error) {
	codes, err := r.client.SMembers(ctx, roomsSetKey).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]RoomDocument, 0, len(codes))
	for _, code := range codes {
		raw, err := r.client.Get(ctx, roomKey(code)).Bytes()
		if errors.Is(err, redis.Nil) {
			r.client.SRem(ctx, roomsSetKey, code)
			continue
		}
		if err != nil {
			return nil, err
		}
		var doc RoomDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			log.Warn().Err(err).Str("room", code).Msg("skipping unreadable room")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *RedisBackend) Close(context.Context) error {
	return r.client.Close()
}
