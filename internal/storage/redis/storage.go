package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/storage"
)

// Storage is a Redis-backed implementation of the link store, for
// deployments where several services share the verified-link table
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.LinkStore = (*Storage)(nil)

func (s *Storage) IsLinked(ctx context.Context, id model.PlayerID) (bool, error) {
	exists, err := s.client.Exists(ctx, s.linkKey(id)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) Link(ctx context.Context, id model.PlayerID, discordID model.DiscordID) error {
	// Drop a stale reverse entry if the player was previously linked to a
	// different Discord account
	old, err := s.client.Get(ctx, s.linkKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	// Use pipeline for atomic forward + reverse index update
	pipe := s.client.Pipeline()
	if err == nil && old != string(discordID) {
		pipe.Del(ctx, s.discordIndexKey(model.DiscordID(old)))
	}
	pipe.Set(ctx, s.linkKey(id), string(discordID), 0)
	pipe.Set(ctx, s.discordIndexKey(discordID), string(id), 0)
	pipe.SAdd(ctx, s.linkSetKey(), string(id))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) Unlink(ctx context.Context, id model.PlayerID) error {
	discordID, err := s.client.Get(ctx, s.linkKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.linkKey(id))
	pipe.Del(ctx, s.discordIndexKey(model.DiscordID(discordID)))
	pipe.SRem(ctx, s.linkSetKey(), string(id))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) DiscordID(ctx context.Context, id model.PlayerID) (model.DiscordID, error) {
	discordID, err := s.client.Get(ctx, s.linkKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrLinkNotFound
		}
		return "", err
	}
	return model.DiscordID(discordID), nil
}

func (s *Storage) PlayerByDiscordID(ctx context.Context, discordID model.DiscordID) (model.PlayerID, error) {
	id, err := s.client.Get(ctx, s.discordIndexKey(discordID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrLinkNotFound
		}
		return "", err
	}
	return model.PlayerID(id), nil
}

func (s *Storage) Links(ctx context.Context) ([]model.VerifiedLink, error) {
	ids, err := s.client.SMembers(ctx, s.linkSetKey()).Result()
	if err != nil {
		return nil, err
	}

	links := make([]model.VerifiedLink, 0, len(ids))
	for _, id := range ids {
		discordID, err := s.client.Get(ctx, s.linkKey(model.PlayerID(id))).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Set member with no link key: skip rather than fail the listing
				continue
			}
			return nil, err
		}
		links = append(links, model.VerifiedLink{
			PlayerID:  model.PlayerID(id),
			DiscordID: model.DiscordID(discordID),
		})
	}
	return links, nil
}
