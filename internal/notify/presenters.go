package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// LogPresenter writes each alert as a log line.
type LogPresenter struct {
	Logger *slog.Logger
}

func (p LogPresenter) Present(_ context.Context, a Alert) error {
	p.Logger.Info(a.Title, "body", a.Body, "owner", a.OwnerID, "event_id", a.EventID)
	return nil
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPresenter publishes alerts as JSON on "<prefix>:<owner>" so any
// subscribed client of that owner can show them.
type RedisPresenter struct {
	client publisher
	prefix string
}

func NewRedisPresenter(client publisher, prefix string) *RedisPresenter {
	return &RedisPresenter{client: client, prefix: prefix}
}

// DialRedis is a convenience wrapper around redis.NewClient.
func DialRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (p *RedisPresenter) Channel(ownerID string) string {
	return p.prefix + ":" + ownerID
}

func (p *RedisPresenter) Present(ctx context.Context, a Alert) error {
	msg, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Channel(a.OwnerID), msg).Err()
}
