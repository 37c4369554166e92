package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/go-redis/redis/v8"
)

// TelemetryCache keeps the most recent reading per vehicle with a bounded ttl,
// so the latest-telemetry endpoint does not have to hit the database.
type TelemetryCache interface {
	StoreLatest(ctx context.Context, t types.Telemetry) error
	GetLatest(ctx context.Context, vehicleID string) (types.Telemetry, error)
	Close() error
}

var ErrNotCached = fmt.Errorf("no cached reading")

type telemetryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, addr string, ttl time.Duration) (TelemetryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &telemetryCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func key(vehicleID string) string {
	return fmt.Sprintf("telemetry:latest:%s", vehicleID)
}

func (c *telemetryCache) StoreLatest(ctx context.Context, t types.Telemetry) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}

	err = c.client.Set(ctx, key(t.VehicleID), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store telemetry in cache: %w", err)
	}

	return nil
}

func (c *telemetryCache) GetLatest(ctx context.Context, vehicleID string) (types.Telemetry, error) {
	data, err := c.client.Get(ctx, key(vehicleID)).Result()
	if err != nil {
		if err == redis.Nil {
			return types.Telemetry{}, ErrNotCached
		}
		return types.Telemetry{}, err
	}

	var t types.Telemetry
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return types.Telemetry{}, err
	}

	return t, nil
}

func (c *telemetryCache) Close() error {
	return c.client.Close()
}
