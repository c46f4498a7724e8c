package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisMirror appends every event to a capped stream and keeps the latest
// sensor reading and relay state in two hashes for dashboards.
type RedisMirror struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisMirror(client *redis.Client, stream string, maxLen int64) *RedisMirror {
	return &RedisMirror{client: client, stream: stream, maxLen: maxLen}
}

// DialRedis opens a client and pings it.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (m *RedisMirror) Name() string { return "redis" }

func (m *RedisMirror) SensorsKey() string { return m.stream + ":sensors" }
func (m *RedisMirror) RelaysKey() string  { return m.stream + ":relays" }

func (m *RedisMirror) Write(ctx context.Context, e models.Event) error {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		return fmt.Errorf("marshal %s event %d: %w", e.Type, e.Seq, err)
	}

	_, err = m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: m.stream,
			MaxLen: m.maxLen,
			Values: map[string]interface{}{
				"type":      e.Type,
				"seq":       e.Seq,
				"data":      string(data),
				"timestamp": e.RecordedAt.Unix(),
			},
		})
		switch {
		case e.Sensor != nil:
			pipe.HSet(ctx, m.SensorsKey(), e.Sensor.Name, string(data))
		case e.Actuator != nil:
			pipe.HSet(ctx, m.RelaysKey(), e.Actuator.RelayID, string(data))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror %s event %d to redis: %w", e.Type, e.Seq, err)
	}
	return nil
}

func (m *RedisMirror) Close() error { return m.client.Close() }
