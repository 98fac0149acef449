package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

// SnapshotStore publishes the latest snapshot of each network under
// "<prefix>:<network>" and announces new runs on "<prefix>:updates".
type SnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewSnapshotStore(ctx context.Context, url, prefix string, ttl time.Duration) (*SnapshotStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newSnapshotStore(client, prefix, ttl), nil
}

func newSnapshotStore(client *redis.Client, prefix string, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *SnapshotStore) Name() string {
	return "redis"
}

func (s *SnapshotStore) Close() error {
	return s.client.Close()
}

// Key returns the key holding the latest snapshot of network.
func (s *SnapshotStore) Key(network model.Network) string {
	return s.prefix + ":" + string(network)
}

// UpdatesChannel is the pub/sub channel receiving the run id of every write.
func (s *SnapshotStore) UpdatesChannel() string {
	return s.prefix + ":updates"
}

// Write replaces the network's snapshot and announces it in one MULTI/EXEC.
func (s *SnapshotStore) Write(ctx context.Context, snapshot model.Snapshot) error {
	payload, err := encodePayload(snapshot)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.Key(snapshot.Network), payload, s.ttl)
		pipe.Publish(ctx, s.UpdatesChannel(), snapshot.RunID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %s: %w", s.Key(snapshot.Network), err)
	}
	return nil
}

type payloadPool struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	model.PoolSnapshot
}

type payload struct {
	RunID       string        `json:"runId"`
	Chain       string        `json:"chain"`
	Network     string        `json:"network"`
	BlockNumber uint64        `json:"blockNumber"`
	TakenAt     time.Time     `json:"takenAt"`
	Pools       []payloadPool `json:"pools"`
}

func encodePayload(snapshot model.Snapshot) ([]byte, error) {
	p := payload{
		RunID:       snapshot.RunID.String(),
		Chain:       string(snapshot.Chain),
		Network:     string(snapshot.Network),
		BlockNumber: snapshot.BlockNumber,
		TakenAt:     snapshot.TakenAt.UTC(),
		Pools:       make([]payloadPool, len(snapshot.Pools)),
	}
	for i, pool := range snapshot.Pools {
		p.Pools[i] = payloadPool{
			Name:         pool.Pool.Name,
			Address:      pool.Pool.Address.Hex(),
			PoolSnapshot: pool,
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode redis payload: %w", err)
	}
	return data, nil
}
