package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"pothole-detect/internal/model"
)

// DetectionCache keeps recent predictions keyed by the SHA-256 of the image
// bytes. The model is deterministic, so identical bytes map to identical output.
type DetectionCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewDetectionCache(client *redisv9.Client, ttl time.Duration) *DetectionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DetectionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *DetectionCache) Get(ctx context.Context, digest string) (model.Prediction, bool, error) {
	raw, err := c.client.Get(ctx, detectionKey(digest)).Bytes()
	if err == redisv9.Nil {
		return model.Prediction{}, false, nil
	}
	if err != nil {
		return model.Prediction{}, false, fmt.Errorf("redis get detection failed: %w", err)
	}

	var p model.Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Prediction{}, false, fmt.Errorf("unmarshal cached detection failed: %w", err)
	}
	return p, true, nil
}

func (c *DetectionCache) Set(ctx context.Context, digest string, p model.Prediction) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal detection cache failed: %w", err)
	}
	if err := c.client.Set(ctx, detectionKey(digest), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set detection failed: %w", err)
	}
	return nil
}

func detectionKey(digest string) string {
	return fmt.Sprintf("pothole:detect:%s", digest)
}
