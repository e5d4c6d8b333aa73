package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/models"
)

// RedisRepository keeps sessions in redis so multiple workers can share
// one login. keyTemplate should contain a single %s for the student id,
// e.g. "session:portal:%s".
type RedisRepository struct {
	redis       *redis.Client
	keyTemplate string
}

func NewRedisRepository(redisURL, keyTemplate string) (*RedisRepository, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRepository{
		redis:       client,
		keyTemplate: keyTemplate,
	}, nil
}

func (r *RedisRepository) key(studentID string) string {
	return fmt.Sprintf(r.keyTemplate, studentID)
}

func (r *RedisRepository) Save(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = time.Until(s.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("refusing to save already expired session for %s", s.StudentID)
		}
	}

	if err := r.redis.Set(ctx, r.key(s.StudentID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisRepository) Load(ctx context.Context, studentID string) (*models.Session, error) {
	data, err := r.redis.Get(ctx, r.key(studentID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Debug.Printf("Dropping undecodable session for %s: %v", studentID, err)
		r.redis.Del(ctx, r.key(studentID))
		return nil, nil
	}

	if s.Expired(time.Now()) {
		r.redis.Del(ctx, r.key(studentID))
		return nil, nil
	}
	return &s, nil
}

func (r *RedisRepository) Delete(ctx context.Context, studentID string) error {
	return r.redis.Del(ctx, r.key(studentID)).Err()
}

func (r *RedisRepository) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
