package seen

import (
	"context"
	"fmt"

	"github.com/agentscope/agentscope/internal/pkg/database"
)

// RedisStore keeps per-scope identity sets in Redis so first-seen state
// survives restarts and is shared across ingest replicas.
type RedisStore struct {
	db *database.RedisDB
}

func NewRedisStore(db *database.RedisDB) *RedisStore {
	return &RedisStore{db: db}
}

func (s *RedisStore) MarkSeen(ctx context.Context, scope, key string) (bool, error) {
	added, err := s.db.SAdd(ctx, setKey(scope), key)
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	return added == 1, nil
}

func setKey(scope string) string {
	return "seen:" + scope
}
