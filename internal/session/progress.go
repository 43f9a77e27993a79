// Package session keeps per-session quiz progress in redis. Progress is
// ephemeral bookkeeping tied to the visitor's session cookie, not part of
// the persisted plan.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"omex-backend/internal/models"
)

// Progress idles out with the session rather than accumulating forever.
const progressTTL = 7 * 24 * time.Hour

type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func progressKey(sessionID string) string {
	return fmt.Sprintf("quiz_progress:%s", sessionID)
}

// Record stores one completed-quiz entry under its "{topic}_{subtopic}"
// field and refreshes the session's TTL.
func (s *ProgressStore) Record(ctx context.Context, sessionID, field string, entry models.ProgressEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := progressKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, progressTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// All returns every progress entry for the session, keyed by
// "{topic}_{subtopic}". Missing sessions yield an empty map.
func (s *ProgressStore) All(ctx context.Context, sessionID string) (map[string]models.ProgressEntry, error) {
	raw, err := s.client.HGetAll(ctx, progressKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	progress := make(map[string]models.ProgressEntry, len(raw))
	for field, data := range raw {
		var entry models.ProgressEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		progress[field] = entry
	}
	return progress, nil
}
