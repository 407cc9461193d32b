package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/proctor-signaling/internal/models"
)

const (
	// LogStream is the append-only stream of signaling events.
	LogStream = "proctor:logs"
	// logStreamMaxLen keeps the stream bounded; older entries are trimmed approximately.
	logStreamMaxLen = 100_000
)

var timeNow = time.Now

func examineeKey(userID string) string {
	return "examinee:" + userID
}

// Store persists events and examinee status. It satisfies eventlog.Sink.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) AppendLog(ctx context.Context, e models.LogEntry) error {
	values := map[string]any{
		"actor_user_id": e.ActorUserID,
		"log_type":      string(e.LogType),
		"room_id":       e.RoomID,
		"url_path":      e.URLPath,
		"created_at":    e.CreatedAt.UnixMilli(),
	}
	if e.Content != nil {
		content, err := json.Marshal(e.Content)
		if err != nil {
			return fmt.Errorf("encode log content: %w", err)
		}
		values["content"] = string(content)
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: LogStream,
		MaxLen: logStreamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("append %s log for %s: %w", e.LogType, e.ActorUserID, err)
	}
	return nil
}

func (s *Store) SetExamineeStatus(ctx context.Context, userID string, status models.ExamineeStatus) error {
	err := s.client.HSet(ctx, examineeKey(userID),
		"status", string(status),
		"updated_at", strconv.FormatInt(timeNow().Unix(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("set examinee %s status: %w", userID, err)
	}
	return nil
}

// ExamineeStatus reads back the last status written for userID.
func (s *Store) ExamineeStatus(ctx context.Context, userID string) (models.ExamineeStatus, error) {
	v, err := s.client.HGet(ctx, examineeKey(userID), "status").Result()
	if err != nil {
		return "", fmt.Errorf("get examinee %s status: %w", userID, err)
	}
	return models.ExamineeStatus(v), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
