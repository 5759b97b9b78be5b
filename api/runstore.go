package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"mangabeat/story"
)

// ErrRunNotFound is returned when no run exists for a story id.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the persisted view of one animation run.
type RunStatus struct {
	StoryID   string        `json:"story_id"`
	Mode      string        `json:"mode"`
	State     string        `json:"state"` // running, complete, error
	Message   string        `json:"message,omitempty"`
	Result    *story.Result `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RunStore persists run status so status survives across API requests.
type RunStore interface {
	Save(ctx context.Context, status RunStatus) error
	Get(ctx context.Context, storyID string) (*RunStatus, error)
}

const defaultRunTTL = 24 * time.Hour

// NewRunStoreFromEnv returns a Redis-backed store when REDIS_ADDR is
// set, otherwise an in-memory store. The in-memory store loses state on
// restart, which is fine for single-node deployments.
func NewRunStoreFromEnv() RunStore {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Println("[API] REDIS_ADDR not set, using in-memory run store")
		return newMemoryRunStore(defaultRunTTL)
	}

	ttl := defaultRunTTL
	if t := os.Getenv("RUN_TTL_SECONDS"); t != "" {
		if secs, err := strconv.Atoi(t); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASS"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[API] Redis unreachable at %s, using in-memory run store: %v", addr, err)
		return newMemoryRunStore(ttl)
	}

	log.Printf("[API] Using Redis run store at %s", addr)
	return &redisRunStore{client: client, ttl: ttl}
}

type redisRunStore struct {
	client *redis.Client
	ttl    time.Duration
}

func runKey(storyID string) string { return "run:" + storyID }

func (s *redisRunStore) Save(ctx context.Context, status RunStatus) error {
	b, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, runKey(status.StoryID), b, s.ttl).Err()
}

func (s *redisRunStore) Get(ctx context.Context, storyID string) (*RunStatus, error) {
	b, err := s.client.Get(ctx, runKey(storyID)).Bytes()
	if err == redis.Nil {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var status RunStatus
	if err := json.Unmarshal(b, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type memoryRunStore struct {
	cache *gocache.Cache
}

func newMemoryRunStore(ttl time.Duration) *memoryRunStore {
	return &memoryRunStore{cache: gocache.New(ttl, 10*time.Minute)}
}

func (s *memoryRunStore) Save(_ context.Context, status RunStatus) error {
	s.cache.SetDefault(status.StoryID, status)
	return nil
}

func (s *memoryRunStore) Get(_ context.Context, storyID string) (*RunStatus, error) {
	v, ok := s.cache.Get(storyID)
	if !ok {
		return nil, ErrRunNotFound
	}
	status := v.(RunStatus)
	return &status, nil
}
