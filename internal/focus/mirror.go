package focus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ticus/internal/models"
)

// Snapshot is the durable mirror of an ActiveSessionState. It carries
// just enough to reconstruct a controller in paused state after a
// restart: elapsed time is stored as a value, not derived from stale
// wall-clock timestamps.
type Snapshot struct {
	Session        models.Session   `json:"session"`
	CheckIns       []models.CheckIn `json:"check_ins"`
	ElapsedSeconds int              `json:"elapsed_seconds"`
	SavedAt        time.Time        `json:"saved_at"`
}

// Mirror persists active-session snapshots across restarts. Any
// key-value store with load/save/clear semantics satisfies the
// contract.
type Mirror interface {
	Save(ctx context.Context, userID string, snap *Snapshot) error
	Load(ctx context.Context, userID string) (*Snapshot, error)
	Clear(ctx context.Context, userID string) error
}

// ErrNoSnapshot is returned by Load when no mirror entry exists.
var ErrNoSnapshot = fmt.Errorf("no active session snapshot")

// RedisMirror stores snapshots in Redis with a TTL so abandoned
// entries expire on their own.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror creates a mirror backed by the given Redis client.
func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMirror{client: client, ttl: ttl}
}

func mirrorKey(userID string) string {
	return "ticus:active_session:" + userID
}

// Save serializes the snapshot and writes it with the configured TTL.
func (m *RedisMirror) Save(ctx context.Context, userID string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := m.client.Set(ctx, mirrorKey(userID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

// Load reads and deserializes the user's snapshot.
func (m *RedisMirror) Load(ctx context.Context, userID string) (*Snapshot, error) {
	data, err := m.client.Get(ctx, mirrorKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

// Clear removes the user's snapshot.
func (m *RedisMirror) Clear(ctx context.Context, userID string) error {
	if err := m.client.Del(ctx, mirrorKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session snapshot: %w", err)
	}
	return nil
}

// MemoryMirror is an in-process Mirror for single-node deployments
// without Redis, and for tests.
type MemoryMirror struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{snaps: make(map[string]*Snapshot)}
}

func (m *MemoryMirror) Save(ctx context.Context, userID string, snap *Snapshot) error {
	cp := *snap
	cp.CheckIns = append([]models.CheckIn(nil), snap.CheckIns...)
	m.mu.Lock()
	m.snaps[userID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryMirror) Load(ctx context.Context, userID string) (*Snapshot, error) {
	m.mu.RLock()
	snap, ok := m.snaps[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoSnapshot
	}
	cp := *snap
	cp.CheckIns = append([]models.CheckIn(nil), snap.CheckIns...)
	return &cp, nil
}

func (m *MemoryMirror) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	delete(m.snaps, userID)
	m.mu.Unlock()
	return nil
}
