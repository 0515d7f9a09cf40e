// Package memory holds short-term per-session bullets and salience
// (Redis-backed per-session state under a stable key, get/append/prune)
// and an optional long-term embedding-indexed store (a gorm CRUD
// shape).
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/groundedqa/sentra/internal/logger"
	"github.com/groundedqa/sentra/internal/types"
)

type sessionMemory struct {
	Summary  []types.SummaryBullet `json:"summary"`
	Salience []types.SalienceNote  `json:"salience"`
	Turn     int                   `json:"turn"`
}

// ShortTermStore is the in-process map, mirrored into Redis under a
// `sessmem:<sessionID>` key so a second orchestrator replica can
// recover a session's memory after a failover.
type ShortTermStore struct {
	mu    sync.RWMutex
	local map[string]*sessionMemory
	redis *redis.Client
}

// NewShortTermStore builds a store; redisClient may be nil to run
// in-process only (tests, single-replica deployments).
func NewShortTermStore(redisClient *redis.Client) *ShortTermStore {
	return &ShortTermStore{local: make(map[string]*sessionMemory), redis: redisClient}
}

func redisKey(sessionID string) string {
	return fmt.Sprintf("sessmem:%s", sessionID)
}

// Get implements interfaces.MemoryStore.
func (s *ShortTermStore) Get(ctx context.Context, sessionID string) ([]types.SummaryBullet, []types.SalienceNote, int, error) {
	s.mu.RLock()
	mem, ok := s.local[sessionID]
	s.mu.RUnlock()
	if ok {
		return mem.Summary, mem.Salience, mem.Turn, nil
	}

	if s.redis == nil {
		return nil, nil, 0, nil
	}
	raw, err := s.redis.Get(ctx, redisKey(sessionID)).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, nil, 0, nil
	}
	var loaded sessionMemory
	if err := json.Unmarshal(raw, &loaded); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("corrupt session memory in redis")
		return nil, nil, 0, nil
	}
	s.mu.Lock()
	s.local[sessionID] = &loaded
	s.mu.Unlock()
	return loaded.Summary, loaded.Salience, loaded.Turn, nil
}

// Append implements interfaces.MemoryStore, adding a new summary
// bullet and any salience notes, then persisting both copies.
func (s *ShortTermStore) Append(ctx context.Context, sessionID string, bullet types.SummaryBullet, notes []types.SalienceNote) error {
	s.mu.Lock()
	mem, ok := s.local[sessionID]
	if !ok {
		mem = &sessionMemory{}
		s.local[sessionID] = mem
	}
	mem.Summary = append(mem.Summary, bullet)
	mem.Salience = mergeSalience(mem.Salience, notes)
	mem.Turn = bullet.Turn
	snapshot := *mem
	s.mu.Unlock()

	s.persist(ctx, sessionID, snapshot)
	return nil
}

func mergeSalience(existing []types.SalienceNote, incoming []types.SalienceNote) []types.SalienceNote {
	byFact := make(map[string]int, len(existing))
	for i, n := range existing {
		byFact[n.Fact] = i
	}
	for _, n := range incoming {
		if i, ok := byFact[n.Fact]; ok {
			existing[i].LastSeenTurn = n.LastSeenTurn
			continue
		}
		existing = append(existing, n)
	}
	return existing
}

func (s *ShortTermStore) persist(ctx context.Context, sessionID string, mem sessionMemory) {
	if s.redis == nil {
		return
	}
	b, err := json.Marshal(mem)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("failed to marshal session memory")
		return
	}
	if err := s.redis.Set(ctx, redisKey(sessionID), b, 0).Err(); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("failed to mirror session memory to redis")
	}
}

// Prune implements interfaces.MemoryStore: drops salience notes whose
// LastSeenTurn is more than maxAgeTurns behind the session's current
// turn.
func (s *ShortTermStore) Prune(ctx context.Context, sessionID string, maxAgeTurns int) error {
	s.mu.Lock()
	mem, ok := s.local[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	kept := mem.Salience[:0]
	for _, n := range mem.Salience {
		if mem.Turn-n.LastSeenTurn <= maxAgeTurns {
			kept = append(kept, n)
		}
	}
	mem.Salience = kept
	snapshot := *mem
	s.mu.Unlock()

	s.persist(ctx, sessionID, snapshot)
	return nil
}
