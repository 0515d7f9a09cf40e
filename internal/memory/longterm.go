package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/types"
)

// longTermRecord is the gorm model backing types.LongTermMemory: a
// tenant/session-scoped CRUD shape over a Postgres table, with the
// embedding column stored via pgvector-go instead of a JSON blob.
type longTermRecord struct {
	ID             string `gorm:"primaryKey;type:uuid"`
	SessionID      string `gorm:"index"`
	UserID         string `gorm:"index"`
	Text           string
	Type           string
	Embedding      pgvector.Vector `gorm:"type:vector"`
	Tags           string          // comma-joined; Postgres text[] would need a custom gorm type this repo doesn't need elsewhere
	UsageCount     int
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

func (longTermRecord) TableName() string { return "long_term_memories" }

// LongTermStore implements interfaces.LongTermMemoryStore over
// Postgres+pgvector via gorm.
type LongTermStore struct {
	db   *gorm.DB
	dims int
}

// NewLongTermStore builds a store bound to the embedding dimension the
// configured embedding family produces; reads of rows with a mismatched
// dimension are refused.
func NewLongTermStore(db *gorm.DB, dims int) *LongTermStore {
	return &LongTermStore{db: db, dims: dims}
}

// Migrate creates the long_term_memories table and its pgvector
// extension/column if they don't already exist.
func (s *LongTermStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return errs.New(errs.ConfigError, err)
	}
	return s.db.WithContext(ctx).AutoMigrate(&longTermRecord{})
}

// Add implements interfaces.LongTermMemoryStore.
func (s *LongTermStore) Add(ctx context.Context, mem *types.LongTermMemory) error {
	if len(mem.Embedding) != s.dims {
		return errs.New(errs.ConfigError, fmt.Errorf("embedding dimension %d does not match configured dimension %d", len(mem.Embedding), s.dims))
	}
	rec := longTermRecord{
		ID:             mem.ID.String(),
		SessionID:      mem.SessionID,
		UserID:         mem.UserID,
		Text:           mem.Text,
		Type:           string(mem.Type),
		Embedding:      pgvector.NewVector(mem.Embedding),
		Tags:           joinTags(mem.Tags),
		UsageCount:     mem.UsageCount,
		CreatedAt:      mem.CreatedAt,
		LastAccessedAt: mem.LastAccessedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errs.New(errs.UpstreamTransient, err)
	}
	return nil
}

// Recall implements interfaces.LongTermMemoryStore: top-K by cosine
// similarity (pgvector's `<=>` operator) filtered by session/user/type/
// tags, incrementing UsageCount and LastAccessedAt on each hit.
func (s *LongTermStore) Recall(ctx context.Context, sessionID, userID string, embedding []float32, minSimilarity float64, topK int, memType types.LongTermMemoryType, tags []string) ([]types.LongTermMemory, error) {
	if len(embedding) != s.dims {
		return nil, errs.New(errs.ConfigError, fmt.Errorf("query embedding dimension %d does not match configured dimension %d", len(embedding), s.dims))
	}

	q := s.db.WithContext(ctx).Model(&longTermRecord{})
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if memType != "" {
		q = q.Where("type = ?", string(memType))
	}
	for _, tag := range tags {
		q = q.Where("tags LIKE ?", "%"+tag+"%")
	}

	vec := pgvector.NewVector(embedding)
	var rows []longTermRecord
	err := q.
		Select("*, (1 - (embedding <=> ?)) AS similarity", vec).
		Having("similarity >= ?", minSimilarity).
		Order("similarity DESC").
		Limit(topK).
		Find(&rows).Error
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, err)
	}

	out := make([]types.LongTermMemory, 0, len(rows))
	now := time.Now()
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		out = append(out, types.LongTermMemory{
			ID:             id,
			SessionID:      r.SessionID,
			UserID:         r.UserID,
			Text:           r.Text,
			Type:           types.LongTermMemoryType(r.Type),
			Tags:           splitTags(r.Tags),
			UsageCount:     r.UsageCount + 1,
			CreatedAt:      r.CreatedAt,
			LastAccessedAt: now,
		})
		s.db.WithContext(ctx).Model(&longTermRecord{}).Where("id = ?", r.ID).
			Updates(map[string]interface{}{"usage_count": gorm.Expr("usage_count + 1"), "last_accessed_at": now})
	}
	return out, nil
}

// Prune implements interfaces.LongTermMemoryStore: deletes records
// older than maxAgeDays AND with usage below minUsage.
func (s *LongTermStore) Prune(ctx context.Context, maxAgeDays int, minUsage int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	res := s.db.WithContext(ctx).
		Where("created_at < ? AND usage_count < ?", cutoff, minUsage).
		Delete(&longTermRecord{})
	if res.Error != nil {
		return 0, errs.New(errs.UpstreamTransient, res.Error)
	}
	return res.RowsAffected, nil
}

// Stats implements interfaces.LongTermMemoryStore.
func (s *LongTermStore) Stats(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&longTermRecord{}).Count(&count).Error; err != nil {
		return 0, errs.New(errs.UpstreamTransient, err)
	}
	return count, nil
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

func splitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(joined); i++ {
		if i == len(joined) || joined[i] == ',' {
			out = append(out, joined[start:i])
			start = i + 1
		}
	}
	return out
}

