package metricscache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a key/value backend with per-key expiry. Get reports a miss with
// ok == false; errors mean the backend itself failed.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Len returns the number of live and expired entries held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entry is a row of the metric cache table.
type Entry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Key       string    `gorm:"column:cache_key;uniqueIndex;not null"`
	Value     []byte    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;type:datetime;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "metric_cache_entries"
}

// DBStore keeps entries in the application database so they survive restarts
// and are shared between processes using the same file.
type DBStore struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// noExpiry is used for entries written with a non-positive ttl.
var noExpiry = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func NewDBStore(db *gorm.DB, logger *slog.Logger) *DBStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBStore{db: db, logger: logger, now: time.Now}
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e Entry
	err := s.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, s.now().UTC()).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading cache entry: %w", err)
	}
	return e.Value, true, nil
}

func (s *DBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	expires := noExpiry
	if ttl > 0 {
		expires = now.Add(ttl)
	}

	e := Entry{Key: key, Value: value, ExpiresAt: expires, CreatedAt: now, UpdatedAt: now}
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&e).Error
	})
}

func (s *DBStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Where("cache_key IN ?", keys).Delete(&Entry{}).Error
	})
}

// PurgeExpired removes entries whose expiry has passed.
func (s *DBStore) PurgeExpired(ctx context.Context) (int64, error) {
	var affected int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Where("expires_at <= ?", s.now().UTC()).Delete(&Entry{})
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}
