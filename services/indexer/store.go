package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cookledger/core/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultLimit = 100
	maxLimit     = 1000
)

var errUnknownDriver = errors.New("indexer: unknown driver")

// Store persists committed events and idempotency records.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db, log)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, logger: log.With(slog.String("component", "indexer")), now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Write failures are logged; the ledger has
// already committed and cannot be rolled back.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	record := s.recordFor(evt)
	if err := s.db.Create(record).Error; err != nil {
		s.logger.Error("index event",
			slog.String("type", record.Type),
			slog.String("error", err.Error()))
	}
}

func (s *Store) recordFor(evt events.Event) *EventRecord {
	record := &EventRecord{
		EventID:   uuid.NewString(),
		Type:      evt.EventType(),
		CreatedAt: s.now().UTC(),
	}
	payload, ok := evt.(events.Payload)
	if !ok {
		return record
	}
	body := payload.Event()
	if body == nil {
		return record
	}
	attrs := body.Attributes
	record.Pool = attrs["pool"]
	record.Amount = attrs["amount"]
	for _, key := range []string{"user", "referee", "from", "owner", "provider", "trader", "address", "to"} {
		if v := attrs[key]; v != "" {
			record.Account = v
			break
		}
	}
	if encoded, err := json.Marshal(attrs); err == nil {
		record.Attributes = string(encoded)
	}
	return record
}

// Query filters the event history. Zero values match everything.
type Query struct {
	Type    string
	Pool    string
	Account string
	// After returns only events with a larger sequence number.
	After uint64
	Limit int
}

// Events returns matching events in commit order.
func (s *Store) Events(ctx context.Context, q Query) ([]EventRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	tx := s.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", q.After)
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Pool != "" {
		tx = tx.Where("pool = ?", q.Pool)
	}
	if q.Account != "" {
		tx = tx.Where("account = ?", q.Account)
	}
	var out []EventRecord
	if err := tx.Order("seq asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
