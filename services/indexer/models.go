package indexer

import (
	"time"

	"gorm.io/gorm"
)

// EventRecord is one committed ledger event.
type EventRecord struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	EventID    string `gorm:"size:36;uniqueIndex"`
	Type       string `gorm:"size:64;index"`
	Pool       string `gorm:"size:16;index"`
	Account    string `gorm:"size:96;index"`
	Amount     string `gorm:"size:96"`
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// IdempotencyKey stores the first response produced for a client supplied
// Idempotency-Key header.
type IdempotencyKey struct {
	Key         string `gorm:"primaryKey;size:128"`
	Fingerprint string `gorm:"size:64"`
	RequestID   string `gorm:"size:36"`
	Method      string `gorm:"size:8"`
	Path        string `gorm:"size:255"`
	Status      int
	Response    string `gorm:"type:text"`
	CreatedAt   time.Time
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &IdempotencyKey{})
}
