// Package ledger is the headend's durable issuance audit trail: every
// subscription and frame the headend issues is recorded here via GORM
// against a SQLite-backed database, the same gorm.io/gorm + sqlite driver
// pairing carried as a dependency for a relational store elsewhere in the
// retrieval pack. The reference Python/Rust tooling this module supplements
// only printed issuance events to stdout; this package gives a real
// deployment something it can audit after the fact.
package ledger

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SubscriptionRecord is one issued subscription: who it was issued to, for
// which channel and time range, and when.
type SubscriptionRecord struct {
	ID        uint `gorm:"primarykey"`
	IssuedAt  time.Time
	DeviceID  uint32 `gorm:"index"`
	Channel   uint32 `gorm:"index"`
	StartTime uint64
	EndTime   uint64
}

// FrameRecord is one encoded frame: its channel and the application
// timestamp it carries (not IssuedAt, which is wall-clock headend time).
type FrameRecord struct {
	ID        uint `gorm:"primarykey"`
	IssuedAt  time.Time
	Channel   uint32 `gorm:"index"`
	Timestamp uint64
}

// Ledger wraps a GORM database handle scoped to this package's two tables.
type Ledger struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a SQLite-backed ledger at path and
// migrates its schema.
func Open(path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&SubscriptionRecord{}, &FrameRecord{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &Ledger{db: db}, nil
}

// RecordSubscription appends an issuance entry for a subscription.
func (l *Ledger) RecordSubscription(deviceID, channel uint32, start, end uint64, issuedAt time.Time) error {
	rec := SubscriptionRecord{
		IssuedAt:  issuedAt,
		DeviceID:  deviceID,
		Channel:   channel,
		StartTime: start,
		EndTime:   end,
	}
	return l.db.Create(&rec).Error
}

// RecordFrame appends an issuance entry for an encoded frame.
func (l *Ledger) RecordFrame(channel uint32, timestamp uint64, issuedAt time.Time) error {
	rec := FrameRecord{
		IssuedAt:  issuedAt,
		Channel:   channel,
		Timestamp: timestamp,
	}
	return l.db.Create(&rec).Error
}

// SubscriptionsForDevice returns every subscription issuance recorded for
// deviceID, most recent first.
func (l *Ledger) SubscriptionsForDevice(deviceID uint32) ([]SubscriptionRecord, error) {
	var out []SubscriptionRecord
	err := l.db.Where("device_id = ?", deviceID).Order("issued_at desc").Find(&out).Error
	return out, err
}

// Close releases the underlying database connection.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
