// Package clientdb persists confirmed NFSv4 client records.
//
// The state manager writes a record when a client id is confirmed and
// flags it once the client reports RECLAIM_COMPLETE. After a restart the
// stored records tell the server which clients may still reclaim state, so
// the grace period can end early once all of them are done.
package clientdb

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("clientdb: client not found")

// ClientRecord is one confirmed client.
type ClientRecord struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	ClientID        uint64    `gorm:"index;not null" json:"client_id"`
	Owner           string    `gorm:"uniqueIndex;size:2048;not null" json:"owner"`
	MinorVersion    uint32    `json:"minor_version"`
	Principal       string    `gorm:"size:256" json:"principal"`
	ReclaimComplete bool      `json:"reclaim_complete"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OwnerKey renders a client owner id the way it is stored.
func OwnerKey(owner []byte) string {
	return hex.EncodeToString(owner)
}

// Store is a gorm-backed client database.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dialector = sqlite.Open(cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DatabaseTypePostgres:
		dialector = postgres.Open(cfg.Postgres.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to client database: %w", err)
	}

	if cfg.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	}

	if err := db.AutoMigrate(&ClientRecord{}); err != nil {
		return nil, fmt.Errorf("migrate client database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveClient inserts rec or replaces the record of the same owner. A
// replaced record starts over with reclaim_complete cleared.
func (s *Store) SaveClient(ctx context.Context, rec *ClientRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{"client_id", "minor_version", "principal", "reclaim_complete", "confirmed_at", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("save client %x: %w", rec.ClientID, err)
	}
	return nil
}

// DeleteClient removes the record of clientID. Missing records are ignored.
func (s *Store) DeleteClient(ctx context.Context, clientID uint64) error {
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&ClientRecord{}).Error; err != nil {
		return fmt.Errorf("delete client %x: %w", clientID, err)
	}
	return nil
}

// MarkReclaimComplete flags clientID as done reclaiming.
func (s *Store) MarkReclaimComplete(ctx context.Context, clientID uint64) error {
	res := s.db.WithContext(ctx).Model(&ClientRecord{}).
		Where("client_id = ?", clientID).
		Update("reclaim_complete", true)
	if res.Error != nil {
		return fmt.Errorf("mark reclaim complete for %x: %w", clientID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetClient loads the record of clientID.
func (s *Store) GetClient(ctx context.Context, clientID uint64) (*ClientRecord, error) {
	var rec ClientRecord
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client %x: %w", clientID, err)
	}
	return &rec, nil
}

// ListClients returns every stored record ordered by client id.
func (s *Store) ListClients(ctx context.Context) ([]ClientRecord, error) {
	var recs []ClientRecord
	if err := s.db.WithContext(ctx).Order("client_id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return recs, nil
}

// DeleteStale removes records not saved since before. Called when the grace
// period ends to forget clients that never came back.
func (s *Store) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&ClientRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale clients: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ResetReclaim clears every reclaim flag. Called when a new grace period
// starts so each surviving client has to reclaim again.
func (s *Store) ResetReclaim(ctx context.Context) error {
	err := s.db.WithContext(ctx).Model(&ClientRecord{}).
		Where("reclaim_complete = ?", true).
		Update("reclaim_complete", false).Error
	if err != nil {
		return fmt.Errorf("reset reclaim flags: %w", err)
	}
	return nil
}
