// Package store provides persistence for batch run history (SQLite via
// GORM) and fast KV needs like the validation cache (BadgerDB).
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/certforge/certforge/internal/config"
)

// Store provides unified access to SQLite and BadgerDB.
type Store struct {
	db     *gorm.DB
	badger *badger.DB
}

// New opens both databases, running SQLite migrations on the way up.
func New(cfg *config.StorageConfig) (*Store, error) {
	sqlitePath := cfg.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.DataDir, "certforge.db")
	}

	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&BatchRun{}, &RenderRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	badgerPath := cfg.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.DataDir, "badger")
	}

	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, badger: badgerDB}, nil
}

// Close closes all database connections.
func (s *Store) Close() error {
	return s.badger.Close()
}

// DB returns the GORM database instance.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Badger returns the BadgerDB instance.
func (s *Store) Badger() *badger.DB {
	return s.badger
}

// ==================== Batch Run Methods ====================

// CreateBatchRun inserts a new run record.
func (s *Store) CreateBatchRun(run *BatchRun) error {
	return s.db.Create(run).Error
}

// GetBatchRun retrieves a run with its render records.
func (s *Store) GetBatchRun(id string) (*BatchRun, error) {
	var run BatchRun
	if err := s.db.Preload("Records", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListBatchRuns lists runs newest first with pagination.
func (s *Store) ListBatchRuns(limit, offset int) ([]BatchRun, error) {
	var runs []BatchRun
	err := s.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&runs).Error
	return runs, err
}

// UpdateBatchRun persists changed run fields.
func (s *Store) UpdateBatchRun(run *BatchRun) error {
	return s.db.Save(run).Error
}

// MarkBatchRunComplete finalizes a run with its tallies.
func (s *Store) MarkBatchRunComplete(id, status string, succeeded, failed int, archivePath, errMsg string) error {
	now := time.Now()
	return s.db.Model(&BatchRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"succeeded":    succeeded,
		"failed":       failed,
		"archive_path": archivePath,
		"error":        errMsg,
		"completed_at": &now,
	}).Error
}

// CreateRenderRecords bulk-inserts the per-recipient outcomes of a run.
func (s *Store) CreateRenderRecords(records []RenderRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.CreateInBatches(records, 100).Error
}

// DeleteRunsBefore removes runs (and their records) older than cutoff.
// Returns the number of runs removed.
func (s *Store) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	var ids []string
	if err := s.db.Model(&BatchRun{}).Where("created_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.db.Where("batch_run_id IN ?", ids).Delete(&RenderRecord{}).Error; err != nil {
		return 0, err
	}
	res := s.db.Where("id IN ?", ids).Delete(&BatchRun{})
	return res.RowsAffected, res.Error
}
