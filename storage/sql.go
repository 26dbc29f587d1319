package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sqlRecord is one key/value row of the records table.
type sqlRecord struct {
	Key   []byte `gorm:"primaryKey"`
	Value []byte `gorm:"not null"`
}

func (sqlRecord) TableName() string { return "records" }

// SQLDB stores records in a single SQL table through gorm.
type SQLDB struct {
	db *gorm.DB
}

// NewSQLDB opens dialector and migrates the records table.
func NewSQLDB(dialector gorm.Dialector) (*SQLDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("storage: open sql: %w", err)
	}
	if err := db.AutoMigrate(&sqlRecord{}); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("storage: migrate records: %w", err)
	}
	return &SQLDB{db: db}, nil
}

// NewSQLiteDB opens (or creates) a SQLite file at path.
func NewSQLiteDB(path string) (*SQLDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create sqlite dir: %w", err)
	}
	return NewSQLDB(sqlite.Open(path))
}

// NewPostgresDB connects to the PostgreSQL database named by dsn.
func NewPostgresDB(dsn string) (*SQLDB, error) {
	return NewSQLDB(postgres.Open(dsn))
}

func upsert(db *gorm.DB, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&sqlRecord{Key: key, Value: value}).Error
}

func (s *SQLDB) Put(key []byte, value []byte) error {
	return upsert(s.db, key, value)
}

func (s *SQLDB) Get(key []byte) ([]byte, error) {
	var rec sqlRecord
	err := s.db.Where(&sqlRecord{Key: key}).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (s *SQLDB) Has(key []byte) (bool, error) {
	var count int64
	if err := s.db.Model(&sqlRecord{}).Where(&sqlRecord{Key: key}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLDB) Delete(key []byte) error {
	return s.db.Where(&sqlRecord{Key: key}).Delete(&sqlRecord{}).Error
}

// Write applies the batch inside one SQL transaction.
func (s *SQLDB) Write(batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range batch.ops {
			if op.delete {
				if err := tx.Where(&sqlRecord{Key: op.key}).Delete(&sqlRecord{}).Error; err != nil {
					return err
				}
				continue
			}
			if err := upsert(tx, op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLDB) Close() {
	closeGorm(s.db)
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
