package database

import (
	"database/sql"
	"errors"
	"expiry-monitor/internal/config"
	"expiry-monitor/internal/models"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrDisabled is returned when no database path is configured
var ErrDisabled = errors.New("settings store disabled")

// Open opens the SQLite settings store and migrates its schema
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, ErrDisabled
	}

	// Use pure Go SQLite driver (modernc.org/sqlite)
	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection also keeps :memory: databases shared
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(sqlite.Dialector{
		Conn: sqlDB,
	}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// SettingsStore persists configuration overrides
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a store backed by db
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// All returns every stored setting as a map
func (s *SettingsStore) All() (map[string]string, error) {
	var settings []models.Setting
	if err := s.db.Order("`key` asc").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}

// Put inserts or replaces the given settings in one transaction
func (s *SettingsStore) Put(values map[string]string) error {
	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			setting := models.Setting{Key: key, Value: value, UpdatedAt: now}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&setting).Error; err != nil {
				return fmt.Errorf("failed to save setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// Close releases the underlying connection
func (s *SettingsStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
