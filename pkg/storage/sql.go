package storage

import (
	"fmt"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// document is a named JSON body, one row per persisted document
type document struct {
	Name      string `gorm:"primaryKey"`
	Body      string
	UpdatedAt time.Time
}

func (document) TableName() string { return "documents" }

// SQLStorage implements core.StateStorage on a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// FromSQLite opens (or creates) a SQLite database file
func FromSQLite(dbPath string, opts ...gorm.Option) (*SQLStorage, error) {
	return NewSQLStorage(sqlite.Open(dbPath), opts...)
}

// NewSQLStorage creates the storage on any GORM dialector
func NewSQLStorage(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStorage, error) {
	opts = append([]gorm.Option{&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}}, opts...)

	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, &core.StorageError{Op: "open", Err: fmt.Errorf("failed to connect to database: %w", err)}
	}

	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, &core.StorageError{Op: "open", Err: fmt.Errorf("failed to migrate database: %w", err)}
	}

	return &SQLStorage{db: db}, nil
}

// Load returns the persisted state, or an empty state on first run
func (s *SQLStorage) Load() (*core.State, error) {
	var docs []document
	result := s.db.Where("name IN ?", []string{watchListsDocument, seenDocument}).Find(&docs)
	if result.Error != nil {
		return nil, &core.StorageError{Op: "load", Err: result.Error}
	}

	byName := lo.SliceToMap(docs, func(doc document) (string, string) {
		return doc.Name, doc.Body
	})

	var err error
	state := core.NewState()
	if body, ok := byName[watchListsDocument]; ok {
		if state.WatchLists, err = decodeWatchLists(body); err != nil {
			return nil, &core.StorageError{Op: "load", Err: err}
		}
	}
	if body, ok := byName[seenDocument]; ok {
		if state.Seen, err = decodeSeen(body); err != nil {
			return nil, &core.StorageError{Op: "load", Err: err}
		}
	}

	return state, nil
}

// Save replaces both documents in one transaction
func (s *SQLStorage) Save(state *core.State) error {
	watchLists, err := encodeWatchLists(state.WatchLists)
	if err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}

	seen, err := encodeSeen(state.Seen)
	if err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, doc := range []document{
			{Name: watchListsDocument, Body: watchLists, UpdatedAt: now},
			{Name: seenDocument, Body: seen, UpdatedAt: now},
		} {
			if err := tx.Save(&doc).Error; err != nil {
				return fmt.Errorf("failed to store %s: %w", doc.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}

	return nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
