// Package postgres implements the storage.Backend interface on a central
// PostgreSQL database. It wraps the GORM backend via composition: this
// package owns connection setup, schema migration, and the PostGIS extension;
// the embedded backend owns queues, the background writer, and vault
// operations.
package postgres

import (
	"fmt"

	"github.com/motorpool/extension/v2/internal/cache"
	"github.com/motorpool/extension/v2/internal/database"
	"github.com/motorpool/extension/v2/internal/logging"
	"github.com/motorpool/extension/v2/internal/model"
	"github.com/motorpool/extension/v2/internal/session"
	gormstorage "github.com/motorpool/extension/v2/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	// DB may be injected for tests; Init opens its own connection when nil.
	DB             *gorm.DB
	InstanceCache  *cache.InstanceCache
	LogManager     *logging.SlogManager
	SessionContext *session.Context

	// DBInsertsPaused suspends the background writer, e.g. while backup
	// dump files are being merged in. Nil means never paused.
	DBInsertsPaused func() bool
}

// Backend implements storage.Backend on PostgreSQL. The embedded GORM backend
// is constructed during Init, once a live connection exists.
type Backend struct {
	*gormstorage.Backend
	deps    Dependencies
	dbReady bool
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init connects (unless a DB was injected), migrates the schema, then
// initializes the embedded GORM backend.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:              b.deps.DB,
		InstanceCache:   b.deps.InstanceCache,
		LogManager:      b.deps.LogManager,
		SessionContext:  b.deps.SessionContext,
		IsDatabaseValid: func() bool { return b.dbReady },
		DBInsertsPaused: b.deps.DBInsertsPaused,
	})
	return b.Backend.Init()
}

// setupDB migrates tables and creates default group settings if they don't exist.
func (b *Backend) setupDB() error {
	db := b.deps.DB
	log := b.deps.LogManager

	if !db.Migrator().HasTable(&model.KeeperInfo{}) {
		if err := db.AutoMigrate(&model.KeeperInfo{}); err != nil {
			log.WriteLog("setupDB", fmt.Sprintf("Failed to create keeper_infos table: %s", err), "ERROR")
			return fmt.Errorf("failed to auto-migrate KeeperInfo: %w", err)
		}
		if err := db.Create(&model.KeeperInfo{
			GroupName:        "Motorpool",
			GroupDescription: "Motorpool Keeper vehicle vault",
			GroupWebsite:     "https://github.com/motorpool/extension",
			GroupLogo:        "https://raw.githubusercontent.com/motorpool/web/main/public/logo.png",
		}).Error; err != nil {
			return fmt.Errorf("failed to create keeper_infos entry: %w", err)
		}
	}

	if db.Name() == "postgres" {
		if err := db.Exec(`CREATE Extension IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS Extension: %w", err)
		}
		log.WriteLog("setupDB", "PostGIS Extension created", "INFO")
	}

	log.WriteLog("setupDB", "Migrating schema", "INFO")
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.WriteLog("setupDB", "Database setup complete", "INFO")
	return nil
}

// Close drains and stops the embedded GORM backend.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
