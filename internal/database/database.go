package database

import (
	"log"
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"resourcehub/internal/audit"
	"resourcehub/internal/domain/auth"
	"resourcehub/internal/domain/resource"
)

// Connect opens PostgreSQL for postgres:// DSNs and falls back to the pure-Go
// SQLite driver for anything else, which keeps local development CGO-free.
func Connect(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Println("Connecting to PostgreSQL...")
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}

	log.Println("Using SQLite for local development:", dsn)

	return gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		&gorm.Config{},
	)
}

// Migrate applies the schema for every persisted entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&auth.User{},
		&resource.Resource{},
		&resource.Attachment{},
		&resource.DownloadLog{},
		&audit.Event{},
	)
}
