package db

import (
	"fmt"
	"log"
	"net/url"

	"land_leads_app_go/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the inquiry database: a local SQLite file with WAL mode,
// or a remote libSQL (Turso) database when DB_DRIVER=libsql.
func Initialize(cfg *config.Config) error {
	var err error

	// Determine log level based on environment
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Warn
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return err
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == config.DriverLibSQL {
		log.Println("Database connection established (libsql)")
	} else {
		log.Println("Database connection established (WAL mode enabled)")
	}
	return nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case config.DriverLibSQL:
		if cfg.TursoDatabaseURL == "" {
			return nil, fmt.Errorf("TURSO_DATABASE_URL is required for DB_DRIVER=libsql")
		}
		return sqlite.New(sqlite.Config{
			DriverName: "libsql",
			DSN:        libsqlDSN(cfg.TursoDatabaseURL, cfg.TursoAuthToken),
		}), nil
	case config.DriverSQLite, "":
		// Enable WAL mode for better concurrency support
		return sqlite.Open(cfg.DBPath + "?_journal_mode=WAL&_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("DB_DRIVER %q is not served by gorm", cfg.DBDriver)
	}
}

func libsqlDSN(dbURL, token string) string {
	if token == "" {
		return dbURL
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return dbURL
	}
	q := u.Query()
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// AutoMigrate runs database migrations for the provided models
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(models...)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
