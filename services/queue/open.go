package queue

import (
	"context"
	"fmt"

	"land_leads_app_go/config"
	"land_leads_app_go/db"
	"land_leads_app_go/models"

	"go.uber.org/zap"
)

// Open builds the queue store selected by DB_DRIVER. The returned func releases the backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewStore(backend, logger.Named("queue")), closeFn, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (Backend, func() error, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return NewMemoryBackend(), func() error { return nil }, nil

	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for DB_DRIVER=postgres")
		}
		pg, err := NewPostgresBackend(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, func() error { pg.Close(); return nil }, nil

	case config.DriverSQLite, config.DriverLibSQL, "":
		if err := db.Initialize(cfg); err != nil {
			return nil, nil, err
		}
		if err := db.AutoMigrate(&models.Inquiry{}); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewGormBackend(db.DB), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
