package app

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/domain/repository"
	"github.com/dropDatabas3/authkit/internal/store/migrate"
	"github.com/dropDatabas3/authkit/internal/store/pg"
	"github.com/dropDatabas3/authkit/internal/store/sqlite"
)

// MigratingStore is a store that can apply its embedded migrations.
type MigratingStore interface {
	repository.Store
	Migrate(ctx context.Context) (*migrate.Result, error)
}

// OpenStore abre el driver configurado. No migra.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (MigratingStore, error) {
	switch cfg.Driver {
	case "postgres":
		s, err := pg.New(ctx, cfg.DSN, pg.PoolConfig{MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Driver)
	}
}
