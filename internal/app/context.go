package app

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/engine"
	"hireline/internal/migrate"
)

// Workspace is an opened, migrated and seeded hireline workspace.
type Workspace struct {
	Path   string
	Config *config.Config
	DB     *sql.DB
	Engine engine.Engine
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// Open loads hireline.yml (falling back to defaults), applies migrations and
// seeds platform settings on first use.
func Open(ctx context.Context, workspace string, logger *logrus.Logger) (*Workspace, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(ctx, workspace, cfg, logger)
}

func OpenWithConfig(ctx context.Context, workspace string, cfg *config.Config, logger *logrus.Logger) (*Workspace, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	eng := engine.New(conn, logger)
	seeded, err := eng.Seed(ctx, cfg)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "seed platform")
	}
	if seeded && logger != nil {
		logger.WithFields(logrus.Fields{"workspace": workspace, "owners": cfg.Platform.Owners}).Info("platform seeded")
	}
	return &Workspace{Path: workspace, Config: cfg, DB: conn, Engine: eng}, nil
}
