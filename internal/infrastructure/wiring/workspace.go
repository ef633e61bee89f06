package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/reneee98/layers/internal/infrastructure/config"
	"github.com/reneee98/layers/internal/infrastructure/logging"
	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/storage"
)

// Workspace bundles core infrastructure dependencies.
type Workspace struct {
	Root   string
	Config *config.Config
	Logger *slog.Logger
	Repo   *storage.Repository
	Audit  *application.AuditService
}

// NewWorkspace loads the config for root and opens its database.
func NewWorkspace(ctx context.Context, root string) (*Workspace, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	repo, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	logger.Debug("workspace opened", "root", root, "driver", cfg.DBDriver)

	return &Workspace{
		Root:   root,
		Config: cfg,
		Logger: logger,
		Repo:   repo,
		Audit:  application.NewAuditService(repo),
	}, nil
}

// Close releases the database.
func (w *Workspace) Close() error {
	return w.Repo.Close()
}
