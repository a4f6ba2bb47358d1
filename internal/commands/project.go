package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/pennywise-dev/pennywise/internal/config"
	"github.com/pennywise-dev/pennywise/internal/logging"
	"github.com/pennywise-dev/pennywise/internal/store"
	"github.com/pennywise-dev/pennywise/internal/store/memory"
	"github.com/pennywise-dev/pennywise/internal/store/sqlite"
	"github.com/pennywise-dev/pennywise/internal/tables"
	"github.com/pennywise-dev/pennywise/internal/views"
)

// project is an opened pennywise directory.
type project struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	states *views.States
}

// openProject loads the config in dir and opens its store. Logs go to logw.
func openProject(ctx context.Context, dir string, logw io.Writer) (*project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	path, err := config.Find(root)
	if err != nil {
		return nil, fmt.Errorf("not a pennywise project (run pennywise init): %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return openWith(ctx, root, cfg, logw)
}

func openWith(ctx context.Context, root string, cfg *config.Config, logw io.Writer) (*project, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logw)
	if err != nil {
		return nil, err
	}

	var backend store.Backend
	switch cfg.Store.Driver {
	case config.DriverMemory:
		backend = memory.New()
	default:
		path := cfg.Store.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		backend, err = sqlite.Open(path)
		if err != nil {
			return nil, err
		}
	}

	s, err := tables.Open(ctx, backend, store.WithLogger(logger))
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	states, err := views.NewStates()
	if err != nil {
		s.Close()
		return nil, err
	}

	return &project{root: root, cfg: cfg, logger: logger, store: s, states: states}, nil
}

func (p *project) Close() error {
	return p.store.Close()
}
