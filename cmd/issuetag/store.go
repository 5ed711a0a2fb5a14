package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/steveyegge/issuetag/internal/config"
	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/storage/factory"
	"github.com/steveyegge/issuetag/internal/tags"
	"github.com/steveyegge/issuetag/internal/telemetry"
)

// loadSettings reads the merged configuration.
func loadSettings() (*config.Settings, error) {
	s, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}

// openStore opens the configured backend with statement telemetry installed.
func openStore(ctx context.Context, s *config.Settings) (*storage.Store, error) {
	store, err := factory.Open(ctx, factory.Options{
		Backend:        s.Store.Backend,
		DSN:            s.Store.DSN,
		Host:           s.Store.Host,
		Port:           s.Store.Port,
		User:           s.Store.User,
		Password:       s.Store.Password,
		Database:       s.Store.Database,
		TLS:            s.Store.TLS,
		ConnectTimeout: s.Store.ConnectTimeout,
		Path:           s.Store.Path,
	})
	if err != nil {
		return nil, err
	}
	if wrap := telemetry.ExecWrapper(store.Name()); wrap != nil {
		store.SetExecWrapper(wrap)
	}
	return store, nil
}

// loadRules reads the include and exclude rule files.
func loadRules(s *config.Settings) (*tags.RuleSet, error) {
	rs, err := tags.LoadRuleSet(s.Tags.IncludePath, s.Tags.ExcludePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (set tags.include or pass --include)", err)
		}
		return nil, err
	}
	return rs, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		WarnError("close %s store: %v", store.Name(), err)
	}
}
