// Package factory opens a storage backend by name.
package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/storage/dolt"
	"github.com/steveyegge/issuetag/internal/storage/sqlite"
)

// BackendFactory opens a store from options.
type BackendFactory func(ctx context.Context, opts Options) (*storage.Store, error)

var backendRegistry = make(map[string]BackendFactory)

// RegisterBackend registers a storage backend factory under name.
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configures how a backend is opened.
type Options struct {
	Backend string

	// Server backends
	DSN            string
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	TLS            bool
	ConnectTimeout time.Duration

	// Embedded Dolt directory or SQLite file
	Path string
}

func init() {
	server := func(plain bool) BackendFactory {
		return func(ctx context.Context, opts Options) (*storage.Store, error) {
			return dolt.Open(ctx, dolt.Config{
				ServerMode:     true,
				PlainMySQL:     plain,
				DSN:            opts.DSN,
				ServerHost:     opts.Host,
				ServerPort:     opts.Port,
				ServerUser:     opts.User,
				ServerPassword: opts.Password,
				ServerTLS:      opts.TLS,
				Database:       opts.Database,
				ConnectTimeout: opts.ConnectTimeout,
			})
		}
	}
	RegisterBackend(dolt.BackendServer, server(false))
	RegisterBackend(dolt.BackendMySQL, server(true))

	RegisterBackend(dolt.BackendEmbedded, func(ctx context.Context, opts Options) (*storage.Store, error) {
		return dolt.Open(ctx, dolt.Config{
			Path:     opts.Path,
			Database: opts.Database,
		})
	})

	RegisterBackend(sqlite.Backend, func(ctx context.Context, opts Options) (*storage.Store, error) {
		return sqlite.Open(ctx, opts.Path)
	})
}

// Open opens the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (*storage.Store, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Backend))
	if name == "" {
		name = dolt.BackendServer
	}
	factory, ok := backendRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", opts.Backend, strings.Join(Backends(), ", "))
	}
	return factory(ctx, opts)
}
