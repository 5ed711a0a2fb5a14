//go:build !cgo

package dolt

import (
	"context"
	"fmt"

	"github.com/steveyegge/issuetag/internal/storage"
)

var errNoCGO = fmt.Errorf("dolt: this binary was built without CGO support; rebuild with CGO_ENABLED=1")

// EmbeddedAvailable reports whether this binary can open embedded Dolt.
const EmbeddedAvailable = false

// openEmbedded returns an error in non-CGO builds; the embedded engine
// needs CGO. Server mode works without it.
func openEmbedded(_ context.Context, _ *Config) (*storage.Store, error) {
	return nil, fmt.Errorf("embedded mode requires CGO: %w\n\nTo use Dolt without CGO, connect to a dolt sql-server:\n  issuetag run --store-backend dolt-server", errNoCGO)
}
