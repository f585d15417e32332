/*
Package app wires the ledger's collaborators from configuration.

PURPOSE:
  cmd/server and cmd/ledgerctl both need the same store, catalog and service
  built the same way. Open does that once.

STARTUP SEQUENCE:
  1. Load the catalog (embedded default or CATALOG_PATH)
  2. Open the SQLite store at DB_PATH
  3. Build the inventory service with catalog, undo and notifier options

SEE ALSO:
  - internal/config: environment variables
  - cmd/server/main.go: HTTP server
  - cmd/ledgerctl: operator CLI
*/
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/warp/spirits-ledger/catalog"
	"github.com/warp/spirits-ledger/internal/config"
	"github.com/warp/spirits-ledger/inventory"
	"github.com/warp/spirits-ledger/store/sqlite"
)

// App is an opened ledger.
type App struct {
	Store   *sqlite.Store
	Catalog *catalog.Catalog
	Service *inventory.Service
}

// Open builds the ledger. extra options are applied last.
func Open(cfg config.Config, log zerolog.Logger, extra ...inventory.Option) (*App, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	undo, err := cfg.ServiceOptions()
	if err != nil {
		return nil, err
	}
	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}

	opts := append(cat.Options(), undo...)
	opts = append(opts, inventory.WithLogger(log))
	opts = append(opts, extra...)

	return &App{
		Store:   st,
		Catalog: cat,
		Service: inventory.NewService(st, opts...),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
