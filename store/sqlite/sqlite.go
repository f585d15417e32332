/*
Package sqlite provides a SQLite-backed implementation of inventory.Store.

PURPOSE:
  Persists containers, products, production batches and the transaction log.
  Every orchestrator call lands as a single SQL transaction through Commit.

KEY TABLES:
  containers:         Current snapshot of each container (versioned)
  products:           Product catalog
  production_batches: Fermentation and distillation records
  log_entries:        Transaction log, one row per entry

INDEXES:
  - idx_containers_live_name: unique live container names (NOCASE)
  - idx_products_name:        unique product names (NOCASE)
  - idx_log_entries_container_time: per-container history (hot path)
  - idx_log_entries_reverses: undo lookups

OPTIMISTIC CONCURRENCY:
  Container updates are compare-and-set on the version column:
    UPDATE containers SET ... WHERE id = ? AND version = ?
  Zero rows affected means another writer got there first and the commit
  aborts with *inventory.ConflictError.

DECIMALS:
  Quantities are stored as TEXT so that values round-trip exactly.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := inventory.NewService(store)

SEE ALSO:
  - inventory/store.go: Store interface and commit contract
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/spirits-ledger/inventory"
)

// timeLayout is fixed-width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements inventory.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ inventory.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS containers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		tare_weight_lbs TEXT NOT NULL,
		status TEXT NOT NULL,
		product_type TEXT NOT NULL DEFAULT '',
		proof TEXT NOT NULL DEFAULT '0',
		observed_proof TEXT,
		temperature_f TEXT,
		fill_date TEXT,
		gross_weight_lbs TEXT NOT NULL DEFAULT '0',
		net_weight_lbs TEXT NOT NULL DEFAULT '0',
		wine_gallons TEXT NOT NULL DEFAULT '0',
		proof_gallons TEXT NOT NULL DEFAULT '0',
		spirit_density TEXT NOT NULL DEFAULT '0',
		account TEXT NOT NULL DEFAULT '',
		emptied_date TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		retired BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_containers_live_name
		ON containers(name COLLATE NOCASE) WHERE retired = 0;

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_products_name
		ON products(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS production_batches (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		date TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		start_volume_gallons TEXT,
		original_gravity TEXT,
		final_gravity TEXT,
		ingredients TEXT NOT NULL DEFAULT '',
		source_batch_id TEXT NOT NULL DEFAULT '',
		charge_container_id TEXT NOT NULL DEFAULT '',
		charge_proof TEXT,
		charge_proof_gallons TEXT,
		product_type TEXT NOT NULL DEFAULT '',
		yield_proof TEXT,
		yield_wine_gallons TEXT,
		yield_proof_gallons TEXT,
		receiver_container_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_kind_date
		ON production_batches(kind, date DESC);

	CREATE TABLE IF NOT EXISTS log_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		container_id TEXT NOT NULL DEFAULT '',
		container_name TEXT NOT NULL DEFAULT '',
		product_type TEXT NOT NULL DEFAULT '',
		proof TEXT NOT NULL DEFAULT '0',
		prior_proof TEXT,
		net_weight_lbs_change TEXT NOT NULL DEFAULT '0',
		proof_gallons_change TEXT NOT NULL DEFAULT '0',
		source_container_id TEXT NOT NULL DEFAULT '',
		source_container_name TEXT NOT NULL DEFAULT '',
		destination_container_id TEXT NOT NULL DEFAULT '',
		destination_container_name TEXT NOT NULL DEFAULT '',
		batch_id TEXT NOT NULL DEFAULT '',
		batch_name TEXT NOT NULL DEFAULT '',
		reverses_entry_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_log_entries_time
		ON log_entries(timestamp DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_log_entries_container_time
		ON log_entries(container_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_log_entries_reverses
		ON log_entries(reverses_entry_id) WHERE reverses_entry_id != '';
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// CONTAINERS
// =============================================================================

const containerColumns = `id, name, type, tare_weight_lbs, status, product_type, proof,
	observed_proof, temperature_f, fill_date, gross_weight_lbs, net_weight_lbs,
	wine_gallons, proof_gallons, spirit_density, account, emptied_date,
	version, retired, created_at, updated_at`

func (s *Store) GetContainer(ctx context.Context, id inventory.ContainerID) (*inventory.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+containerColumns+" FROM containers WHERE id = ?", id)
	c, err := scanContainer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListContainers(ctx context.Context, filter inventory.ContainerFilter) ([]inventory.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listContainers(ctx, s.db, filter)
}

func listContainers(ctx context.Context, q querier, filter inventory.ContainerFilter) ([]inventory.Container, error) {
	query := "SELECT " + containerColumns + " FROM containers WHERE 1=1"
	var args []any
	if !filter.IncludeRetired {
		query += " AND retired = 0"
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY name COLLATE NOCASE"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query containers: %w", err)
	}
	defer rows.Close()

	var result []inventory.Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanContainer(row scanner) (inventory.Container, error) {
	var (
		c                     inventory.Container
		fillDate, emptiedDate sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.TareWeightLbs, &c.Status, &c.Fill.ProductType, &c.Fill.Proof,
		&c.Fill.ObservedProof, &c.Fill.TemperatureF, &fillDate, &c.Fill.GrossWeightLbs, &c.Fill.NetWeightLbs,
		&c.Fill.WineGallons, &c.Fill.ProofGallons, &c.Fill.SpiritDensity, &c.Fill.Account, &emptiedDate,
		&c.Version, &c.Retired, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan container: %w", err)
	}
	c.Fill.FillDate = parseNullTime(fillDate)
	c.Fill.EmptiedDate = parseNullTime(emptiedDate)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func writeContainer(ctx context.Context, tx *sql.Tx, w inventory.ContainerWrite) error {
	c := w.Container
	if w.Create {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO containers (`+containerColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Type, c.TareWeightLbs, c.Status, c.Fill.ProductType, c.Fill.Proof,
			c.Fill.ObservedProof, c.Fill.TemperatureF, formatNullTime(c.Fill.FillDate),
			c.Fill.GrossWeightLbs, c.Fill.NetWeightLbs, c.Fill.WineGallons, c.Fill.ProofGallons,
			c.Fill.SpiritDensity, c.Fill.Account, formatNullTime(c.Fill.EmptiedDate),
			c.Version, c.Retired, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		)
		if isUniqueConstraintError(err) {
			return &inventory.ValidationError{Op: "commit", Field: "id", Reason: "container " + string(c.ID) + " already exists"}
		}
		if err != nil {
			return fmt.Errorf("failed to insert container: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE containers SET
			name = ?, type = ?, tare_weight_lbs = ?, status = ?, product_type = ?, proof = ?,
			observed_proof = ?, temperature_f = ?, fill_date = ?, gross_weight_lbs = ?,
			net_weight_lbs = ?, wine_gallons = ?, proof_gallons = ?, spirit_density = ?,
			account = ?, emptied_date = ?, version = ?, retired = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		c.Name, c.Type, c.TareWeightLbs, c.Status, c.Fill.ProductType, c.Fill.Proof,
		c.Fill.ObservedProof, c.Fill.TemperatureF, formatNullTime(c.Fill.FillDate), c.Fill.GrossWeightLbs,
		c.Fill.NetWeightLbs, c.Fill.WineGallons, c.Fill.ProofGallons, c.Fill.SpiritDensity,
		c.Fill.Account, formatNullTime(c.Fill.EmptiedDate), c.Version, c.Retired, formatTime(c.UpdatedAt),
		c.ID, w.Expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update container: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var actual int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM containers WHERE id = ?", c.ID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return &inventory.NotFoundError{Kind: "container", ID: string(c.ID)}
	}
	if err != nil {
		return err
	}
	return &inventory.ConflictError{ContainerID: c.ID, Expected: w.Expected, Actual: actual}
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p inventory.Product
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM products WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProducts(ctx, s.db)
}

func listProducts(ctx context.Context, q querier) ([]inventory.Product, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, description, created_at FROM products ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var result []inventory.Product
	for rows.Next() {
		var p inventory.Product
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

func writeProduct(ctx context.Context, tx *sql.Tx, w inventory.ProductWrite) error {
	p := w.Product
	var (
		res sql.Result
		err error
	)
	switch {
	case w.Delete:
		res, err = tx.ExecContext(ctx, "DELETE FROM products WHERE id = ?", p.ID)
	case w.Create:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO products (id, name, description, created_at) VALUES (?, ?, ?, ?)",
			p.ID, p.Name, p.Description, formatTime(p.CreatedAt))
		if isUniqueConstraintError(err) {
			return &inventory.ValidationError{Op: "commit", Field: "name", Reason: fmt.Sprintf("product %q already exists", p.Name)}
		}
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
		return nil
	default:
		res, err = tx.ExecContext(ctx, "UPDATE products SET name = ?, description = ? WHERE id = ?",
			p.Name, p.Description, p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to write product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: "product", ID: string(p.ID)}
	}
	return nil
}

// =============================================================================
// PRODUCTION BATCHES
// =============================================================================

const batchColumns = `id, name, kind, date, notes, start_volume_gallons, original_gravity,
	final_gravity, ingredients, source_batch_id, charge_container_id, charge_proof,
	charge_proof_gallons, product_type, yield_proof, yield_wine_gallons,
	yield_proof_gallons, receiver_container_id, created_at`

func (s *Store) GetBatch(ctx context.Context, id inventory.BatchID) (*inventory.ProductionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+batchColumns+" FROM production_batches WHERE id = ?", id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBatches(ctx context.Context, kind inventory.BatchKind) ([]inventory.ProductionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + batchColumns + " FROM production_batches"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var result []inventory.ProductionBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func scanBatch(row scanner) (inventory.ProductionBatch, error) {
	var (
		b               inventory.ProductionBatch
		date, createdAt string
	)
	err := row.Scan(
		&b.ID, &b.Name, &b.Kind, &date, &b.Notes, &b.StartVolumeGallons, &b.OriginalGravity,
		&b.FinalGravity, &b.Ingredients, &b.SourceBatchID, &b.ChargeContainerID, &b.ChargeProof,
		&b.ChargeProofGallons, &b.ProductType, &b.YieldProof, &b.YieldWineGallons,
		&b.YieldProofGallons, &b.ReceiverContainerID, &createdAt,
	)
	if err != nil {
		return b, err
	}
	b.Date = parseTime(date)
	b.CreatedAt = parseTime(createdAt)
	return b, nil
}

func writeBatch(ctx context.Context, tx *sql.Tx, b inventory.ProductionBatch) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO production_batches (`+batchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Kind, formatTime(b.Date), b.Notes, b.StartVolumeGallons, b.OriginalGravity,
		b.FinalGravity, b.Ingredients, b.SourceBatchID, b.ChargeContainerID, b.ChargeProof,
		b.ChargeProofGallons, b.ProductType, b.YieldProof, b.YieldWineGallons,
		b.YieldProofGallons, b.ReceiverContainerID, formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

const entryColumns = `id, type, timestamp, container_id, container_name, product_type, proof,
	prior_proof, net_weight_lbs_change, proof_gallons_change, source_container_id,
	source_container_name, destination_container_id, destination_container_name,
	batch_id, batch_name, reverses_entry_id, notes`

func (s *Store) GetEntry(ctx context.Context, id inventory.EntryID) (*inventory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oneEntry(ctx, "SELECT "+entryColumns+" FROM log_entries WHERE id = ?", id)
}

func (s *Store) ReversalOf(ctx context.Context, id inventory.EntryID) (*inventory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oneEntry(ctx, "SELECT "+entryColumns+" FROM log_entries WHERE reverses_entry_id = ? AND type = ? LIMIT 1",
		id, inventory.EntryUndoReversal)
}

func (s *Store) oneEntry(ctx context.Context, query string, args ...any) (*inventory.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEntries returns matches newest first; entries written together keep
// reverse insertion order.
func (s *Store) ListEntries(ctx context.Context, filter inventory.EntryFilter) ([]inventory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + entryColumns + " FROM log_entries WHERE 1=1"
	var args []any
	if filter.ContainerID != "" {
		query += " AND container_id = ?"
		args = append(args, filter.ContainerID)
	}
	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, formatTime(*filter.Since))
	}
	if len(filter.Types) > 0 {
		query += " AND type IN (?" + strings.Repeat(", ?", len(filter.Types)-1) + ")"
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	query += " ORDER BY timestamp DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var result []inventory.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func scanEntry(row scanner) (inventory.Entry, error) {
	var (
		e  inventory.Entry
		ts string
	)
	err := row.Scan(
		&e.ID, &e.Type, &ts, &e.ContainerID, &e.ContainerName, &e.ProductType, &e.Proof,
		&e.PriorProof, &e.NetWeightLbsChange, &e.ProofGallonsChange, &e.SourceContainerID,
		&e.SourceContainerName, &e.DestinationContainerID, &e.DestinationContainerName,
		&e.BatchID, &e.BatchName, &e.ReversesEntryID, &e.Notes,
	)
	if err != nil {
		return e, err
	}
	e.Timestamp = parseTime(ts)
	return e, nil
}

func appendEntry(ctx context.Context, tx *sql.Tx, e inventory.Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO log_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, formatTime(e.Timestamp), e.ContainerID, e.ContainerName, e.ProductType, e.Proof,
		e.PriorProof, e.NetWeightLbsChange, e.ProofGallonsChange, e.SourceContainerID,
		e.SourceContainerName, e.DestinationContainerID, e.DestinationContainerName,
		e.BatchID, e.BatchName, e.ReversesEntryID, e.Notes,
	)
	if isUniqueConstraintError(err) {
		return &inventory.ValidationError{Op: "commit", Field: "id", Reason: "log entry " + string(e.ID) + " already exists"}
	}
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func deleteEntry(ctx context.Context, tx *sql.Tx, id inventory.EntryID) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM log_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete log entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: "log entry", ID: string(id)}
	}
	return nil
}

// =============================================================================
// COMMIT
// =============================================================================

// Commit applies ws in one SQL transaction.
func (s *Store) Commit(ctx context.Context, ws inventory.WriteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	live, err := listContainers(ctx, tx, inventory.ContainerFilter{})
	if err != nil {
		return err
	}
	products, err := listProducts(ctx, tx)
	if err != nil {
		return err
	}
	if err := ws.CheckNames(live, products); err != nil {
		return err
	}

	for _, w := range ws.Containers {
		if err := writeContainer(ctx, tx, w); err != nil {
			return err
		}
	}
	for _, w := range ws.Products {
		if err := writeProduct(ctx, tx, w); err != nil {
			return err
		}
	}
	for _, b := range ws.Batches {
		if err := writeBatch(ctx, tx, b); err != nil {
			return err
		}
	}
	for _, id := range ws.Delete {
		if err := deleteEntry(ctx, tx, id); err != nil {
			return err
		}
	}
	for _, e := range ws.Append {
		if err := appendEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"log_entries", "production_batches", "products", "containers"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
