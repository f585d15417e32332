/*
store.go - Persistence contract for containers, products and the log

PURPOSE:
  Defines what the orchestrators need from a database. Reads are plain
  lookups; every write goes through Commit with a WriteSet so that container
  snapshots and their log entries land together or not at all.

COMMIT CONTRACT:
  - All-or-nothing: any failure leaves the store unchanged.
  - Version check: each ContainerWrite names the version it was derived
    from. A mismatch aborts the commit with *ConflictError.
  - Names: live (non-retired) container names and product names are unique,
    compared case-insensitively. A clash aborts with *ValidationError.
  - Deleting an entry that does not exist aborts with *NotFoundError.

LOOKUPS:
  Get* methods return (nil, nil) when the record does not exist.

IMPLEMENTATIONS:
  - inventory/store/memory.go: in-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite
*/
package inventory

import (
	"context"
	"time"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	GetContainer(ctx context.Context, id ContainerID) (*Container, error)
	ListContainers(ctx context.Context, filter ContainerFilter) ([]Container, error)

	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	GetBatch(ctx context.Context, id BatchID) (*ProductionBatch, error)
	ListBatches(ctx context.Context, kind BatchKind) ([]ProductionBatch, error)

	GetEntry(ctx context.Context, id EntryID) (*Entry, error)
	// ListEntries returns entries newest first.
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	// ReversalOf returns the UNDO_REVERSAL entry pointing at id, if any.
	ReversalOf(ctx context.Context, id EntryID) (*Entry, error)

	Commit(ctx context.Context, ws WriteSet) error
}

type ContainerFilter struct {
	IncludeRetired bool
	Status         Status
}

type EntryFilter struct {
	ContainerID ContainerID
	Types       []EntryType
	Since       *time.Time
	Limit       int
}

// Matches reports whether e passes the filter, ignoring Limit.
func (f EntryFilter) Matches(e Entry) bool {
	if f.ContainerID != "" && e.ContainerID != f.ContainerID {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// =============================================================================
// WRITE SET
// =============================================================================

// WriteSet is everything one orchestrator call changes.
type WriteSet struct {
	Containers []ContainerWrite
	Products   []ProductWrite
	Batches    []ProductionBatch
	Append     []Entry
	Delete     []EntryID
}

// ContainerWrite stores Container if the persisted version still equals
// Expected. Create skips the check and requires the id to be new.
type ContainerWrite struct {
	Container Container
	Expected  int64
	Create    bool
}

type ProductWrite struct {
	Product Product
	Create  bool
	Delete  bool
}

// IsEmpty reports whether committing ws would change nothing.
func (ws WriteSet) IsEmpty() bool {
	return len(ws.Containers) == 0 && len(ws.Products) == 0 && len(ws.Batches) == 0 &&
		len(ws.Append) == 0 && len(ws.Delete) == 0
}

// CheckNames validates name uniqueness for the containers and products in ws
// against the current live records. Stores call it inside their commit.
func (ws WriteSet) CheckNames(live []Container, products []Product) error {
	written := map[ContainerID]bool{}
	for _, w := range ws.Containers {
		written[w.Container.ID] = true
	}
	for i, w := range ws.Containers {
		if w.Container.Retired {
			continue
		}
		for _, c := range live {
			if c.ID != w.Container.ID && !written[c.ID] && sameName(c.Name, w.Container.Name) {
				return invalid("commit", "name", "container name %q is already in use", w.Container.Name)
			}
		}
		for _, o := range ws.Containers[i+1:] {
			if !o.Container.Retired && sameName(o.Container.Name, w.Container.Name) {
				return invalid("commit", "name", "container name %q is already in use", w.Container.Name)
			}
		}
	}
	for _, w := range ws.Products {
		if w.Delete {
			continue
		}
		for _, p := range products {
			if p.ID != w.Product.ID && sameName(p.Name, w.Product.Name) {
				return invalid("commit", "name", "product %q already exists", w.Product.Name)
			}
		}
	}
	return nil
}
