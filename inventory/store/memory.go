// Package store provides an in-memory inventory.Store.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/spirits-ledger/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	containers map[inventory.ContainerID]inventory.Container
	products   map[inventory.ProductID]inventory.Product
	batches    map[inventory.BatchID]inventory.ProductionBatch
	entries    []inventory.Entry // insertion order
	failNext   error
}

var _ inventory.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		containers: make(map[inventory.ContainerID]inventory.Container),
		products:   make(map[inventory.ProductID]inventory.Product),
		batches:    make(map[inventory.BatchID]inventory.ProductionBatch),
	}
}

// FailNextCommit makes the next Commit return err without writing anything.
func (m *Memory) FailNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) GetContainer(_ context.Context, id inventory.ContainerID) (*inventory.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.containers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListContainers(_ context.Context, filter inventory.ContainerFilter) ([]inventory.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []inventory.Container
	for _, c := range m.containers {
		if c.Retired && !filter.IncludeRetired {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

func (m *Memory) GetProduct(_ context.Context, id inventory.ProductID) (*inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.productsLocked(), nil
}

func (m *Memory) productsLocked() []inventory.Product {
	result := make([]inventory.Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result
}

func (m *Memory) GetBatch(_ context.Context, id inventory.BatchID) (*inventory.ProductionBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ListBatches(_ context.Context, kind inventory.BatchKind) ([]inventory.ProductionBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []inventory.ProductionBatch
	for _, b := range m.batches {
		if kind == "" || b.Kind == kind {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (m *Memory) GetEntry(_ context.Context, id inventory.EntryID) (*inventory.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, nil
}

// ListEntries returns matches newest first; equal timestamps keep reverse
// insertion order.
func (m *Memory) ListEntries(_ context.Context, filter inventory.EntryFilter) ([]inventory.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []inventory.Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if filter.Matches(m.entries[i]) {
			result = append(result, m.entries[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *Memory) ReversalOf(_ context.Context, id inventory.EntryID) (*inventory.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.Type == inventory.EntryUndoReversal && e.ReversesEntryID == id {
			return &e, nil
		}
	}
	return nil, nil
}

// =============================================================================
// COMMIT
// =============================================================================

// Commit applies ws atomically. It is simulated with a snapshot and a
// restore on error.
func (m *Memory) Commit(_ context.Context, ws inventory.WriteSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}

	snapshot := m.snapshot()
	if err := m.applyLocked(ws); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) applyLocked(ws inventory.WriteSet) error {
	var live []inventory.Container
	for _, c := range m.containers {
		if !c.Retired {
			live = append(live, c)
		}
	}
	if err := ws.CheckNames(live, m.productsLocked()); err != nil {
		return err
	}

	for _, w := range ws.Containers {
		cur, exists := m.containers[w.Container.ID]
		if w.Create {
			if exists {
				return &inventory.ValidationError{Op: "commit", Field: "id", Reason: "container " + string(w.Container.ID) + " already exists"}
			}
		} else {
			if !exists {
				return &inventory.NotFoundError{Kind: "container", ID: string(w.Container.ID)}
			}
			if cur.Version != w.Expected {
				return &inventory.ConflictError{ContainerID: cur.ID, Expected: w.Expected, Actual: cur.Version}
			}
		}
		m.containers[w.Container.ID] = w.Container
	}

	for _, w := range ws.Products {
		_, exists := m.products[w.Product.ID]
		switch {
		case w.Delete:
			if !exists {
				return &inventory.NotFoundError{Kind: "product", ID: string(w.Product.ID)}
			}
			delete(m.products, w.Product.ID)
		case !w.Create && !exists:
			return &inventory.NotFoundError{Kind: "product", ID: string(w.Product.ID)}
		default:
			m.products[w.Product.ID] = w.Product
		}
	}

	for _, b := range ws.Batches {
		m.batches[b.ID] = b
	}

	for _, id := range ws.Delete {
		i := m.indexOf(id)
		if i < 0 {
			return &inventory.NotFoundError{Kind: "log entry", ID: string(id)}
		}
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
	}
	for _, e := range ws.Append {
		if m.indexOf(e.ID) >= 0 {
			return &inventory.ValidationError{Op: "commit", Field: "id", Reason: "log entry " + string(e.ID) + " already exists"}
		}
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *Memory) indexOf(id inventory.EntryID) int {
	for i, e := range m.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

type memorySnapshot struct {
	containers map[inventory.ContainerID]inventory.Container
	products   map[inventory.ProductID]inventory.Product
	batches    map[inventory.BatchID]inventory.ProductionBatch
	entries    []inventory.Entry
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		containers: make(map[inventory.ContainerID]inventory.Container, len(m.containers)),
		products:   make(map[inventory.ProductID]inventory.Product, len(m.products)),
		batches:    make(map[inventory.BatchID]inventory.ProductionBatch, len(m.batches)),
		entries:    append([]inventory.Entry{}, m.entries...),
	}
	for k, v := range m.containers {
		s.containers[k] = v
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.batches {
		s.batches[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.containers = s.containers
	m.products = s.products
	m.batches = s.batches
	m.entries = s.entries
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restore(memorySnapshot{
		containers: make(map[inventory.ContainerID]inventory.Container),
		products:   make(map[inventory.ProductID]inventory.Product),
		batches:    make(map[inventory.BatchID]inventory.ProductionBatch),
	})
	return nil
}
