package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/spirits-ledger/gauge"
	"github.com/warp/spirits-ledger/inventory"
	"github.com/warp/spirits-ledger/store/sqlite"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newService(t *testing.T, s *sqlite.Store, opts ...inventory.Option) *inventory.Service {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	n := 0
	base := []inventory.Option{
		inventory.WithClock(func() time.Time { return now }),
		inventory.WithIDs(func() string { n++; return fmt.Sprintf("id-%03d", n) }),
	}
	return inventory.NewService(s, append(base, opts...)...)
}

func TestStore_ContainerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := newService(t, s)

	// GIVEN: a temperature-corrected fill
	_, err := svc.CreateContainer(ctx, inventory.CreateContainerRequest{
		ID: "b1", Name: "Barrel 1", Type: inventory.TypeBarrel, TareWeightLbs: d("120"),
		Fill: &inventory.FillSpec{
			Quantity:    gauge.ProofGallons(d("40")),
			Strength:    gauge.Strength{Proof: d("150"), TemperatureF: decimal.NewNullDecimal(d("60"))},
			ProductType: "Vodka",
		},
	})
	require.NoError(t, err)

	// WHEN: read back
	c, err := s.GetContainer(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, c)

	// THEN: every decimal survives exactly
	assert.Equal(t, "Barrel 1", c.Name)
	assert.Equal(t, inventory.StatusFilled, c.Status)
	assert.True(t, c.Fill.WineGallons.Equal(d("26.667")))
	assert.True(t, c.Fill.NetWeightLbs.Equal(d("187.12")))
	assert.True(t, c.Fill.GrossWeightLbs.Equal(d("307.12")))
	assert.True(t, c.Fill.SpiritDensity.Equal(d("7.017")))
	assert.True(t, c.Fill.ObservedProof.Valid)
	assert.True(t, c.Fill.TemperatureF.Decimal.Equal(d("60")))
	require.NotNil(t, c.Fill.FillDate)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), *c.Fill.FillDate)
	assert.Nil(t, c.Fill.EmptiedDate)
	assert.Equal(t, int64(1), c.Version)

	missing, err := s.GetContainer(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := newService(t, s)
	_, err := svc.CreateContainer(ctx, inventory.CreateContainerRequest{
		ID: "t1", Name: "Tote 1", Type: inventory.TypeTote, TareWeightLbs: d("150"),
	})
	require.NoError(t, err)

	c, err := s.GetContainer(ctx, "t1")
	require.NoError(t, err)

	// GIVEN: a write based on version 1 has already landed
	next := *c
	next.Version = 2
	next.Name = "Tote One"
	require.NoError(t, s.Commit(ctx, inventory.WriteSet{
		Containers: []inventory.ContainerWrite{{Container: next, Expected: 1}},
	}))

	// WHEN: a second writer also based on version 1 commits
	stale := *c
	stale.Version = 2
	stale.Name = "Tote Uno"
	err = s.Commit(ctx, inventory.WriteSet{
		Containers: []inventory.ContainerWrite{{Container: stale, Expected: 1}},
		Append:     []inventory.Entry{{ID: "e-stale", Type: inventory.EntrySampleAdjust, Timestamp: time.Now(), ContainerID: "t1"}},
	})

	// THEN: conflict, nothing from the second write persisted
	var ce *inventory.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(1), ce.Expected)
	assert.Equal(t, int64(2), ce.Actual)
	assert.True(t, inventory.IsRetryable(err))

	got, err := s.GetContainer(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Tote One", got.Name)
	e, err := s.GetEntry(ctx, "e-stale")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestStore_CommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := newService(t, s)
	_, err := svc.CreateContainer(ctx, inventory.CreateContainerRequest{
		ID: "t1", Name: "Tote 1", Type: inventory.TypeTote, TareWeightLbs: d("150"),
	})
	require.NoError(t, err)
	c, err := s.GetContainer(ctx, "t1")
	require.NoError(t, err)

	next := *c
	next.Version = 2
	next.Name = "Renamed"
	err = s.Commit(ctx, inventory.WriteSet{
		Containers: []inventory.ContainerWrite{{Container: next, Expected: 1}},
		Delete:     []inventory.EntryID{"missing"},
	})
	assert.True(t, inventory.IsNotFound(err))

	got, err := s.GetContainer(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Tote 1", got.Name)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_NamesUniqueAmongLiveContainers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := newService(t, s)
	create := func(id, name string) error {
		_, err := svc.CreateContainer(ctx, inventory.CreateContainerRequest{
			ID: inventory.ContainerID(id), Name: name, Type: inventory.TypeTote, TareWeightLbs: d("150"),
		})
		return err
	}

	require.NoError(t, create("a", "Tote A"))
	err := create("b", "tote a")
	assert.True(t, errors.Is(err, inventory.ErrValidation), "got %v", err)

	_, err = svc.DeleteContainer(ctx, "a")
	require.NoError(t, err)
	assert.NoError(t, create("c", "Tote A"), "retired names can be reused")

	live, err := s.ListContainers(ctx, inventory.ContainerFilter{})
	require.NoError(t, err)
	assert.Len(t, live, 1)
	all, err := s.ListContainers(ctx, inventory.ContainerFilter{IncludeRetired: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_EntriesNewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := newService(t, s)

	_, err := svc.CreateContainer(ctx, inventory.CreateContainerRequest{
		ID: "s", Name: "S", Type: inventory.TypeTank, TareWeightLbs: d("500"),
		Fill: &inventory.FillSpec{Quantity: gauge.ProofGallons(d("80")), Strength: gauge.AtProof(d("100")), ProductType: "Bourbon"},
	})
	require.NoError(t, err)
	_, err = svc.CreateContainer(ctx, inventory.CreateContainerRequest{
		ID: "d", Name: "D", Type: inventory.TypeBarrel, TareWeightLbs: d("100"),
	})
	require.NoError(t, err)
	res, err := svc.Transfer(ctx, inventory.TransferRequest{SourceID: "s", DestinationID: "d", Quantity: gauge.ProofGallons(d("30"))})
	require.NoError(t, err)

	// All four entries share one timestamp; insertion order breaks the tie.
	all, err := s.ListEntries(ctx, inventory.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, inventory.EntryTransferIn, all[0].Type)
	assert.Equal(t, inventory.EntryTransferOut, all[1].Type)
	assert.Equal(t, inventory.EntryCreateEmptyContainer, all[2].Type)
	assert.True(t, all[1].NetWeightLbsChange.Equal(d("-223.62")))

	mine, err := s.ListEntries(ctx, inventory.EntryFilter{ContainerID: "s"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	typed, err := s.ListEntries(ctx, inventory.EntryFilter{Types: []inventory.EntryType{inventory.EntryTransferIn, inventory.EntryTransferOut}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, res.Entries[1].ID, typed[0].ID)
}

func TestStore_SoftUndoReversalLookup(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := newService(t, s, inventory.WithUndoStrategy(inventory.SoftUndo{}))

	_, err := svc.CreateContainer(ctx, inventory.CreateContainerRequest{
		ID: "b", Name: "B", Type: inventory.TypeTote, TareWeightLbs: d("150"),
		Fill: &inventory.FillSpec{Quantity: gauge.NetWeight(d("300")), Strength: gauge.AtProof(d("100")), ProductType: "Rye"},
	})
	require.NoError(t, err)
	adj, err := svc.Adjust(ctx, inventory.AdjustRequest{ContainerID: "b", Quantity: gauge.NetWeight(d("50"))})
	require.NoError(t, err)
	sample := adj.Entries[0].ID

	_, err = svc.Undo(ctx, sample)
	require.NoError(t, err)

	rev, err := s.ReversalOf(ctx, sample)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, inventory.EntryUndoReversal, rev.Type)
	assert.True(t, rev.NetWeightLbsChange.Equal(d("50")))

	_, err = svc.Undo(ctx, sample)
	assert.True(t, errors.Is(err, inventory.ErrIneligible))

	report, err := svc.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Mismatches())
}

func TestStore_ProductsAndBatches(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := newService(t, s)

	p, err := svc.CreateProduct(ctx, "Gin", "London dry")
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, "GIN", "")
	assert.True(t, errors.Is(err, inventory.ErrValidation))

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "London dry", got.Description)

	b, err := svc.RecordFermentation(ctx, inventory.FermentationRequest{
		Name: "Mash 1", OriginalGravity: decimal.NewNullDecimal(d("1.065")),
	})
	require.NoError(t, err)
	stored, err := s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.OriginalGravity.Decimal.Equal(d("1.065")))
	assert.False(t, stored.FinalGravity.Valid)

	list, err := s.ListBatches(ctx, inventory.BatchDistillation)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Reset(ctx))
	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}
