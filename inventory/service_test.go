package inventory_test

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
	"github.com/warp/spirits-ledger/inventory/store"
)

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	svc *inventory.Service
	mem *store.Memory
	now time.Time
	ctx context.Context
}

func newFixture(t *testing.T, opts ...inventory.Option) *fixture {
	t.Helper()
	f := &fixture{
		mem: store.NewMemory(),
		now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		ctx: context.Background(),
	}
	n := 0
	base := []inventory.Option{
		inventory.WithClock(func() time.Time { return f.now }),
		inventory.WithIDs(func() string { n++; return fmt.Sprintf("id-%03d", n) }),
		inventory.WithCapacities(inventory.Capacities{
			inventory.TypeBarrel: d("53"),
			inventory.TypeTote:   d("275"),
			inventory.TypeTank:   d("1000"),
		}),
	}
	f.svc = inventory.NewService(f.mem, append(base, opts...)...)
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func assertNear(t *testing.T, want string, got decimal.Decimal, tol string) {
	t.Helper()
	assert.True(t, d(want).Sub(got).Abs().LessThanOrEqual(d(tol)), "want %s±%s got %s", want, tol, got)
}

// filled creates a filled container and returns it.
func (f *fixture) filled(t *testing.T, id, typ string, tare string, q gauge.Quantity, proof string, product string) inventory.Container {
	t.Helper()
	res, err := f.svc.CreateContainer(f.ctx, inventory.CreateContainerRequest{
		ID:            inventory.ContainerID(id),
		Name:          id,
		Type:          inventory.ContainerType(typ),
		TareWeightLbs: d(tare),
		Fill: &inventory.FillSpec{
			Quantity:    q,
			Strength:    gauge.AtProof(d(proof)),
			ProductType: product,
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Containers, 1)
	return res.Containers[0]
}

func (f *fixture) empty(t *testing.T, id, typ, tare string) inventory.Container {
	t.Helper()
	res, err := f.svc.CreateContainer(f.ctx, inventory.CreateContainerRequest{
		ID:            inventory.ContainerID(id),
		Name:          id,
		Type:          inventory.ContainerType(typ),
		TareWeightLbs: d(tare),
	})
	require.NoError(t, err)
	return res.Containers[0]
}

func (f *fixture) get(t *testing.T, id string) inventory.Container {
	t.Helper()
	c, err := f.svc.Container(f.ctx, inventory.ContainerID(id))
	require.NoError(t, err)
	return *c
}

func (f *fixture) log(t *testing.T, id string) []inventory.Entry {
	t.Helper()
	entries, err := f.svc.Entries(f.ctx, inventory.EntryFilter{ContainerID: inventory.ContainerID(id)})
	require.NoError(t, err)
	return entries
}

func (f *fixture) assertStatusInvariant(t *testing.T) {
	t.Helper()
	all, err := f.svc.Containers(f.ctx, inventory.ContainerFilter{IncludeRetired: true})
	require.NoError(t, err)
	for _, c := range all {
		emptyByWeight := c.Fill.NetWeightLbs.LessThanOrEqual(gauge.Tolerance)
		assert.Equal(t, emptyByWeight, c.Status == inventory.StatusEmpty, "status invariant on %s", c.Name)
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateContainer_Filled(t *testing.T) {
	// GIVEN: tare 100 and a gross reading of 400 at 100 proof
	// WHEN: creating a filled barrel
	// THEN: net 300, about 40.247 wine and proof gallons, one opening entry
	f := newFixture(t)
	c := f.filled(t, "B1", "barrel", "100", gauge.GrossWeight(d("400")), "100", "Bourbon")

	assert.Equal(t, inventory.StatusFilled, c.Status)
	assertDec(t, "300", c.Fill.NetWeightLbs)
	assertDec(t, "40.247", c.Fill.WineGallons)
	assertDec(t, "40.247", c.Fill.ProofGallons)
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, inventory.AccountStorage, c.Fill.Account)

	entries := f.log(t, "B1")
	require.Len(t, entries, 1)
	assert.Equal(t, inventory.EntryCreateFilledContainer, entries[0].Type)
	assertDec(t, "300", entries[0].NetWeightLbsChange)
	assert.Equal(t, f.now, entries[0].Timestamp)
}

func TestCreateContainer_Empty(t *testing.T) {
	f := newFixture(t)
	c := f.empty(t, "T1", "tote", "150")

	assert.Equal(t, inventory.StatusEmpty, c.Status)
	assertDec(t, "150", c.Fill.GrossWeightLbs)
	entries := f.log(t, "T1")
	require.Len(t, entries, 1)
	assert.Equal(t, inventory.EntryCreateEmptyContainer, entries[0].Type)
}

func TestCreateContainer_Validation(t *testing.T) {
	f := newFixture(t)
	f.empty(t, "Barrel 1", "barrel", "100")

	tests := []struct {
		name string
		req  inventory.CreateContainerRequest
		want string
	}{
		{"duplicate name ignores case", inventory.CreateContainerRequest{Name: "barrel 1", Type: "barrel", TareWeightLbs: d("100")}, "already in use"},
		{"missing name", inventory.CreateContainerRequest{Type: "barrel", TareWeightLbs: d("100")}, "name is required"},
		{"unknown type", inventory.CreateContainerRequest{Name: "X", Type: "bucket", TareWeightLbs: d("100")}, "unknown container type"},
		{"zero tare", inventory.CreateContainerRequest{Name: "X", Type: "barrel", TareWeightLbs: d("0")}, "tare weight"},
		{"proof out of range", inventory.CreateContainerRequest{Name: "X", Type: "barrel", TareWeightLbs: d("100"),
			Fill: &inventory.FillSpec{Quantity: gauge.NetWeight(d("50")), Strength: gauge.AtProof(d("201")), ProductType: "Rum"}}, "between 0 and 200"},
		{"over capacity", inventory.CreateContainerRequest{Name: "X", Type: "barrel", TareWeightLbs: d("100"),
			Fill: &inventory.FillSpec{Quantity: gauge.WineGallons(d("60")), Strength: gauge.AtProof(d("100")), ProductType: "Rum"}}, "exceeds"},
		{"missing product", inventory.CreateContainerRequest{Name: "X", Type: "barrel", TareWeightLbs: d("100"),
			Fill: &inventory.FillSpec{Quantity: gauge.NetWeight(d("50")), Strength: gauge.AtProof(d("100"))}}, "product type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateContainer(f.ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, inventory.ErrValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCreateContainer_TemperatureCorrectedAtInput(t *testing.T) {
	// GIVEN: an engine whose table corrects 100 proof at 70°F by -2.4
	// WHEN: creating a container from a reading taken at 69°F
	// THEN: the fill stores true proof 97.6 and keeps the observed reading
	f := newFixture(t, inventory.WithGauge(gauge.Engine{Corrections: gauge.CorrectionTable{70: {100: d("-2.4")}}}))

	res, err := f.svc.CreateContainer(f.ctx, inventory.CreateContainerRequest{
		ID: "T1", Name: "T1", Type: "tank", TareWeightLbs: d("500"),
		Fill: &inventory.FillSpec{
			Quantity:    gauge.NetWeight(d("300")),
			Strength:    gauge.Observed(d("100"), d("69")),
			ProductType: "Vodka",
		},
	})
	require.NoError(t, err)
	c := res.Containers[0]

	assertDec(t, "97.6", c.Fill.Proof)
	require.True(t, c.Fill.ObservedProof.Valid)
	assertDec(t, "100", c.Fill.ObservedProof.Decimal)
	assertDec(t, "69", c.Fill.TemperatureF.Decimal)
	assertDec(t, gauge.FromNetWeight(d("300"), d("97.6"), d("500")).ProofGallons.String(), c.Fill.ProofGallons)
	assertDec(t, "97.6", res.Entries[0].Proof)
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImportContainers_ReportsRowErrorsAndCommitsRest(t *testing.T) {
	// GIVEN: four rows, one duplicating an earlier row's name and one with no tare
	// WHEN: importing
	// THEN: two containers are created in one write set with a summary entry
	f := newFixture(t)
	rows := []inventory.CreateContainerRequest{
		{Name: "Tote A", Type: "tote", TareWeightLbs: d("150")},
		{Name: "TOTE A", Type: "tote", TareWeightLbs: d("150")},
		{Name: "Tote B", Type: "tote", TareWeightLbs: d("0")},
		{Name: "Tote C", Type: "tote", TareWeightLbs: d("150"), Fill: &inventory.FillSpec{
			Quantity: gauge.WineGallons(d("100")), Strength: gauge.AtProof(d("120")), ProductType: "Rye",
		}},
	}

	res, err := f.svc.ImportContainers(f.ctx, rows)
	require.NoError(t, err)

	assert.Len(t, res.Created, 2)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, 3, res.Errors[1].Row)
	assert.Contains(t, res.Errors[0].Reason, "already in use")

	all, err := f.svc.Entries(f.ctx, inventory.EntryFilter{})
	require.NoError(t, err)
	types := map[inventory.EntryType]int{}
	for _, e := range all {
		types[e.Type]++
	}
	assert.Equal(t, 1, types[inventory.EntryCreateBulkContainers])
	assert.Equal(t, 1, types[inventory.EntryCreateEmptyContainer])
	assert.Equal(t, 1, types[inventory.EntryCreateFilledContainer])
}

func TestImportContainers_AllInvalid(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ImportContainers(f.ctx, []inventory.CreateContainerRequest{{Name: "", Type: "tote"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, inventory.ErrValidation))
	assert.Len(t, res.Errors, 1)
}

func TestImportQuantity_Precedence(t *testing.T) {
	null := decimal.NullDecimal{}
	some := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

	q, ok := inventory.ImportQuantity(some("400"), some("300"), null, null)
	require.True(t, ok)
	assert.Equal(t, gauge.UnitGrossPounds, q.Unit)

	q, ok = inventory.ImportQuantity(some("0"), null, some("40"), some("40"))
	require.True(t, ok)
	assert.Equal(t, gauge.UnitWineGallons, q.Unit)

	_, ok = inventory.ImportQuantity(null, null, null, null)
	assert.False(t, ok)
}

// =============================================================================
// FILL (refill / edit)
// =============================================================================

func TestFill_Classification(t *testing.T) {
	f := newFixture(t)
	f.empty(t, "B1", "barrel", "100")
	spec := func(net string) inventory.FillSpec {
		return inventory.FillSpec{Quantity: gauge.NetWeight(d(net)), Strength: gauge.AtProof(d("120")), ProductType: "Rye"}
	}

	res, err := f.svc.Fill(f.ctx, inventory.FillRequest{ContainerID: "B1", Mode: inventory.FillRefill, FillSpec: spec("200")})
	require.NoError(t, err)
	assert.Equal(t, inventory.EntryRefillContainer, res.Entries[0].Type)
	assertDec(t, "200", res.Entries[0].NetWeightLbsChange)

	_, err = f.svc.Fill(f.ctx, inventory.FillRequest{ContainerID: "B1", Mode: inventory.FillRefill, FillSpec: spec("10")})
	assert.True(t, errors.Is(err, inventory.ErrValidation), "refill of a filled container")

	res, err = f.svc.Fill(f.ctx, inventory.FillRequest{ContainerID: "B1", Mode: inventory.FillEdit, FillSpec: spec("180")})
	require.NoError(t, err)
	assert.Equal(t, inventory.EntryEditFillDataCorrection, res.Entries[0].Type)
	assertDec(t, "-20", res.Entries[0].NetWeightLbsChange)
	assertDec(t, "120", res.Entries[0].PriorProof.Decimal)

	res, err = f.svc.Fill(f.ctx, inventory.FillRequest{ContainerID: "B1", Mode: inventory.FillEdit, FillSpec: spec("0")})
	require.NoError(t, err)
	assert.Equal(t, inventory.EntryEditEmptyFromFilled, res.Entries[0].Type)
	assert.Equal(t, inventory.StatusEmpty, res.Containers[0].Status)
	assert.True(t, res.Containers[0].Fill.Proof.IsZero())

	res, err = f.svc.Fill(f.ctx, inventory.FillRequest{ContainerID: "B1", Mode: inventory.FillEdit, FillSpec: spec("50")})
	require.NoError(t, err)
	assert.Equal(t, inventory.EntryEditFillFromEmpty, res.Entries[0].Type)

	f.assertStatusInvariant(t)
}

// =============================================================================
// ADJUST
// =============================================================================

func TestAdjust_RemovalBounded(t *testing.T) {
	f := newFixture(t)
	f.filled(t, "T1", "tank", "500", gauge.NetWeight(d("200")), "100", "Gin")

	_, err := f.svc.Adjust(f.ctx, inventory.AdjustRequest{ContainerID: "T1", Quantity: gauge.NetWeight(d("250"))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot remove > 200.00 lbs")

	res, err := f.svc.Adjust(f.ctx, inventory.AdjustRequest{ContainerID: "T1", Quantity: gauge.NetWeight(d("50"))})
	require.NoError(t, err)
	assertDec(t, "150", res.Containers[0].Fill.NetWeightLbs)
	assertDec(t, "-50", res.Entries[0].NetWeightLbsChange)
	assert.Equal(t, inventory.EntrySampleAdjust, res.Entries[0].Type)

	res, err = f.svc.Adjust(f.ctx, inventory.AdjustRequest{ContainerID: "T1", Quantity: gauge.NetWeight(d("25")), Addition: true})
	require.NoError(t, err)
	assertDec(t, "175", res.Containers[0].Fill.NetWeightLbs)
}

func TestAdjust_RemovingEverythingEmpties(t *testing.T) {
	f := newFixture(t)
	c := f.filled(t, "T1", "tank", "500", gauge.ProofGallons(d("10")), "100", "Gin")

	res, err := f.svc.Adjust(f.ctx, inventory.AdjustRequest{ContainerID: "T1", Quantity: gauge.ProofGallons(d("10"))})
	require.NoError(t, err)

	assert.Equal(t, inventory.StatusEmpty, res.Containers[0].Status)
	assert.True(t, res.Entries[0].NetWeightLbsChange.Equal(c.Fill.NetWeightLbs.Neg()))
}

func TestAdjust_AdditionOverCapacity(t *testing.T) {
	f := newFixture(t)
	f.filled(t, "B1", "barrel", "100", gauge.WineGallons(d("50")), "100", "Gin")

	_, err := f.svc.Adjust(f.ctx, inventory.AdjustRequest{ContainerID: "B1", Quantity: gauge.WineGallons(d("5")), Addition: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

// =============================================================================
// CONTAINER LIFECYCLE
// =============================================================================

func TestDeleteContainer_RetiresAndLogs(t *testing.T) {
	f := newFixture(t)
	c := f.filled(t, "B1", "barrel", "100", gauge.NetWeight(d("300")), "110", "Rum")

	res, err := f.svc.DeleteContainer(f.ctx, "B1")
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, inventory.EntryDeleteFilledContainer, res.Entries[0].Type)
	assertDec(t, "-300", res.Entries[0].NetWeightLbsChange)
	assert.True(t, res.Entries[0].ProofGallonsChange.Equal(c.Fill.ProofGallons.Neg()))

	live, err := f.svc.Containers(f.ctx, inventory.ContainerFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	// Name is free again.
	_, err = f.svc.CreateContainer(f.ctx, inventory.CreateContainerRequest{Name: "B1", Type: "barrel", TareWeightLbs: d("90")})
	assert.NoError(t, err)

	_, err = f.svc.DeleteContainer(f.ctx, "B1")
	assert.True(t, inventory.IsNotFound(err))
}

func TestChangeAccount(t *testing.T) {
	f := newFixture(t)
	f.filled(t, "B1", "barrel", "100", gauge.NetWeight(d("300")), "110", "Rum")
	f.empty(t, "B2", "barrel", "100")

	res, err := f.svc.ChangeAccount(f.ctx, "B1", inventory.AccountProcessing)
	require.NoError(t, err)
	assert.Equal(t, inventory.AccountProcessing, res.Containers[0].Fill.Account)
	assert.Equal(t, inventory.EntryChangeAccount, res.Entries[0].Type)
	assert.True(t, res.Entries[0].NetWeightLbsChange.IsZero())

	_, err = f.svc.ChangeAccount(f.ctx, "B1", inventory.AccountProcessing)
	assert.True(t, errors.Is(err, inventory.ErrValidation))
	_, err = f.svc.ChangeAccount(f.ctx, "B2", inventory.AccountProduction)
	assert.True(t, errors.Is(err, inventory.ErrValidation))
	_, err = f.svc.ChangeAccount(f.ctx, "B1", "bonded")
	assert.True(t, errors.Is(err, inventory.ErrValidation))
}

func TestUpdateContainerInfo(t *testing.T) {
	f := newFixture(t)
	f.filled(t, "B1", "barrel", "100", gauge.NetWeight(d("300")), "110", "Rum")
	f.empty(t, "B2", "barrel", "100")

	tare := d("95")
	_, err := f.svc.UpdateContainerInfo(f.ctx, "B1", inventory.ContainerInfo{TareWeightLbs: &tare})
	assert.Contains(t, err.Error(), "cannot change while")

	name := "b2"
	_, err = f.svc.UpdateContainerInfo(f.ctx, "B1", inventory.ContainerInfo{Name: &name})
	assert.Contains(t, err.Error(), "already in use")

	name = "Rum Barrel"
	res, err := f.svc.UpdateContainerInfo(f.ctx, "B1", inventory.ContainerInfo{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Rum Barrel", res.Containers[0].Name)
	assert.Equal(t, int64(2), res.Containers[0].Version)

	res, err = f.svc.UpdateContainerInfo(f.ctx, "B2", inventory.ContainerInfo{TareWeightLbs: &tare})
	require.NoError(t, err)
	assertDec(t, "95", res.Containers[0].TareWeightLbs)
	assertDec(t, "95", res.Containers[0].Fill.GrossWeightLbs)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestProducts_Lifecycle(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.SeedProducts(f.ctx, []inventory.Product{{Name: "Bourbon"}, {Name: "Vodka"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = f.svc.SeedProducts(f.ctx, []inventory.Product{{Name: "Gin"}})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.CreateProduct(f.ctx, "vodka", "")
	assert.True(t, errors.Is(err, inventory.ErrValidation))

	rum, err := f.svc.CreateProduct(f.ctx, "Rum", "Cane spirit")
	require.NoError(t, err)
	f.filled(t, "B1", "barrel", "100", gauge.NetWeight(d("300")), "110", "Rum")

	_, err = f.svc.DeleteProduct(f.ctx, rum.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use by container B1")

	// Renaming leaves the fill's product name alone.
	_, err = f.svc.UpdateProduct(f.ctx, rum.ID, "Dark Rum", "")
	require.NoError(t, err)
	assert.Equal(t, "Rum", f.get(t, "B1").Fill.ProductType)

	res, err := f.svc.DeleteProduct(f.ctx, rum.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.EntryDeleteProduct, res.Entries[0].Type)

	all, err := f.svc.Products(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// COMMIT FAILURES
// =============================================================================

// staleStore serves container reads one version behind, as if another
// writer committed after the read.
type staleStore struct {
	*store.Memory
}

func (s staleStore) GetContainer(ctx context.Context, id inventory.ContainerID) (*inventory.Container, error) {
	c, err := s.Memory.GetContainer(ctx, id)
	if c != nil {
		c.Version--
	}
	return c, err
}

func TestCommit_VersionConflictIsRetryable(t *testing.T) {
	// GIVEN: a read that is one version behind the store
	// WHEN: adjusting the container
	// THEN: the commit fails with a retryable ConflictError and nothing changes
	f := newFixture(t)
	f.filled(t, "T1", "tank", "500", gauge.NetWeight(d("200")), "100", "Gin")
	svc := inventory.NewService(staleStore{f.mem})

	_, err := svc.Adjust(f.ctx, inventory.AdjustRequest{ContainerID: "T1", Quantity: gauge.NetWeight(d("10"))})
	require.Error(t, err)

	var conflict *inventory.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(0), conflict.Expected)
	assert.Equal(t, int64(1), conflict.Actual)
	assert.True(t, inventory.IsRetryable(err))

	assertDec(t, "200", f.get(t, "T1").Fill.NetWeightLbs)
	assert.Len(t, f.log(t, "T1"), 1)
}

func TestCommit_PersistenceFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.filled(t, "S", "tank", "500", gauge.ProofGallons(d("80")), "100", "Gin")
	f.empty(t, "D", "barrel", "100")
	diskFull := errors.New("disk full")
	f.mem.FailNextCommit(diskFull)

	_, err := f.svc.Transfer(f.ctx, inventory.TransferRequest{SourceID: "S", DestinationID: "D", Quantity: gauge.ProofGallons(d("10"))})
	require.Error(t, err)
	assert.True(t, errors.Is(err, inventory.ErrPersistence))
	assert.True(t, errors.Is(err, diskFull))

	assertDec(t, "80", f.get(t, "S").Fill.ProofGallons)
	assert.Equal(t, inventory.StatusEmpty, f.get(t, "D").Status)
	assert.Len(t, f.log(t, "S"), 1)
}

// =============================================================================
// COLLABORATORS
// =============================================================================

type recordingNotifier struct {
	changes []inventory.Change
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, changes []inventory.Change) error {
	n.changes = append(n.changes, changes...)
	return n.err
}

type countingRecorder struct {
	outcomes map[string]int
}

func (r *countingRecorder) ObserveOperation(op, outcome string, _ time.Duration) {
	r.outcomes[op+"/"+outcome]++
}

func TestNotifierAndRecorder(t *testing.T) {
	n := &recordingNotifier{err: errors.New("broker down")}
	r := &countingRecorder{outcomes: map[string]int{}}
	f := newFixture(t, inventory.WithNotifier(n), inventory.WithRecorder(r))
	f.filled(t, "S", "tank", "500", gauge.ProofGallons(d("80")), "100", "Gin")
	f.empty(t, "D", "barrel", "100")
	n.changes = nil

	_, err := f.svc.Transfer(f.ctx, inventory.TransferRequest{SourceID: "S", DestinationID: "D", Quantity: gauge.ProofGallons(d("10"))})
	require.NoError(t, err, "notification failure must not fail the operation")
	_, err = f.svc.Transfer(f.ctx, inventory.TransferRequest{SourceID: "S", DestinationID: "D", Quantity: gauge.ProofGallons(d("500"))})
	require.Error(t, err)

	byCollection := map[string]int{}
	for _, c := range n.changes {
		byCollection[c.Collection]++
	}
	assert.Equal(t, 2, byCollection[inventory.CollectionContainers])
	assert.Equal(t, 2, byCollection[inventory.CollectionLog])

	assert.Equal(t, 1, r.outcomes["transfer/ok"])
	assert.Equal(t, 1, r.outcomes["transfer/invalid"])
	assert.Equal(t, 2, r.outcomes["create_container/ok"])
}
