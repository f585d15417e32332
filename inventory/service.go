package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Change describes one record touched by a committed write set.
type Change struct {
	Collection string `json:"collection"`
	Op         string `json:"op"`
	ID         string `json:"id"`
	Data       any    `json:"data,omitempty"`
}

const (
	CollectionContainers = "containers"
	CollectionProducts   = "products"
	CollectionBatches    = "productionBatches"
	CollectionLog        = "transactionLog"

	ChangeUpsert = "upsert"
	ChangeDelete = "delete"
)

// Notifier is told about every committed write set. Failures are logged and
// never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, changes []Change) error
}

// Recorder observes orchestrator outcomes.
type Recorder interface {
	ObserveOperation(op string, outcome string, elapsed time.Duration)
}

// Outcome labels passed to Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeNotFound    = "not_found"
	OutcomeConflict    = "conflict"
	OutcomeIneligible  = "ineligible"
	OutcomePersistence = "persistence_error"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service runs orchestrators against a Store.
type Service struct {
	store       Store
	ledger      Ledger
	bottleSizes []int
	now         func() time.Time
	newID       func() string
	undo        UndoStrategy
	retention   time.Duration
	notifier    Notifier
	recorder    Recorder
	log         zerolog.Logger
}

// DefaultRetention is how long an entry stays undoable.
const DefaultRetention = 30 * 24 * time.Hour

type Option func(*Service)

func WithGauge(e gauge.Engine) Option        { return func(s *Service) { s.ledger.Gauge = e } }
func WithCapacities(c Capacities) Option     { return func(s *Service) { s.ledger.Capacities = c } }
func WithBottleSizes(sizesML []int) Option   { return func(s *Service) { s.bottleSizes = sizesML } }
func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }
func WithIDs(newID func() string) Option     { return func(s *Service) { s.newID = newID } }
func WithUndoStrategy(u UndoStrategy) Option { return func(s *Service) { s.undo = u } }
func WithRetention(d time.Duration) Option   { return func(s *Service) { s.retention = d } }
func WithNotifier(n Notifier) Option         { return func(s *Service) { s.notifier = n } }
func WithRecorder(r Recorder) Option         { return func(s *Service) { s.recorder = r } }
func WithLogger(l zerolog.Logger) Option     { return func(s *Service) { s.log = l } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		now:       time.Now,
		newID:     uuid.NewString,
		undo:      HardUndo{},
		retention: DefaultRetention,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger exposes the service's conversion and capacity rules.
func (s *Service) Ledger() Ledger { return s.ledger }

// UndoMode names the active undo strategy.
func (s *Service) UndoMode() string { return s.undo.Name() }

// Result is what an orchestrator committed.
type Result struct {
	Containers []Container
	Entries    []Entry
	Deleted    []EntryID
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Container(ctx context.Context, id ContainerID) (*Container, error) {
	c, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Kind: "container", ID: string(id)}
	}
	return c, nil
}

func (s *Service) Containers(ctx context.Context, filter ContainerFilter) ([]Container, error) {
	return s.store.ListContainers(ctx, filter)
}

func (s *Service) Entry(ctx context.Context, id EntryID) (*Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Kind: "log entry", ID: string(id)}
	}
	return e, nil
}

func (s *Service) Entries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	return s.store.ListEntries(ctx, filter)
}

// liveContainer loads a container that has not been retired.
func (s *Service) liveContainer(ctx context.Context, id ContainerID) (Container, error) {
	c, err := s.store.GetContainer(ctx, id)
	if err != nil {
		return Container{}, err
	}
	if c == nil || c.Retired {
		return Container{}, &NotFoundError{Kind: "container", ID: string(id)}
	}
	return *c, nil
}

// =============================================================================
// COMMIT
// =============================================================================

// update derives a ContainerWrite that replaces orig with next.
func (s *Service) update(orig, next Container) ContainerWrite {
	next.Version = orig.Version + 1
	next.UpdatedAt = s.now()
	return ContainerWrite{Container: next, Expected: orig.Version}
}

func (s *Service) create(c Container) ContainerWrite {
	c.Version = 1
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	return ContainerWrite{Container: c, Create: true}
}

// entry starts a log entry for container c.
func (s *Service) entry(t EntryType, c Container) Entry {
	return Entry{
		ID:            EntryID(s.newID()),
		Type:          t,
		ContainerID:   c.ID,
		ContainerName: c.Name,
		ProductType:   c.Fill.ProductType,
		Proof:         c.Fill.Proof,
	}
}

// commit stamps entries, persists ws and publishes the change.
func (s *Service) commit(ctx context.Context, op string, ws WriteSet) (Result, error) {
	now := s.now()
	for i := range ws.Append {
		if ws.Append[i].Timestamp.IsZero() {
			ws.Append[i].Timestamp = now
		}
	}

	if err := s.store.Commit(ctx, ws); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return Result{}, err
		}
		return Result{}, &PersistenceError{Op: op, Err: err}
	}

	res := Result{Entries: ws.Append, Deleted: ws.Delete}
	for _, w := range ws.Containers {
		res.Containers = append(res.Containers, w.Container)
	}

	s.log.Info().
		Str("op", op).
		Int("containers", len(ws.Containers)).
		Int("entries", len(ws.Append)).
		Int("deleted", len(ws.Delete)).
		Msg("committed")

	s.publish(ctx, op, ws)
	return res, nil
}

func (s *Service) publish(ctx context.Context, op string, ws WriteSet) {
	if s.notifier == nil {
		return
	}
	var changes []Change
	for _, w := range ws.Containers {
		changes = append(changes, Change{Collection: CollectionContainers, Op: ChangeUpsert, ID: string(w.Container.ID), Data: w.Container})
	}
	for _, w := range ws.Products {
		c := Change{Collection: CollectionProducts, Op: ChangeUpsert, ID: string(w.Product.ID), Data: w.Product}
		if w.Delete {
			c.Op, c.Data = ChangeDelete, nil
		}
		changes = append(changes, c)
	}
	for _, b := range ws.Batches {
		changes = append(changes, Change{Collection: CollectionBatches, Op: ChangeUpsert, ID: string(b.ID), Data: b})
	}
	for _, e := range ws.Append {
		changes = append(changes, Change{Collection: CollectionLog, Op: ChangeUpsert, ID: string(e.ID), Data: e})
	}
	for _, id := range ws.Delete {
		changes = append(changes, Change{Collection: CollectionLog, Op: ChangeDelete, ID: string(id)})
	}
	if err := s.notifier.Notify(ctx, changes); err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("change notification failed")
	}
}

// observe records the outcome of an orchestrator. Use with a named error
// result: defer s.observe(op, time.Now(), &err).
func (s *Service) observe(op string, start time.Time, errp *error) {
	err := *errp
	outcome := outcomeOf(err)
	if s.recorder != nil {
		s.recorder.ObserveOperation(op, outcome, time.Since(start))
	}
	switch outcome {
	case OutcomeOK:
	case OutcomePersistence:
		s.log.Error().Err(err).Str("op", op).Msg("operation failed")
	default:
		s.log.Warn().Err(err).Str("op", op).Str("outcome", outcome).Msg("operation rejected")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	case errors.Is(err, ErrIneligible):
		return OutcomeIneligible
	}
	return OutcomePersistence
}

// =============================================================================
// SHARED VALIDATION
// =============================================================================

var maxProof = gauge.MaxProof

func validateProof(op string, proof decimal.Decimal) error {
	if proof.IsNegative() || proof.GreaterThan(maxProof) {
		return invalid(op, "proof", "proof must be between 0 and 200, got %s", proof.String())
	}
	return nil
}

// deltaUnit rejects units that cannot express a change in contents.
func deltaUnit(op string, q gauge.Quantity) error {
	if q.Unit == gauge.UnitGrossPounds {
		return invalid(op, "unit", "amount must be net weight, wine gallons or proof gallons")
	}
	if _, err := gauge.ParseUnit(string(q.Unit)); err != nil {
		return invalid(op, "unit", "%v", err)
	}
	if !q.Value.IsPositive() {
		return invalid(op, "amount", "amount must be greater than 0")
	}
	return nil
}

// quantityUnit rejects unknown units and negative amounts for fills.
func quantityUnit(op string, q gauge.Quantity) error {
	if _, err := gauge.ParseUnit(string(q.Unit)); err != nil {
		return invalid(op, "unit", "%v", err)
	}
	if q.Value.IsNegative() {
		return invalid(op, "amount", "amount cannot be negative")
	}
	return nil
}
