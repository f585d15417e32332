package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// =============================================================================
// CREATE
// =============================================================================

type CreateContainerRequest struct {
	ID            ContainerID
	Name          string
	Type          ContainerType
	TareWeightLbs decimal.Decimal
	// Fill is nil for an empty container.
	Fill *FillSpec
}

// CreateContainer adds a container, empty or filled.
func (s *Service) CreateContainer(ctx context.Context, req CreateContainerRequest) (res Result, err error) {
	const op = "create_container"
	defer s.observe(op, time.Now(), &err)

	live, err := s.store.ListContainers(ctx, ContainerFilter{})
	if err != nil {
		return Result{}, err
	}
	c, e, err := s.newContainer(op, req, live)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.create(c)},
		Append:     []Entry{e},
	})
}

// newContainer validates req against the live containers and builds the
// container and its opening entry.
func (s *Service) newContainer(op string, req CreateContainerRequest, live []Container) (Container, Entry, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Container{}, Entry{}, invalid(op, "name", "name is required")
	}
	for _, c := range live {
		if sameName(c.Name, name) {
			return Container{}, Entry{}, invalid(op, "name", "container name %q is already in use", name)
		}
	}
	if !req.Type.Valid() {
		return Container{}, Entry{}, invalid(op, "type", "unknown container type %q", req.Type)
	}
	if !req.TareWeightLbs.IsPositive() {
		return Container{}, Entry{}, invalid(op, "tareWeightLbs", "tare weight must be greater than 0")
	}

	id := req.ID
	if id == "" {
		id = ContainerID(s.newID())
	}
	now := s.now()
	c := Container{
		ID:            id,
		Name:          name,
		Type:          req.Type,
		TareWeightLbs: req.TareWeightLbs,
		Status:        StatusEmpty,
		Fill:          Fill{Account: AccountStorage, GrossWeightLbs: req.TareWeightLbs},
	}

	if req.Fill == nil || req.Fill.Quantity.Value.IsZero() {
		e := s.entry(EntryCreateEmptyContainer, c)
		e.NetWeightLbsChange, e.ProofGallonsChange = decimal.Zero, decimal.Zero
		e.Notes = "Container created empty."
		return c, e, nil
	}

	if err := s.validateFill(op, *req.Fill); err != nil {
		return Container{}, Entry{}, err
	}
	c, m := s.ledger.ApplyFill(c, *req.Fill, now)
	if !c.IsFilled() {
		e := s.entry(EntryCreateEmptyContainer, c)
		e.Notes = "Container created empty."
		return c, e, nil
	}
	if err := s.ledger.CheckCapacity(op, c, c.Fill.WineGallons); err != nil {
		return Container{}, Entry{}, err
	}
	e := s.entry(EntryCreateFilledContainer, c)
	e.NetWeightLbsChange = m.NetWeightLbs
	e.ProofGallonsChange = m.ProofGallons
	e.Notes = fmt.Sprintf("Container created with %s PG.", m.ProofGallons.StringFixed(3))
	return c, e, nil
}

// =============================================================================
// BULK IMPORT
// =============================================================================

// ImportRowError reports one rejected row; Row is 1-based.
type ImportRowError struct {
	Row    int    `json:"row"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Result
	Created []Container
	Errors  []ImportRowError
}

// ImportContainers validates every row and commits all valid ones in one
// write set, with a CREATE_* entry per container and one
// CREATE_BULK_CONTAINERS summary entry. Invalid rows are reported and
// skipped.
func (s *Service) ImportContainers(ctx context.Context, rows []CreateContainerRequest) (res ImportResult, err error) {
	const op = "import_containers"
	defer s.observe(op, time.Now(), &err)

	if len(rows) == 0 {
		return ImportResult{}, invalid(op, "rows", "no containers to import")
	}
	live, err := s.store.ListContainers(ctx, ContainerFilter{})
	if err != nil {
		return ImportResult{}, err
	}

	var ws WriteSet
	totalNet, totalPG := decimal.Zero, decimal.Zero
	for i, row := range rows {
		c, e, rowErr := s.newContainer(op, row, live)
		if rowErr != nil {
			res.Errors = append(res.Errors, ImportRowError{Row: i + 1, Name: row.Name, Reason: reasonOf(rowErr)})
			continue
		}
		live = append(live, c)
		ws.Containers = append(ws.Containers, s.create(c))
		ws.Append = append(ws.Append, e)
		totalNet = totalNet.Add(e.NetWeightLbsChange)
		totalPG = totalPG.Add(e.ProofGallonsChange)
	}
	if len(ws.Containers) == 0 {
		return res, invalid(op, "rows", "no valid rows to import (%d rejected)", len(res.Errors))
	}

	summary := Entry{
		ID:                 EntryID(s.newID()),
		Type:               EntryCreateBulkContainers,
		NetWeightLbsChange: totalNet,
		ProofGallonsChange: totalPG,
		Notes:              fmt.Sprintf("Imported %d containers.", len(ws.Containers)),
	}
	ws.Append = append(ws.Append, summary)

	committed, err := s.commit(ctx, op, ws)
	if err != nil {
		return ImportResult{Errors: res.Errors}, err
	}
	res.Result = committed
	res.Created = committed.Containers
	return res, nil
}

// ImportQuantity picks the fill amount for an import row. Gross weight wins,
// then net weight, then wine gallons, then proof gallons.
func ImportQuantity(gross, net, wineGallons, proofGallons decimal.NullDecimal) (gauge.Quantity, bool) {
	switch {
	case gross.Valid && gross.Decimal.IsPositive():
		return gauge.GrossWeight(gross.Decimal), true
	case net.Valid && net.Decimal.IsPositive():
		return gauge.NetWeight(net.Decimal), true
	case wineGallons.Valid && wineGallons.Decimal.IsPositive():
		return gauge.WineGallons(wineGallons.Decimal), true
	case proofGallons.Valid && proofGallons.Decimal.IsPositive():
		return gauge.ProofGallons(proofGallons.Decimal), true
	}
	return gauge.Quantity{}, false
}

func reasonOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return err.Error()
}

// =============================================================================
// DELETE (soft retire)
// =============================================================================

// DeleteContainer retires a container. Its contents, if any, are written out
// of the log with DELETE_FILLED_CONTAINER.
func (s *Service) DeleteContainer(ctx context.Context, id ContainerID) (res Result, err error) {
	const op = "delete_container"
	defer s.observe(op, time.Now(), &err)

	c, err := s.liveContainer(ctx, id)
	if err != nil {
		return Result{}, err
	}

	t := EntryDeleteEmptyContainer
	if c.IsFilled() {
		t = EntryDeleteFilledContainer
	}
	e := s.entry(t, c)
	e.NetWeightLbsChange = c.Fill.NetWeightLbs.Neg()
	e.ProofGallonsChange = c.Fill.ProofGallons.Neg()
	e.Notes = fmt.Sprintf("Container %s deleted.", c.Name)

	next := c
	next.Retired = true

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
		Append:     []Entry{e},
	})
}

// =============================================================================
// ACCOUNT AND INFO
// =============================================================================

// ChangeAccount moves a filled container's contents to another account.
func (s *Service) ChangeAccount(ctx context.Context, id ContainerID, account Account) (res Result, err error) {
	const op = "change_account"
	defer s.observe(op, time.Now(), &err)

	if !account.Valid() {
		return Result{}, invalid(op, "account", "unknown account %q", account)
	}
	c, err := s.liveContainer(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !c.IsFilled() {
		return Result{}, invalid(op, "containerId", "container %s is empty", c.Name)
	}
	if c.Fill.Account == account {
		return Result{}, invalid(op, "account", "container %s is already in %s", c.Name, account)
	}

	next := c
	next.Fill.Account = account

	e := s.entry(EntryChangeAccount, c)
	e.NetWeightLbsChange, e.ProofGallonsChange = decimal.Zero, decimal.Zero
	e.Notes = fmt.Sprintf("Account changed from %s to %s.", c.Fill.Account, account)

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
		Append:     []Entry{e},
	})
}

// ContainerInfo holds optional edits; nil fields are left unchanged.
type ContainerInfo struct {
	Name          *string
	Type          *ContainerType
	TareWeightLbs *decimal.Decimal
}

// UpdateContainerInfo edits name, type or tare. Tare is fixed while filled.
func (s *Service) UpdateContainerInfo(ctx context.Context, id ContainerID, info ContainerInfo) (res Result, err error) {
	const op = "update_container"
	defer s.observe(op, time.Now(), &err)

	c, err := s.liveContainer(ctx, id)
	if err != nil {
		return Result{}, err
	}
	next := c

	if info.Name != nil {
		name := strings.TrimSpace(*info.Name)
		if name == "" {
			return Result{}, invalid(op, "name", "name is required")
		}
		live, err := s.store.ListContainers(ctx, ContainerFilter{})
		if err != nil {
			return Result{}, err
		}
		for _, o := range live {
			if o.ID != c.ID && sameName(o.Name, name) {
				return Result{}, invalid(op, "name", "container name %q is already in use", name)
			}
		}
		next.Name = name
	}
	if info.Type != nil {
		if !info.Type.Valid() {
			return Result{}, invalid(op, "type", "unknown container type %q", *info.Type)
		}
		next.Type = *info.Type
	}
	if info.TareWeightLbs != nil && !info.TareWeightLbs.Equal(c.TareWeightLbs) {
		if c.IsFilled() {
			return Result{}, invalid(op, "tareWeightLbs", "tare weight cannot change while %s is filled", c.Name)
		}
		if !info.TareWeightLbs.IsPositive() {
			return Result{}, invalid(op, "tareWeightLbs", "tare weight must be greater than 0")
		}
		next.TareWeightLbs = *info.TareWeightLbs
		next.Fill.GrossWeightLbs = next.TareWeightLbs
	}
	if next.IsFilled() {
		if err := s.ledger.CheckCapacity(op, next, next.Fill.WineGallons); err != nil {
			return Result{}, err
		}
	}

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
	})
}
