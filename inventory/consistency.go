package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DriftTolerance is how far summed log deltas may differ from a snapshot
// before the container is reported.
var DriftTolerance = decimal.RequireFromString("0.01")

// Discrepancy is one container whose log does not sum to its snapshot.
// Only net weight drift is a mismatch; proof gallons legitimately drift when
// lots of different proof are combined, so that figure is informational.
type Discrepancy struct {
	ContainerID   ContainerID
	ContainerName string
	Entries       int

	SnapshotNetWeightLbs decimal.Decimal
	LoggedNetWeightLbs   decimal.Decimal
	NetWeightDrift       decimal.Decimal

	SnapshotProofGallons decimal.Decimal
	LoggedProofGallons   decimal.Decimal
	ProofGallonsDrift    decimal.Decimal

	NetMismatch bool
}

type ConsistencyReport struct {
	CheckedAt     time.Time
	Containers    int
	Entries       int
	Discrepancies []Discrepancy
}

// Mismatches counts discrepancies with net weight drift.
func (r ConsistencyReport) Mismatches() int {
	n := 0
	for _, d := range r.Discrepancies {
		if d.NetMismatch {
			n++
		}
	}
	return n
}

// CheckConsistency sums log deltas per live container and compares them with
// the container snapshot. It never modifies anything.
func (s *Service) CheckConsistency(ctx context.Context) (ConsistencyReport, error) {
	containers, err := s.store.ListContainers(ctx, ContainerFilter{})
	if err != nil {
		return ConsistencyReport{}, err
	}
	entries, err := s.store.ListEntries(ctx, EntryFilter{})
	if err != nil {
		return ConsistencyReport{}, err
	}

	type sums struct {
		net, pg decimal.Decimal
		n       int
	}
	byContainer := map[ContainerID]*sums{}
	for _, e := range entries {
		if e.ContainerID == "" || !e.Type.ChangesContents() {
			continue
		}
		sm := byContainer[e.ContainerID]
		if sm == nil {
			sm = &sums{}
			byContainer[e.ContainerID] = sm
		}
		sm.net = sm.net.Add(e.NetWeightLbsChange)
		sm.pg = sm.pg.Add(e.ProofGallonsChange)
		sm.n++
	}

	report := ConsistencyReport{CheckedAt: s.now(), Containers: len(containers), Entries: len(entries)}
	for _, c := range containers {
		sm := byContainer[c.ID]
		if sm == nil {
			sm = &sums{}
		}
		netDrift := c.Fill.NetWeightLbs.Sub(sm.net)
		pgDrift := c.Fill.ProofGallons.Sub(sm.pg)
		netBad := netDrift.Abs().GreaterThan(DriftTolerance)
		if !netBad && pgDrift.Abs().LessThanOrEqual(DriftTolerance) {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, Discrepancy{
			ContainerID:          c.ID,
			ContainerName:        c.Name,
			Entries:              sm.n,
			SnapshotNetWeightLbs: c.Fill.NetWeightLbs,
			LoggedNetWeightLbs:   sm.net,
			NetWeightDrift:       netDrift,
			SnapshotProofGallons: c.Fill.ProofGallons,
			LoggedProofGallons:   sm.pg,
			ProofGallonsDrift:    pgDrift,
			NetMismatch:          netBad,
		})
	}
	sort.Slice(report.Discrepancies, func(i, j int) bool {
		return report.Discrepancies[i].ContainerName < report.Discrepancies[j].ContainerName
	})

	s.log.Info().
		Int("containers", report.Containers).
		Int("entries", report.Entries).
		Int("discrepancies", len(report.Discrepancies)).
		Int("mismatches", report.Mismatches()).
		Msg("consistency check")
	return report, nil
}
