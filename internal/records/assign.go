package records

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmasson/registre/internal/domain"
)

// ErrEmptyDistribution is returned when a percentage distribution has no
// shares or no records to distribute.
var ErrEmptyDistribution = errors.New("nothing to distribute")

// PercentShare is one target user's slice of a percentage distribution.
type PercentShare struct {
	UserID  uuid.UUID `json:"user_id"`
	Percent float64   `json:"percent"`
}

// AssignOwner sets the owner of every listed record to targetUser inside one
// transaction, writing one attribution_masse audit entry per record whose
// owner actually changed. Returns the number of records changed.
func (s *Service) AssignOwner(ctx context.Context, recordIDs []uuid.UUID, targetUser, actingUserID uuid.UUID) (int, error) {
	changed := 0
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		st := s.stores(tx)
		for _, id := range recordIDs {
			didChange, err := s.setOwner(ctx, st, id, &targetUser, actingUserID, domain.AuditActionMassAssign)
			if err != nil {
				return err
			}
			if didChange {
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// DistributeByPercentage splits the listed records across the share targets.
// Rounding uses largest remainder: every share gets the floor of its exact
// count, then leftover records go to the shares with the largest fractional
// parts, ties broken by declaration order. Returns per-user assigned counts.
func (s *Service) DistributeByPercentage(ctx context.Context, recordIDs []uuid.UUID, shares []PercentShare, actingUserID uuid.UUID) (map[uuid.UUID]int, error) {
	if len(recordIDs) == 0 || len(shares) == 0 {
		return nil, ErrEmptyDistribution
	}

	total := 0.0
	for _, share := range shares {
		if share.Percent < 0 {
			return nil, fmt.Errorf("negative percentage for user %s", share.UserID)
		}
		total += share.Percent
	}
	if total > 100.0+1e-9 {
		return nil, fmt.Errorf("percentages sum to %.2f, expected at most 100", total)
	}

	counts := largestRemainderCounts(len(recordIDs), shares)

	assigned := make(map[uuid.UUID]int, len(shares))
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		st := s.stores(tx)
		next := 0
		for i, share := range shares {
			for n := 0; n < counts[i]; n++ {
				id := recordIDs[next]
				next++
				target := share.UserID
				if _, err := s.setOwner(ctx, st, id, &target, actingUserID, domain.AuditActionMassAssignPct); err != nil {
					return err
				}
				assigned[share.UserID]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// UnassignByPercentage clears the owner on the given percentage of one
// user's records (rounded to nearest), in stable unique-key order. Returns
// the number of records unassigned.
func (s *Service) UnassignByPercentage(ctx context.Context, ownerID uuid.UUID, percent float64, actingUserID uuid.UUID) (int, error) {
	if percent <= 0 || percent > 100 {
		return 0, fmt.Errorf("percentage %.2f out of range", percent)
	}

	unassigned := 0
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		st := s.stores(tx)
		owned, err := st.Records.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		take := int(math.Round(float64(len(owned)) * percent / 100.0))
		for i := 0; i < take && i < len(owned); i++ {
			didChange, err := s.setOwner(ctx, st, owned[i].ID, nil, actingUserID, domain.AuditActionMassUnassignPct)
			if err != nil {
				return err
			}
			if didChange {
				unassigned++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return unassigned, nil
}

// setOwner writes one ownership change plus its audit entry. A nil newOwner
// clears the assignment. Returns false when the owner was already the target.
func (s *Service) setOwner(ctx context.Context, st Stores, recordID uuid.UUID, newOwner *uuid.UUID, actingUserID uuid.UUID, action domain.AuditAction) (bool, error) {
	current, err := st.Records.GetByID(ctx, recordID)
	if err != nil {
		return false, err
	}
	if current.Deleted {
		return false, domain.ErrNotFound
	}

	change, changed := domain.DiffScalar(domain.AuditFieldOwner, current.OwnerID, newOwner)
	if !changed {
		return false, nil
	}

	if _, err := st.Records.Update(ctx, current.WithOwner(newOwner)); err != nil {
		return false, err
	}

	s.appendAudit(ctx, st, domain.AuditEntry{
		RecordID: recordID,
		FieldKey: change.Key,
		OldValue: change.Old,
		NewValue: change.New,
		UserID:   &actingUserID,
		Action:   action,
	})
	return true, nil
}

// largestRemainderCounts allocates n across the shares.
func largestRemainderCounts(n int, shares []PercentShare) []int {
	counts := make([]int, len(shares))
	fractions := make([]float64, len(shares))
	allocated := 0

	for i, share := range shares {
		exact := float64(n) * share.Percent / 100.0
		counts[i] = int(math.Floor(exact))
		fractions[i] = exact - math.Floor(exact)
		allocated += counts[i]
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fractions[order[a]] > fractions[order[b]]
	})

	remainder := n - allocated
	// The caller may distribute less than 100%; leftover rows beyond the
	// fractional remainders stay unassigned.
	maxExtra := 0
	for _, f := range fractions {
		if f > 0 {
			maxExtra++
		}
	}
	if remainder > maxExtra {
		remainder = maxExtra
	}
	for i := 0; i < remainder; i++ {
		counts[order[i]]++
	}
	return counts
}
