// Package diff compares two position snapshots for one trader and produces
// typed change events. Diff is a pure function: it performs no I/O and never
// mutates its inputs, so identical snapshots always yield identical output.
package diff

import (
	"sort"
	"time"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// Diff compares previous and current position sets keyed by
// (condition, outcome) and returns the changes, ordered by condition ID then
// outcome for determinism. A key present only in current yields OPEN; only in
// previous yields CLOSE; present in both with a size delta yields INCREASE or
// DECREASE; equal sizes yield nothing.
//
// Conviction is the notional delta relative to avgPositionSize. When the
// average is zero or unknown it defaults to 1.0 so a missing denominator
// never amplifies or zeroes a change.
func Diff(previous, current domain.PositionSnapshot, avgPositionSize float64, detectedAt time.Time) []domain.PositionChange {
	prev := previous.ByKey()
	curr := current.ByKey()

	var changes []domain.PositionChange

	for key, cur := range curr {
		if old, ok := prev[key]; ok {
			switch {
			case cur.Size > old.Size:
				changes = append(changes, build(cur, domain.ChangeIncrease, old.Size, cur.Size))
			case cur.Size < old.Size:
				changes = append(changes, build(cur, domain.ChangeDecrease, old.Size, cur.Size))
			}
		} else {
			changes = append(changes, build(cur, domain.ChangeOpen, 0, cur.Size))
		}
	}

	for key, old := range prev {
		if _, ok := curr[key]; !ok {
			changes = append(changes, build(old, domain.ChangeClose, old.Size, 0))
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ConditionID != changes[j].ConditionID {
			return changes[i].ConditionID < changes[j].ConditionID
		}
		return changes[i].Outcome < changes[j].Outcome
	})

	for i := range changes {
		changes[i].Wallet = current.Wallet
		changes[i].Conviction = Conviction(changes[i], avgPositionSize)
		changes[i].DetectedAt = detectedAt
	}

	return changes
}

// Conviction is |new − old| × price / avgPositionSize, with a neutral 1.0
// when the average is zero or unknown. When the price is missing the raw
// share delta is used as the notional.
func Conviction(c domain.PositionChange, avgPositionSize float64) float64 {
	if avgPositionSize <= 0 {
		return 1.0
	}
	delta := c.NewSize - c.OldSize
	if delta < 0 {
		delta = -delta
	}
	notional := delta
	if c.Price > 0 {
		notional = delta * c.Price
	}
	return notional / avgPositionSize
}

func build(p domain.Position, kind domain.ChangeKind, oldSize, newSize float64) domain.PositionChange {
	return domain.PositionChange{
		ConditionID: p.ConditionID,
		Title:       p.Title,
		Slug:        p.Slug,
		EventSlug:   p.EventSlug,
		Outcome:     p.Outcome,
		Kind:        kind,
		OldSize:     oldSize,
		NewSize:     newSize,
		Price:       p.CurPrice,
	}
}
