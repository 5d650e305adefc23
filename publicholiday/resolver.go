/*
Package publicholiday turns public holidays into leave.

PURPOSE:
  When an absence type takes public holidays as leave, every contact whose
  contract covers a future holiday gets an approved, single-day leave
  request for it, and the balance ledger is adjusted so that day is
  deducted exactly once.

PIPELINE (one pass per trigger):
  Resolver  -> (contract, holiday) pairs for future holidays
  Generator -> one "Admin Approved", "All Day" request per pair
  Adjuster  -> per day: zero any overlapping deduction, insert -1

TRIGGERS:
  - Service.CreateForAbsenceType: absence type flagged, or scheduled run
  - Service.CreateForHoliday: a new public holiday was added
  - Service.CreateForContract: a new contract was added
  - Service.CreateForContact: one contact, one holiday

SEE ALSO:
  - leave/store.go: repositories the pipeline reads and writes
  - events/: topics published after each committed change
*/
package publicholiday

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// RESOLVER - which contracts cover which future holidays
// =============================================================================

// Match pairs a contract with a holiday it covers.
type Match struct {
	Contract leave.Contract
	Holiday  leave.PublicHoliday
}

// ResolverStore is what the resolver reads.
type ResolverStore interface {
	leave.HolidayStore
	leave.ContractStore
}

// Resolver finds the (contract, holiday) pairs a pass must generate leave for.
type Resolver struct {
	store ResolverStore
}

func NewResolver(store ResolverStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns every pair where the contract covers an active holiday on
// or after now, in contract order then holiday order. It fails with
// leave.ErrNoHolidays when there is no future holiday.
func (r *Resolver) Resolve(ctx context.Context, now time.Time) ([]Match, error) {
	holidays, err := r.FutureHolidays(ctx, now)
	if err != nil {
		return nil, err
	}

	today := leave.DateOf(now)
	last := holidays[len(holidays)-1]
	contracts, err := r.store.GetContractsOverlapping(ctx, today, last.Date)
	if err != nil {
		return nil, fmt.Errorf("load contracts overlapping %s..%s: %w", today, last.Date, err)
	}

	var matches []Match
	for _, c := range contracts {
		for _, h := range holidays {
			if c.Covers(h.Date) {
				matches = append(matches, Match{Contract: c, Holiday: h})
			}
		}
	}
	return matches, nil
}

// FutureHolidays returns active holidays on or after now, ascending.
func (r *Resolver) FutureHolidays(ctx context.Context, now time.Time) ([]leave.PublicHoliday, error) {
	holidays, err := r.store.GetActiveHolidaysFrom(ctx, leave.DateOf(now))
	if err != nil {
		return nil, fmt.Errorf("load future holidays: %w", err)
	}
	if len(holidays) == 0 {
		return nil, leave.ErrNoHolidays
	}
	return holidays, nil
}

// ForHoliday returns the pairs for a single holiday: every contract covering it.
func (r *Resolver) ForHoliday(ctx context.Context, h leave.PublicHoliday) ([]Match, error) {
	contracts, err := r.store.GetContractsOverlapping(ctx, h.Date, h.Date)
	if err != nil {
		return nil, fmt.Errorf("load contracts covering %s: %w", h.Date, err)
	}
	matches := make([]Match, 0, len(contracts))
	for _, c := range contracts {
		if c.Covers(h.Date) {
			matches = append(matches, Match{Contract: c, Holiday: h})
		}
	}
	return matches, nil
}

// ForContract returns the pairs for a single contract: every future holiday
// it covers. No future holidays is not an error here.
func (r *Resolver) ForContract(ctx context.Context, c leave.Contract, now time.Time) ([]Match, error) {
	holidays, err := r.store.GetActiveHolidaysFrom(ctx, leave.DateOf(now))
	if err != nil {
		return nil, fmt.Errorf("load future holidays: %w", err)
	}
	var matches []Match
	for _, h := range holidays {
		if c.Covers(h.Date) {
			matches = append(matches, Match{Contract: c, Holiday: h})
		}
	}
	return matches, nil
}
