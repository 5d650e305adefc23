package publicholiday

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ADJUSTER - keeps one active deduction per contact, type and day
// =============================================================================

// publicHolidayDeduction is the amount booked for one public holiday day.
var publicHolidayDeduction = decimal.NewFromInt(-1)

// Adjuster reconciles the balance ledger for public holiday requests.
//
// For every day of a request it zeroes any other active leave_request_day
// deduction of the same contact and absence type on that day, then books
// a -1 "Public Holiday" change on the request's own date row. Both writes
// for a day commit together. A day that already carries its -1 change is
// left alone, so reconciling twice is harmless.
type Adjuster struct {
	store     leave.TxStore
	publisher events.Publisher
	logger    logrus.FieldLogger
	locks     *dayLocks
}

func NewAdjuster(store leave.TxStore, publisher events.Publisher, logger logrus.FieldLogger) *Adjuster {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Adjuster{
		store:     store,
		publisher: publisher,
		logger:    logger,
		locks:     newDayLocks(),
	}
}

// DayOutcome reports what reconciling one date did.
type DayOutcome struct {
	Date    leave.Date
	Zeroed  []leave.BalanceChangeID
	Created leave.BalanceChangeID
	Skipped bool
}

// Reconcile adjusts the ledger for every date of req, ascending, one
// transaction per date. Dates committed before a failure stay committed.
func (a *Adjuster) Reconcile(ctx context.Context, req leave.LeaveRequest) ([]DayOutcome, error) {
	var outcomes []DayOutcome
	for _, row := range sortedDates(req) {
		outcome, err := a.reconcileLocked(ctx, req, row)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
		if !outcome.Skipped {
			a.publisher.Publish(ctx, events.Event{
				Topic:          events.TopicBalanceChanged,
				ContactID:      req.ContactID,
				LeaveRequestID: req.ID,
			})
		}
	}
	return outcomes, nil
}

func (a *Adjuster) reconcileLocked(ctx context.Context, req leave.LeaveRequest, row leave.LeaveRequestDate) (DayOutcome, error) {
	unlock := a.Lock(req.ContactID, row.Date)
	defer unlock()

	var outcome DayOutcome
	err := a.store.WithTx(ctx, func(tx leave.Store) error {
		var err error
		outcome, err = a.reconcileDate(ctx, tx, req, row)
		return err
	})
	return outcome, err
}

// Lock takes the (contact, date) lock. Callers that reconcile through
// ReconcileIn must hold it for every date of the request, and must take
// it before opening their transaction.
func (a *Adjuster) Lock(contactID leave.ContactID, date leave.Date) (unlock func()) {
	return a.locks.lock(contactID, date)
}

// ReconcileIn adjusts every date of req against s, which is normally a
// transaction opened by the caller. It does not publish events.
func (a *Adjuster) ReconcileIn(ctx context.Context, s leave.Store, req leave.LeaveRequest) ([]DayOutcome, error) {
	var outcomes []DayOutcome
	for _, row := range sortedDates(req) {
		outcome, err := a.reconcileDate(ctx, s, req, row)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (a *Adjuster) reconcileDate(ctx context.Context, s leave.Store, req leave.LeaveRequest, row leave.LeaveRequestDate) (DayOutcome, error) {
	outcome := DayOutcome{Date: row.Date}
	log := a.logger.WithFields(logrus.Fields{
		"contact_id":       req.ContactID,
		"leave_request_id": req.ID,
		"holiday_date":     row.Date.String(),
	})

	changeType, err := s.ResolveOptionValue(ctx, leave.GroupBalanceChangeType, leave.ChangeTypePublicHoliday)
	if err != nil {
		return outcome, err
	}

	own, err := s.ListBalanceChangesBySource(ctx, leave.SourceLeaveRequestDay, string(row.ID))
	if err != nil {
		return outcome, fmt.Errorf("load balance changes for %s: %w", row.Date, err)
	}
	for _, c := range own {
		if c.TypeID == changeType && c.Amount.Equal(publicHolidayDeduction) {
			log.Debug("public holiday deduction already booked")
			outcome.Skipped = true
			outcome.Created = c.ID
			return outcome, nil
		}
	}

	overlapping, err := s.FindDayChanges(ctx, leave.DayChangeQuery{
		ContactID:        req.ContactID,
		TypeID:           req.TypeID,
		Date:             row.Date,
		ExcludeRequestID: req.ID,
		ActiveOnly:       true,
	})
	if err != nil {
		return outcome, fmt.Errorf("find overlapping deductions for %s: %w", row.Date, err)
	}
	for _, dc := range overlapping {
		zeroed := dc.Change
		zeroed.Amount = decimal.Zero
		if err := s.SaveBalanceChange(ctx, &zeroed); err != nil {
			return outcome, fmt.Errorf("zero balance change %s: %w", zeroed.ID, err)
		}
		outcome.Zeroed = append(outcome.Zeroed, zeroed.ID)
		log.WithField("balance_change_id", zeroed.ID).Info("zeroed overlapping deduction")
	}

	change := leave.LeaveBalanceChange{
		SourceID:   string(row.ID),
		SourceType: leave.SourceLeaveRequestDay,
		TypeID:     changeType,
		Amount:     publicHolidayDeduction,
	}
	if err := s.SaveBalanceChange(ctx, &change); err != nil {
		return outcome, fmt.Errorf("book public holiday deduction for %s: %w", row.Date, err)
	}
	outcome.Created = change.ID
	return outcome, nil
}

// sortedDates returns the request's date rows ordered by date.
func sortedDates(req leave.LeaveRequest) []leave.LeaveRequestDate {
	rows := append([]leave.LeaveRequestDate(nil), req.Dates...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}
