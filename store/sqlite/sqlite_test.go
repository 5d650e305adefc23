package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) leave.Date { return leave.MustParseDate(s) }

func datePtr(s string) *leave.Date {
	v := d(s)
	return &v
}

// =============================================================================
// MIGRATIONS & OPTIONS
// =============================================================================

func TestNew_SeedsOptionValues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.ResolveOptionValue(ctx, leave.GroupLeaveRequestStatus, leave.StatusAdminApproved)
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = store.ResolveOptionValue(ctx, leave.GroupBalanceChangeType, leave.ChangeTypePublicHoliday)
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	opts, err := store.ListOptions(ctx, leave.GroupLeaveRequestDayType)
	require.NoError(t, err)
	require.Len(t, opts, 6)
	assert.Equal(t, leave.DayTypeAllDay, opts[0].Label)
}

func TestResolveOptionValue_FollowsRelabelling(t *testing.T) {
	// GIVEN: an installation that moved "Admin Approved" to a different value
	// THEN: resolution returns the new value, nothing is hardcoded

	store := newTestStore(t)
	ctx := context.Background()

	old, err := store.GetOption(ctx, leave.GroupLeaveRequestStatus, "2")
	require.NoError(t, err)
	old.IsActive = false
	require.NoError(t, store.SaveOption(ctx, &old))

	moved := leave.OptionValue{
		Group: leave.GroupLeaveRequestStatus, Value: "42", Name: "admin_approved",
		Label: leave.StatusAdminApproved, Weight: 7, IsActive: true,
	}
	require.NoError(t, store.SaveOption(ctx, &moved))

	v, err := store.ResolveOptionValue(ctx, leave.GroupLeaveRequestStatus, leave.StatusAdminApproved)
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestResolveOptionValue_Unknown(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ResolveOptionValue(context.Background(), leave.GroupLeaveRequestStatus, "Nope")
	assert.ErrorIs(t, err, leave.ErrOptionNotFound)
}

// =============================================================================
// CONTRACTS & HOLIDAYS
// =============================================================================

func TestGetContractsOverlapping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	open := leave.Contract{ContactID: "c1", PeriodStart: d("2016-01-01")}
	ended := leave.Contract{ContactID: "c2", PeriodStart: d("2015-01-01"), PeriodEnd: datePtr("2016-05-31")}
	later := leave.Contract{ContactID: "c3", PeriodStart: d("2017-02-01")}
	for _, c := range []*leave.Contract{&open, &ended, &later} {
		require.NoError(t, store.SaveContract(ctx, c))
	}

	got, err := store.GetContractsOverlapping(ctx, d("2016-06-01"), d("2016-12-26"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)
	assert.Nil(t, got[0].PeriodEnd)

	got, err = store.GetContractsOverlapping(ctx, d("2016-05-01"), d("2017-12-31"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ended.ID, got[0].ID, "ordered by period start")
}

func TestGetActiveHolidaysFrom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, h := range []leave.PublicHoliday{
		{Title: "Christmas", Date: d("2016-12-25"), IsActive: true},
		{Title: "Early May", Date: d("2016-05-02"), IsActive: true},
		{Title: "Past", Date: d("2016-01-01"), IsActive: true},
		{Title: "Disabled", Date: d("2016-08-29"), IsActive: false},
	} {
		require.NoError(t, store.SaveHoliday(ctx, &h))
	}

	got, err := store.GetActiveHolidaysFrom(ctx, d("2016-05-02"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Early May", got[0].Title)
	assert.Equal(t, "Christmas", got[1].Title)
}

// =============================================================================
// ABSENCE TYPES
// =============================================================================

func TestSaveAbsenceType_SinglePublicHolidayType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := leave.AbsenceType{Title: "Annual Leave", MustTakePublicHolidayAsLeave: true, IsActive: true}
	require.NoError(t, store.SaveAbsenceType(ctx, &first))

	second := leave.AbsenceType{Title: "TOIL", MustTakePublicHolidayAsLeave: true, IsActive: true}
	err := store.SaveAbsenceType(ctx, &second)
	assert.ErrorIs(t, err, leave.ErrValidation)

	// An inactive flagged type does not clash.
	inactive := leave.AbsenceType{Title: "Old Annual", MustTakePublicHolidayAsLeave: true}
	require.NoError(t, store.SaveAbsenceType(ctx, &inactive))

	got, err := store.GetPublicHolidayAbsenceType(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, leave.CancelationNo, got.AllowRequestCancelation)
}

func TestGetAbsenceType_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetAbsenceType(context.Background(), "missing")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// LEAVE REQUESTS & LEDGER
// =============================================================================

func saveRequest(t *testing.T, store leave.Store, contact leave.ContactID, typeID leave.AbsenceTypeID, from, to string) leave.LeaveRequest {
	t.Helper()
	r := leave.LeaveRequest{
		ContactID: contact, TypeID: typeID, StatusID: "1",
		FromDate: d(from), ToDate: d(to), FromDateType: "1",
	}
	require.NoError(t, store.SaveLeaveRequest(context.Background(), &r))
	return r
}

func deduct(t *testing.T, store leave.Store, row leave.LeaveRequestDate) leave.LeaveBalanceChange {
	t.Helper()
	c := leave.LeaveBalanceChange{
		SourceID:   string(row.ID),
		SourceType: leave.SourceLeaveRequestDay,
		TypeID:     "1",
		Amount:     decimal.NewFromInt(-1),
	}
	require.NoError(t, store.SaveBalanceChange(context.Background(), &c))
	return c
}

func TestSaveLeaveRequest_CreatesDateRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := saveRequest(t, store, "c1", "annual", "2016-06-01", "2016-06-03")
	require.Len(t, r.Dates, 3)

	got, err := store.GetLeaveRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Dates, 3)
	assert.Equal(t, "2016-06-02", got.Dates[1].Date.String())
	assert.Equal(t, leave.RequestTypeLeave, got.RequestType)
	assert.Equal(t, "1", got.ToDateType, "defaults to from_date_type")
}

func TestSaveLeaveRequest_UpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := saveRequest(t, store, "c1", "annual", "2016-06-01", "2016-06-01")
	update := leave.LeaveRequest{ID: r.ID, StatusID: "6"}
	require.NoError(t, store.SaveLeaveRequest(ctx, &update))

	assert.Equal(t, "6", update.StatusID)
	assert.Equal(t, "1", update.FromDateType, "untouched")
	assert.Len(t, update.Dates, 1)

	missing := leave.LeaveRequest{ID: "nope", StatusID: "6"}
	assert.ErrorIs(t, store.SaveLeaveRequest(ctx, &missing), leave.ErrNotFound)
}

func TestListLeaveRequests_Filter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveRequest(t, store, "c1", "annual", "2016-06-01", "2016-06-03")
	saveRequest(t, store, "c1", "sick", "2016-07-01", "2016-07-01")
	saveRequest(t, store, "c2", "annual", "2016-06-02", "2016-06-02")

	got, err := store.ListLeaveRequests(ctx, leave.LeaveRequestFilter{
		ContactID: "c1", From: datePtr("2016-06-03"), To: datePtr("2016-12-31"),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[0].Dates, 3)
	assert.Equal(t, leave.AbsenceTypeID("sick"), got[1].TypeID)
}

func TestHasPublicHolidayRequest_ByContract(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: a public holiday request generated for contract k1
	r := leave.LeaveRequest{
		ContactID: "c1", TypeID: "annual", StatusID: "2",
		FromDate: d("2016-06-01"), FromDateType: "1",
		IsPublicHoliday: true, ContractID: "k1",
	}
	require.NoError(t, store.SaveLeaveRequest(ctx, &r))

	got, err := store.GetLeaveRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.ContractID("k1"), got.ContractID)

	tests := []struct {
		name string
		q    leave.PublicHolidayRequestQuery
		want bool
	}{
		{"any contract", leave.PublicHolidayRequestQuery{ContactID: "c1", TypeID: "annual", Date: d("2016-06-01")}, true},
		{"same contract", leave.PublicHolidayRequestQuery{ContactID: "c1", TypeID: "annual", Date: d("2016-06-01"), ContractID: "k1"}, true},
		{"other contract", leave.PublicHolidayRequestQuery{ContactID: "c1", TypeID: "annual", Date: d("2016-06-01"), ContractID: "k2"}, false},
		{"other date", leave.PublicHolidayRequestQuery{ContactID: "c1", TypeID: "annual", Date: d("2016-06-02")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := store.HasPublicHolidayRequest(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, exists)
		})
	}
}

func TestFindDayChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mine := saveRequest(t, store, "c1", "annual", "2016-06-01", "2016-06-01")
	other := saveRequest(t, store, "c1", "annual", "2016-05-31", "2016-06-02")
	deduct(t, store, mine.Dates[0])
	old := deduct(t, store, other.Dates[1])

	found, err := store.FindDayChanges(ctx, leave.DayChangeQuery{
		ContactID: "c1", TypeID: "annual", Date: d("2016-06-01"),
		ExcludeRequestID: mine.ID, ActiveOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, old.ID, found[0].Change.ID)
	assert.Equal(t, other.ID, found[0].Request.ID)
	assert.Equal(t, "2016-06-01", found[0].Date.String())

	// Zeroed changes drop out of the active set.
	old.Amount = decimal.Zero
	require.NoError(t, store.SaveBalanceChange(ctx, &old))

	found, err = store.FindDayChanges(ctx, leave.DayChangeQuery{
		ContactID: "c1", TypeID: "annual", Date: d("2016-06-01"),
		ExcludeRequestID: mine.ID, ActiveOnly: true,
	})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestListDayChanges_Period(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := saveRequest(t, store, "c1", "annual", "2016-12-30", "2017-01-02")
	for _, row := range r.Dates {
		deduct(t, store, row)
	}

	got, err := store.ListDayChanges(ctx, "c1", "", leave.Period{Start: d("2017-01-01"), End: d("2017-12-31")})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Change.Amount.Equal(decimal.NewFromInt(-1)))
}

func TestEntitlementChanges_RoundTripDecimal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := leave.Entitlement{ContactID: "c1", TypeID: "annual", PeriodID: "p2016"}
	require.NoError(t, store.SaveEntitlement(ctx, &e))

	c := leave.LeaveBalanceChange{
		SourceID: string(e.ID), SourceType: leave.SourceEntitlement, TypeID: "1",
		Amount: decimal.RequireFromString("20.5"), ExpiryDate: datePtr("2016-12-31"),
	}
	require.NoError(t, store.SaveBalanceChange(ctx, &c))

	got, err := store.ListBalanceChangesBySource(ctx, leave.SourceEntitlement, string(e.ID))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "20.5", got[0].Amount.String())
	require.NotNil(t, got[0].ExpiryDate)
	assert.Equal(t, "2016-12-31", got[0].ExpiryDate.String())

	list, err := store.ListEntitlements(ctx, "c1", "p2016")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackKeepsLedgerIntact(t *testing.T) {
	// GIVEN: a change zeroed inside a transaction whose second write fails
	// WHEN: the transaction rolls back
	// THEN: the original amount is still there

	store := newTestStore(t)
	ctx := context.Background()

	r := saveRequest(t, store, "c1", "annual", "2016-06-01", "2016-06-01")
	old := deduct(t, store, r.Dates[0])

	err := store.WithTx(ctx, func(tx leave.Store) error {
		zeroed := old
		zeroed.Amount = decimal.Zero
		if err := tx.SaveBalanceChange(ctx, &zeroed); err != nil {
			return err
		}
		bad := leave.LeaveBalanceChange{SourceType: leave.SourceLeaveRequestDay, TypeID: "3"}
		return tx.SaveBalanceChange(ctx, &bad)
	})
	assert.ErrorIs(t, err, leave.ErrValidation)

	got, err := store.ListBalanceChangesBySource(ctx, leave.SourceLeaveRequestDay, string(r.Dates[0].ID))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "-1", got[0].Amount.String())
}

func TestWithTx_Commit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, store.WithTx(ctx, func(tx leave.Store) error {
		c := leave.Contract{ContactID: "c1", PeriodStart: d("2016-01-01")}
		return tx.SaveContract(ctx, &c)
	}))
	assert.ErrorIs(t, store.WithTx(ctx, func(tx leave.Store) error {
		c := leave.Contract{ContactID: "c2", PeriodStart: d("2016-01-01")}
		if err := tx.SaveContract(ctx, &c); err != nil {
			return err
		}
		return boom
	}), boom)

	all, err := store.ListContracts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, leave.ContactID("c1"), all[0].ContactID)
}
