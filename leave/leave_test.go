package leave_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

func d(s string) leave.Date { return leave.MustParseDate(s) }

func datePtr(s string) *leave.Date {
	v := leave.MustParseDate(s)
	return &v
}

// =============================================================================
// DATE & PERIOD
// =============================================================================

func TestDate_ParseAndString(t *testing.T) {
	got, err := leave.ParseDate("2016-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2016-06-01", got.String())
	assert.True(t, got.Equal(leave.NewDate(2016, time.June, 1)))

	_, err = leave.ParseDate("01/06/2016")
	assert.Error(t, err)
}

func TestDate_DateOfTruncatesToDay(t *testing.T) {
	instant := time.Date(2016, time.June, 1, 23, 59, 0, 0, time.UTC)
	assert.True(t, leave.DateOf(instant).Equal(d("2016-06-01")))
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Day leave.Date `json:"day"`
	}

	b, err := json.Marshal(wrapper{Day: d("2016-06-01")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2016-06-01"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2017-01-02"}`), &w))
	assert.Equal(t, "2017-01-02", w.Day.String())

	assert.Error(t, json.Unmarshal([]byte(`{"day":"not-a-date"}`), &w))
}

func TestPeriod_DaysInclusive(t *testing.T) {
	p, err := leave.NewPeriod(d("2016-02-27"), d("2016-03-01"))
	require.NoError(t, err)

	days := p.Days()
	require.Len(t, days, 4, "2016 is a leap year")
	assert.Equal(t, "2016-02-29", days[2].String())
	assert.True(t, p.Contains(d("2016-02-27")))
	assert.True(t, p.Contains(d("2016-03-01")))
	assert.False(t, p.Contains(d("2016-03-02")))
}

func TestPeriod_RejectsReversedBounds(t *testing.T) {
	_, err := leave.NewPeriod(d("2016-03-01"), d("2016-02-01"))
	assert.ErrorIs(t, err, leave.ErrInvalidPeriod)
}

func TestPeriod_Overlaps(t *testing.T) {
	p := leave.Period{Start: d("2016-06-01"), End: d("2016-12-31")}

	assert.True(t, p.Overlaps(d("2016-01-01"), nil), "open-ended")
	assert.True(t, p.Overlaps(d("2016-01-01"), datePtr("2016-06-01")), "ends on first day")
	assert.False(t, p.Overlaps(d("2016-01-01"), datePtr("2016-05-31")))
	assert.False(t, p.Overlaps(d("2017-01-01"), nil))
}

// =============================================================================
// CONTRACT COVERAGE
// =============================================================================

func TestContract_Covers(t *testing.T) {
	tests := []struct {
		name     string
		contract leave.Contract
		holiday  string
		want     bool
	}{
		{"open-ended covers later holiday", leave.Contract{PeriodStart: d("2016-01-01")}, "2016-06-01", true},
		{"ends before holiday", leave.Contract{PeriodStart: d("2016-01-01"), PeriodEnd: datePtr("2016-05-31")}, "2016-06-01", false},
		{"ends on holiday", leave.Contract{PeriodStart: d("2016-01-01"), PeriodEnd: datePtr("2016-06-01")}, "2016-06-01", true},
		{"starts on holiday", leave.Contract{PeriodStart: d("2016-06-01")}, "2016-06-01", true},
		{"starts after holiday", leave.Contract{PeriodStart: d("2016-06-02")}, "2016-06-01", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.contract.Covers(d(tt.holiday)))
		})
	}
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestLeaveRequest_NormalizeDefaults(t *testing.T) {
	r := leave.LeaveRequest{FromDate: d("2016-06-01"), FromDateType: "1"}
	r.Normalize()

	assert.Equal(t, "2016-06-01", r.ToDate.String())
	assert.Equal(t, "1", r.ToDateType)
	assert.Equal(t, leave.RequestTypeLeave, r.RequestType)
}

func TestLeaveRequest_DateRowsOnePerDay(t *testing.T) {
	r := leave.LeaveRequest{ID: "lr-1", FromDate: d("2016-06-01"), ToDate: d("2016-06-03")}

	rows := r.DateRows()
	require.Len(t, rows, 3)
	for i, want := range []string{"2016-06-01", "2016-06-02", "2016-06-03"} {
		assert.Equal(t, want, rows[i].Date.String())
		assert.Equal(t, leave.LeaveRequestID("lr-1"), rows[i].LeaveRequestID)
	}
}

func TestLeaveRequest_Validate(t *testing.T) {
	valid := leave.LeaveRequest{
		ContactID: "c1", TypeID: "t1", StatusID: "1",
		FromDate: d("2016-06-01"), ToDate: d("2016-06-01"),
	}
	assert.NoError(t, valid.Validate())

	reversed := valid
	reversed.ToDate = d("2016-05-01")
	err := reversed.Validate()
	assert.ErrorIs(t, err, leave.ErrValidation)
	assert.True(t, leave.IsClientError(err))

	missing := valid
	missing.ContactID = ""
	var vErr *leave.ValidationError
	require.ErrorAs(t, missing.Validate(), &vErr)
	assert.Equal(t, "contact_id", vErr.Field)
}

// =============================================================================
// CANCELATION RULES
// =============================================================================

func TestAbsenceType_AllowsCancelation(t *testing.T) {
	r := leave.LeaveRequest{FromDate: d("2016-06-10")}

	tests := []struct {
		rule  leave.CancelationRule
		today string
		want  bool
	}{
		{leave.CancelationNo, "2016-06-01", false},
		{leave.CancelationAlways, "2016-07-01", true},
		{leave.CancelationInAdvanceOfStartDate, "2016-06-09", true},
		{leave.CancelationInAdvanceOfStartDate, "2016-06-10", false},
	}
	for _, tt := range tests {
		at := leave.AbsenceType{AllowRequestCancelation: tt.rule}
		assert.Equal(t, tt.want, at.AllowsCancelation(r, d(tt.today)), "rule %d on %s", tt.rule, tt.today)
	}
}

// =============================================================================
// BALANCE
// =============================================================================

type fixedResolver map[string]string

func (f fixedResolver) ResolveOptionValue(_ context.Context, group leave.OptionGroup, label string) (string, error) {
	if v, ok := f[label]; ok {
		return v, nil
	}
	return "", &leave.OptionNotFoundError{Group: group, Label: label}
}

func statusResolver() fixedResolver {
	return fixedResolver{
		leave.StatusApproved:                "1",
		leave.StatusAdminApproved:           "2",
		leave.StatusAwaitingApproval:        "3",
		leave.StatusMoreInformationRequired: "4",
		leave.StatusRejected:                "5",
		leave.StatusCancelled:               "6",
	}
}

func TestBalance_Remainders(t *testing.T) {
	// GIVEN: 20 days entitlement, 2 approved days, 1 public holiday, 1 pending day
	// THEN: current = 17, future = 16

	statuses, err := leave.ResolveStatuses(context.Background(), statusResolver())
	require.NoError(t, err)

	minusOne := decimal.NewFromInt(-1)
	changes := []leave.DayBalanceChange{
		{Change: leave.LeaveBalanceChange{Amount: minusOne}, Request: leave.LeaveRequest{StatusID: "1"}},
		{Change: leave.LeaveBalanceChange{Amount: minusOne}, Request: leave.LeaveRequest{StatusID: "1"}},
		{Change: leave.LeaveBalanceChange{Amount: minusOne}, Request: leave.LeaveRequest{StatusID: "2", IsPublicHoliday: true}},
		{Change: leave.LeaveBalanceChange{Amount: minusOne}, Request: leave.LeaveRequest{StatusID: "3"}},
		{Change: leave.LeaveBalanceChange{Amount: minusOne}, Request: leave.LeaveRequest{StatusID: "6"}},
	}

	b := leave.Balance{Entitlement: decimal.NewFromInt(20)}
	b.Accumulate(statuses, changes)

	assert.True(t, b.Approved.Equal(decimal.NewFromInt(-2)))
	assert.True(t, b.PublicHolidays.Equal(minusOne))
	assert.True(t, b.Pending.Equal(minusOne))
	assert.Equal(t, "17", b.Current().String())
	assert.Equal(t, "16", b.Future().String())
}

func TestEntitlementValue_SkipsExpired(t *testing.T) {
	changes := []leave.LeaveBalanceChange{
		{SourceType: leave.SourceEntitlement, Amount: decimal.NewFromInt(20)},
		{SourceType: leave.SourceEntitlement, Amount: decimal.NewFromInt(5), ExpiryDate: datePtr("2016-03-31")},
		{SourceType: leave.SourceLeaveRequestDay, Amount: decimal.NewFromInt(-1)},
	}

	assert.Equal(t, "25", leave.EntitlementValue(changes, d("2016-03-31")).String())
	assert.Equal(t, "20", leave.EntitlementValue(changes, d("2016-04-01")).String())
}

func TestResolveStatuses_MissingLabel(t *testing.T) {
	r := statusResolver()
	delete(r, leave.StatusCancelled)

	_, err := leave.ResolveStatuses(context.Background(), r)
	assert.ErrorIs(t, err, leave.ErrOptionNotFound)
	assert.True(t, leave.IsNotFound(err))
}

func TestDefaultOptions_SeedsEveryGroup(t *testing.T) {
	counts := map[leave.OptionGroup]int{}
	for _, o := range leave.DefaultOptions() {
		counts[o.Group]++
		assert.True(t, o.IsActive)
	}
	assert.Equal(t, 6, counts[leave.GroupLeaveRequestStatus])
	assert.Equal(t, 6, counts[leave.GroupLeaveRequestDayType])
	assert.Equal(t, 5, counts[leave.GroupBalanceChangeType])
}
