/*
balance_test.go - Leave report balances over HTTP

Tests for:
- Remainders after a public holiday lands on booked leave
- Lazy section loading through the report endpoint
- Cached views following leave events
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type balanceFixture struct {
	s       *testServer
	typeID  string
	period  AbsencePeriodDTO
	request LeaveRequestDTO
}

// newBalanceFixture books, for contact c1 in 2026:
//
//	entitlement 20
//	approved 2026-05-04..05 (-2)
//	pending 2026-06-01 (-1)
//	public holiday 2026-05-04, created last
func newBalanceFixture(t *testing.T) *balanceFixture {
	s := newTestServer(t, nil)
	f := &balanceFixture{s: s}

	f.period = s.period("2026", "2026-01-01", "2026-12-31")
	s.period("2025", "2025-01-01", "2025-12-31")
	f.typeID = s.absenceType(annual()).ID
	s.contract("c1", "2025-01-01", "")
	s.mustDo(http.MethodPost, "/api/entitlements", CreateEntitlementRequest{
		ContactID: "c1", TypeID: f.typeID, PeriodID: f.period.ID, Amount: "20",
	}, http.StatusCreated)

	f.request = s.leaveRequest(CreateLeaveRequestRequest{
		ContactID: "c1", TypeID: f.typeID, Status: "Approved",
		FromDate: "2026-05-04", ToDate: "2026-05-05",
	})
	s.leaveRequest(CreateLeaveRequestRequest{
		ContactID: "c1", TypeID: f.typeID, FromDate: "2026-06-01",
	})
	s.holiday("Early May Bank Holiday", "2026-05-04")
	return f
}

func (f *balanceFixture) report(query string) ReportResponse {
	rec := f.s.mustDo(http.MethodGet, "/api/contacts/c1/report"+query, nil, http.StatusOK)
	return decodeBody[ReportResponse](f.s.t, rec)
}

func (f *balanceFixture) summary(r ReportResponse) TypeSummaryDTO {
	for _, ts := range r.Summary {
		if ts.AbsenceType.ID == f.typeID {
			return ts
		}
	}
	f.s.t.Fatalf("absence type %s missing from summary", f.typeID)
	return TypeSummaryDTO{}
}

func TestReport_PublicHolidayReplacesBookedDay(t *testing.T) {
	f := newBalanceFixture(t)

	// WHEN: the current report is read
	r := f.report("")

	// THEN: the holiday costs one day instead of the booked one
	assert.Equal(t, f.period.ID, r.Period.ID)
	ts := f.summary(r)
	assert.Equal(t, "20", ts.Entitlement)
	assert.Equal(t, "-1", ts.BalanceChanges.Approved)
	assert.Equal(t, "-1", ts.BalanceChanges.PublicHolidays)
	assert.Equal(t, "-1", ts.BalanceChanges.Pending)
	assert.Equal(t, "18", ts.Remainder.Current)
	assert.Equal(t, "17", ts.Remainder.Future)
}

func TestReport_SectionsOpenOnRequest(t *testing.T) {
	f := newBalanceFixture(t)

	r := f.report("")
	for name, sec := range r.Sections {
		assert.False(t, sec.Open, name)
		assert.Empty(t, sec.Requests, name)
	}

	r = f.report("?sections=approved,holidays,entitlements")
	approved := r.Sections["approved"]
	assert.True(t, approved.Open)
	require.Len(t, approved.Requests, 1)
	assert.Equal(t, f.request.ID, approved.Requests[0].ID)
	assert.Equal(t, "-1", approved.Requests[0].BalanceChange)

	holidays := r.Sections["holidays"]
	require.Len(t, holidays.Requests, 1)
	assert.True(t, holidays.Requests[0].IsPublicHoliday)
	assert.Equal(t, "-1", holidays.Requests[0].BalanceChange)

	require.Len(t, r.Sections["entitlements"].Breakdown, 1)
	assert.Equal(t, "20", r.Sections["entitlements"].Breakdown[0].Amount)
	assert.False(t, r.Sections["pending"].Open)
}

func TestReport_ExplicitPeriod(t *testing.T) {
	f := newBalanceFixture(t)

	var past AbsencePeriodDTO
	for _, p := range decodeBody[[]AbsencePeriodDTO](t, f.s.mustDo(http.MethodGet, "/api/absence-periods", nil, http.StatusOK)) {
		if p.Name == "2025" {
			past = p
		}
	}
	require.NotEmpty(t, past.ID)

	r := f.report("?period_id=" + past.ID)
	assert.Equal(t, "2025", r.Period.Name)
	// no entitlement and no overuse: the type is hidden
	assert.Empty(t, r.Summary)
}

func TestReport_CachedViewFollowsEvents(t *testing.T) {
	f := newBalanceFixture(t)

	// GIVEN: an open report with the pending section loaded
	r := f.report("?sections=pending,other")
	require.Len(t, r.Sections["pending"].Requests, 1)
	pendingID := r.Sections["pending"].Requests[0].ID

	// WHEN: the pending request is cancelled and another one approved
	f.s.mustDo(http.MethodPost, "/api/leave-requests/"+pendingID+"/cancel", nil, http.StatusOK)
	f.s.leaveRequest(CreateLeaveRequestRequest{
		ContactID: "c1", TypeID: f.typeID, Status: "Approved", FromDate: "2026-07-01",
	})

	// THEN: the cached view already reflects both
	r = f.report("")
	assert.Empty(t, r.Sections["pending"].Requests)
	require.Len(t, r.Sections["other"].Requests, 1)
	assert.Equal(t, pendingID, r.Sections["other"].Requests[0].ID)
	assert.Equal(t, "6", r.Sections["other"].Requests[0].StatusID)

	ts := f.summary(r)
	assert.Equal(t, "-2", ts.BalanceChanges.Approved)
	assert.Equal(t, "0", ts.BalanceChanges.Pending)
	assert.Equal(t, "17", ts.Remainder.Current)
	assert.Equal(t, "17", ts.Remainder.Future)
}
