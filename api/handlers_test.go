/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Trigger wiring (absence type, holiday and contract creation)
- Validation and error status mapping
- Leave request creation, update and cancellation
- Entitlements, options, admin run and health
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
	"github.com/warp/leave-engine/publicholiday"
	"github.com/warp/leave-engine/store/sqlite"
)

var testNow = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	h      *Handler
	router *chi.Mux
}

func newTestServer(t *testing.T, s leave.TxStore) *testServer {
	t.Helper()
	if s == nil {
		s = store.NewMemory()
	}
	opts := publicholiday.DefaultOptions()
	opts.Now = func() time.Time { return testNow }
	h := NewHandler(s, events.NewBus(nil), opts, nil)
	t.Cleanup(h.Close)
	return &testServer{t: t, h: h, router: NewRouter(h, nil)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// mustDo sends a request and requires the given status.
func (s *testServer) mustDo(method, path string, body any, status int) *httptest.ResponseRecorder {
	s.t.Helper()
	rec := s.do(method, path, body)
	require.Equal(s.t, status, rec.Code, rec.Body.String())
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) period(name, start, end string) AbsencePeriodDTO {
	rec := s.mustDo(http.MethodPost, "/api/absence-periods", CreateAbsencePeriodRequest{Name: name, StartDate: start, EndDate: end}, http.StatusCreated)
	return decodeBody[AbsencePeriodDTO](s.t, rec)
}

func (s *testServer) absenceType(req SaveAbsenceTypeRequest) AbsenceTypeDTO {
	rec := s.mustDo(http.MethodPost, "/api/absence-types", req, http.StatusCreated)
	return decodeBody[AbsenceTypeDTO](s.t, rec)
}

func (s *testServer) contract(contact, start, end string) ContractDTO {
	rec := s.mustDo(http.MethodPost, "/api/contracts", CreateContractRequest{ContactID: contact, PeriodStart: start, PeriodEnd: end}, http.StatusCreated)
	return decodeBody[ContractDTO](s.t, rec)
}

func (s *testServer) holiday(title, date string) PublicHolidayDTO {
	rec := s.mustDo(http.MethodPost, "/api/public-holidays", CreatePublicHolidayRequest{Title: title, Date: date}, http.StatusCreated)
	return decodeBody[PublicHolidayDTO](s.t, rec)
}

func (s *testServer) leaveRequest(req CreateLeaveRequestRequest) LeaveRequestDTO {
	rec := s.mustDo(http.MethodPost, "/api/leave-requests", req, http.StatusCreated)
	return decodeBody[LeaveRequestDTO](s.t, rec)
}

func (s *testServer) holidayRequests(contact string) []LeaveRequestDTO {
	rec := s.mustDo(http.MethodGet, "/api/leave-requests?public_holiday=true&contact_id="+contact, nil, http.StatusOK)
	return decodeBody[[]LeaveRequestDTO](s.t, rec)
}

func annual() SaveAbsenceTypeRequest {
	return SaveAbsenceTypeRequest{Title: "Annual", MustTakePublicHolidayAsLeave: true, AllowRequestCancelation: 3}
}

// =============================================================================
// TRIGGERS
// =============================================================================

func TestCreateHoliday_BooksLeaveForCoveringContracts(t *testing.T) {
	s := newTestServer(t, nil)

	// GIVEN: a flagged absence type and two contracts, one ending in April
	at := s.absenceType(annual())
	s.contract("c1", "2025-01-01", "")
	s.contract("c2", "2025-01-01", "2026-04-30")

	// WHEN: a holiday in May is created
	s.holiday("Early May Bank Holiday", "2026-05-04")

	// THEN: only the contract covering it gets public holiday leave
	got := s.holidayRequests("c1")
	require.Len(t, got, 1)
	assert.Equal(t, at.ID, got[0].TypeID)
	assert.Equal(t, "2026-05-04", got[0].FromDate)
	assert.Equal(t, "2", got[0].StatusID, "Admin Approved")
	assert.Equal(t, []string{"2026-05-04"}, got[0].Dates)
	assert.Empty(t, s.holidayRequests("c2"))
}

func TestCreateHoliday_PastHolidayBooksNothing(t *testing.T) {
	s := newTestServer(t, nil)
	s.absenceType(annual())
	s.contract("c1", "2025-01-01", "")

	s.holiday("New Year's Day", "2026-01-01")

	assert.Empty(t, s.holidayRequests("c1"))
}

func TestCreateContract_BooksFutureHolidays(t *testing.T) {
	s := newTestServer(t, nil)
	s.absenceType(annual())
	s.holiday("New Year's Day", "2026-01-01")
	s.holiday("Good Friday", "2026-04-03")
	s.holiday("Christmas Day", "2026-12-25")

	// WHEN: a contract ending in November is created
	s.contract("c1", "2026-01-01", "2026-11-30")

	// THEN: only Good Friday is booked
	got := s.holidayRequests("c1")
	require.Len(t, got, 1)
	assert.Equal(t, "2026-04-03", got[0].FromDate)
}

func TestSaveAbsenceType_FlaggedTriggersLeave(t *testing.T) {
	s := newTestServer(t, nil)

	// GIVEN: holidays and contracts but no flagged type
	s.holiday("Good Friday", "2026-04-03")
	s.holiday("Easter Monday", "2026-04-06")
	s.contract("c1", "2025-01-01", "")
	assert.Empty(t, s.holidayRequests("c1"))

	unflagged := s.absenceType(SaveAbsenceTypeRequest{Title: "Sick", AllowRequestCancelation: 1})
	assert.Empty(t, s.holidayRequests("c1"))

	// WHEN: the type is flagged
	req := annual()
	req.Title = "Sick"
	s.mustDo(http.MethodPut, "/api/absence-types/"+unflagged.ID, req, http.StatusOK)

	// THEN: both holidays are booked
	assert.Len(t, s.holidayRequests("c1"), 2)

	// AND: a second flagged type is rejected
	rec := s.do(http.MethodPost, "/api/absence-types", annual())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// VALIDATION AND ERRORS
// =============================================================================

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{"malformed json", http.MethodPost, "/api/contracts", "{", http.StatusBadRequest, "body"},
		{"missing contact", http.MethodPost, "/api/contracts", CreateContractRequest{PeriodStart: "2026-01-01"}, http.StatusBadRequest, "contact_id"},
		{"bad contract date", http.MethodPost, "/api/contracts", CreateContractRequest{ContactID: "c1", PeriodStart: "01/01/2026"}, http.StatusBadRequest, "period_start"},
		{"contract ends before start", http.MethodPost, "/api/contracts", CreateContractRequest{ContactID: "c1", PeriodStart: "2026-02-01", PeriodEnd: "2026-01-01"}, http.StatusBadRequest, "period_end"},
		{"bad cancellation rule", http.MethodPost, "/api/absence-types", SaveAbsenceTypeRequest{Title: "X", AllowRequestCancelation: 9}, http.StatusBadRequest, "allow_request_cancelation"},
		{"bad amount", http.MethodPost, "/api/entitlements", CreateEntitlementRequest{ContactID: "c1", TypeID: "t", PeriodID: "p", Amount: "lots"}, http.StatusBadRequest, "amount"},
		{"unknown status label", http.MethodPost, "/api/leave-requests", CreateLeaveRequestRequest{ContactID: "c1", TypeID: "t", FromDate: "2026-02-01", Status: "Bogus"}, http.StatusBadRequest, "status"},
		{"bad request type", http.MethodPost, "/api/leave-requests", CreateLeaveRequestRequest{ContactID: "c1", TypeID: "t", FromDate: "2026-02-01", RequestType: "holiday"}, http.StatusBadRequest, "request_type"},
		{"unknown option group", http.MethodGet, "/api/options/colours", nil, http.StatusBadRequest, "group"},
		{"unknown report section", http.MethodGet, "/api/contacts/c1/report?sections=approved,bogus", nil, http.StatusBadRequest, "section"},
		{"bad public holiday filter", http.MethodGet, "/api/leave-requests?public_holiday=maybe", nil, http.StatusBadRequest, "public_holiday"},
		{"unknown absence type", http.MethodGet, "/api/absence-types/nope", nil, http.StatusNotFound, ""},
		{"unknown leave request", http.MethodPost, "/api/leave-requests/nope/cancel", nil, http.StatusNotFound, ""},
		{"unknown holiday", http.MethodDelete, "/api/public-holidays/nope", nil, http.StatusNotFound, ""},
		{"leave for unknown type", http.MethodPost, "/api/leave-requests", CreateLeaveRequestRequest{ContactID: "c1", TypeID: "nope", FromDate: "2026-02-01"}, http.StatusNotFound, ""},
		{"no current period", http.MethodGet, "/api/contacts/c1/report", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decodeBody[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			if tt.field != "" {
				assert.Contains(t, resp.Details, tt.field)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&leave.ValidationError{Field: "x", Message: "bad"}, http.StatusBadRequest},
		{&leave.InvalidConfigurationError{AbsenceTypeID: "t", Reason: "not flagged"}, http.StatusBadRequest},
		{leave.ErrNoPublicHolidayAbsenceType, http.StatusBadRequest},
		{&leave.NotFoundError{Kind: "contract", ID: "c"}, http.StatusNotFound},
		{&leave.OptionNotFoundError{Group: leave.GroupLeaveRequestStatus, Label: "x"}, http.StatusNotFound},
		{leave.ErrCancelNotAllowed, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestCreateLeaveRequest_DefaultsAndActions(t *testing.T) {
	s := newTestServer(t, nil)
	at := s.absenceType(SaveAbsenceTypeRequest{Title: "Annual", AllowRequestCancelation: 2})

	// WHEN: a request is created with labels left out
	lr := s.leaveRequest(CreateLeaveRequestRequest{ContactID: "c1", TypeID: at.ID, FromDate: "2026-03-02", ToDate: "2026-03-04"})

	// THEN: it is awaiting approval, all day, ordinary leave
	assert.Equal(t, "3", lr.StatusID)
	assert.Equal(t, "1", lr.FromDateType)
	assert.Equal(t, "1", lr.ToDateType)
	assert.Equal(t, "leave", lr.RequestType)
	assert.Equal(t, []string{"2026-03-02", "2026-03-03", "2026-03-04"}, lr.Dates)

	got := decodeBody[LeaveRequestDTO](t, s.mustDo(http.MethodGet, "/api/leave-requests/"+lr.ID, nil, http.StatusOK))
	assert.Equal(t, []string{"edit", "cancel"}, got.Actions)
}

func TestUpdateLeaveRequest_PublishesEdit(t *testing.T) {
	s := newTestServer(t, nil)
	at := s.absenceType(SaveAbsenceTypeRequest{Title: "Annual", AllowRequestCancelation: 2})
	lr := s.leaveRequest(CreateLeaveRequestRequest{ContactID: "c1", TypeID: at.ID, FromDate: "2026-03-02"})

	var seen []events.Event
	unsub := s.h.Bus.Subscribe(events.TopicLeaveRequestEdited, func(_ context.Context, e events.Event) {
		seen = append(seen, e)
	})
	defer unsub()

	rec := s.mustDo(http.MethodPut, "/api/leave-requests/"+lr.ID, UpdateLeaveRequestRequest{Status: "Approved", FromDateType: "Half Day AM"}, http.StatusOK)
	got := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "1", got.StatusID)
	assert.Equal(t, "2", got.FromDateType)

	require.Len(t, seen, 1)
	assert.Equal(t, leave.LeaveRequestID(lr.ID), seen[0].LeaveRequestID)
	assert.Equal(t, leave.ContactID("c1"), seen[0].ContactID)
}

func TestCancelLeaveRequest(t *testing.T) {
	s := newTestServer(t, nil)
	s.period("2026", "2026-01-01", "2026-12-31")
	always := s.absenceType(SaveAbsenceTypeRequest{Title: "Sick", AllowRequestCancelation: 2})
	inAdvance := s.absenceType(SaveAbsenceTypeRequest{Title: "Annual", AllowRequestCancelation: 3})

	// GIVEN: an approved request of a type that may always be cancelled
	lr := s.leaveRequest(CreateLeaveRequestRequest{ContactID: "c1", TypeID: always.ID, Status: "Approved", FromDate: "2026-01-05"})

	// WHEN: it is cancelled
	rec := s.mustDo(http.MethodPost, "/api/leave-requests/"+lr.ID+"/cancel", nil, http.StatusOK)

	// THEN: it is cancelled and cannot be cancelled again
	assert.Equal(t, "6", decodeBody[LeaveRequestDTO](t, rec).StatusID)
	rec = s.do(http.MethodPost, "/api/leave-requests/"+lr.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: a started request of an in-advance type cannot be cancelled
	started := s.leaveRequest(CreateLeaveRequestRequest{ContactID: "c1", TypeID: inAdvance.ID, Status: "Approved", FromDate: "2026-01-10"})
	rec = s.do(http.MethodPost, "/api/leave-requests/"+started.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: a future one can, even outside any absence period
	future := s.leaveRequest(CreateLeaveRequestRequest{ContactID: "c1", TypeID: inAdvance.ID, Status: "Awaiting Approval", FromDate: "2027-02-01"})
	s.mustDo(http.MethodPost, "/api/leave-requests/"+future.ID+"/cancel", nil, http.StatusOK)
}

// =============================================================================
// OTHER ENDPOINTS
// =============================================================================

func TestDeleteHoliday_Deactivates(t *testing.T) {
	s := newTestServer(t, nil)
	ph := s.holiday("Good Friday", "2026-04-03")

	rec := s.mustDo(http.MethodDelete, "/api/public-holidays/"+ph.ID, nil, http.StatusOK)
	assert.False(t, decodeBody[PublicHolidayDTO](t, rec).IsActive)

	list := decodeBody[[]PublicHolidayDTO](t, s.mustDo(http.MethodGet, "/api/public-holidays", nil, http.StatusOK))
	require.Len(t, list, 1)
	assert.False(t, list[0].IsActive)

	// a deactivated holiday is not booked for new contracts
	s.absenceType(annual())
	s.contract("c1", "2025-01-01", "")
	assert.Empty(t, s.holidayRequests("c1"))
}

func TestEntitlements(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.period("2026", "2026-01-01", "2026-12-31")
	at := s.absenceType(SaveAbsenceTypeRequest{Title: "Annual"})

	rec := s.mustDo(http.MethodPost, "/api/entitlements", CreateEntitlementRequest{
		ContactID: "c1", TypeID: at.ID, PeriodID: p.ID, Amount: "12.5", Comment: "part time",
	}, http.StatusCreated)
	assert.Equal(t, "12.5", decodeBody[EntitlementDTO](t, rec).Amount)

	list := decodeBody[[]EntitlementDTO](t, s.mustDo(http.MethodGet, "/api/entitlements?contact_id=c1", nil, http.StatusOK))
	require.Len(t, list, 1)
	assert.Equal(t, "12.5", list[0].Amount)
	assert.Equal(t, "part time", list[0].Comment)

	rec = s.do(http.MethodPost, "/api/entitlements", CreateEntitlementRequest{ContactID: "c1", TypeID: at.ID, PeriodID: "nope", Amount: "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOptions(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.mustDo(http.MethodGet, "/api/options/"+string(leave.GroupLeaveRequestStatus), nil, http.StatusOK)
	opts := decodeBody[[]OptionDTO](t, rec)
	require.Len(t, opts, 6)
	assert.Equal(t, "Approved", opts[0].Label)
	assert.Equal(t, "Cancelled", opts[5].Label)
}

func TestAdminPublicHolidayLeave(t *testing.T) {
	s := newTestServer(t, nil)
	sick := s.absenceType(SaveAbsenceTypeRequest{Title: "Sick"})
	s.holiday("Good Friday", "2026-04-03")
	s.contract("c1", "2025-01-01", "")

	// unflagged types are a configuration error
	rec := s.do(http.MethodPost, "/api/admin/public-holiday-leave", PublicHolidayLeaveRequest{AbsenceTypeID: sick.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a flagged type saved while inactive is booked on demand
	req := annual()
	inactive := false
	req.IsActive = &inactive
	at := s.absenceType(req)
	assert.Empty(t, s.holidayRequests("c1"))

	active := true
	req.IsActive = &active
	s.mustDo(http.MethodPut, "/api/absence-types/"+at.ID, req, http.StatusOK)
	rec = s.mustDo(http.MethodPost, "/api/admin/public-holiday-leave", PublicHolidayLeaveRequest{AbsenceTypeID: at.ID}, http.StatusOK)
	res := decodeBody[PublicHolidayLeaveResultDTO](t, rec)
	assert.Zero(t, res.Created, "already booked by the update")
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, s.holidayRequests("c1"), 1)
}

func TestHealth_SQLite(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := newTestServer(t, db)
	s.mustDo(http.MethodGet, "/healthz", nil, http.StatusOK)

	// the triggers work the same against SQLite
	s.absenceType(annual())
	s.contract("c1", "2025-01-01", "")
	s.holiday("Good Friday", "2026-04-03")
	assert.Len(t, s.holidayRequests("c1"), 1)
}
