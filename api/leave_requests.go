package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/report"
)

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// ListLeaveRequests returns requests matching the query.
// GET /api/leave-requests?contact_id=&type_id=&public_holiday=&request_type=
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := leave.LeaveRequestFilter{
		ContactID:   leave.ContactID(q.Get("contact_id")),
		TypeID:      leave.AbsenceTypeID(q.Get("type_id")),
		RequestType: leave.RequestType(q.Get("request_type")),
	}
	if v := q.Get("public_holiday"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeDomainError(w, "Invalid filter", &leave.ValidationError{Field: "public_holiday", Message: "must be true or false"})
			return
		}
		f.PublicHoliday = &b
	}

	requests, err := h.Store.ListLeaveRequests(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, "Failed to list leave requests", err)
		return
	}
	dtos := make([]LeaveRequestDTO, len(requests))
	for i, lr := range requests {
		dtos[i] = toLeaveRequestDTO(lr)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeaveRequest returns one request with the actions its status allows.
// GET /api/leave-requests/{id}
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lr, err := h.Store.GetLeaveRequest(ctx, leave.LeaveRequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get leave request", err)
		return
	}
	actions, err := h.Reports.ActionsFor(ctx, lr)
	if err != nil {
		h.writeDomainError(w, "Failed to get leave request actions", err)
		return
	}

	dto := toLeaveRequestDTO(lr)
	for _, a := range actions {
		dto.Actions = append(dto.Actions, string(a))
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateLeaveRequest books a request and its balance changes.
// POST /api/leave-requests
func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateLeaveRequestRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}

	lr := leave.LeaveRequest{
		ContactID:   leave.ContactID(req.ContactID),
		TypeID:      leave.AbsenceTypeID(req.TypeID),
		RequestType: leave.RequestType(req.RequestType),
	}
	var err error
	if lr.FromDate, err = parseDateField("from_date", req.FromDate); err != nil {
		h.writeDomainError(w, "Invalid from date", err)
		return
	}
	if req.ToDate != "" {
		if lr.ToDate, err = parseDateField("to_date", req.ToDate); err != nil {
			h.writeDomainError(w, "Invalid to date", err)
			return
		}
	}
	if lr.StatusID, err = h.optionValue(ctx, leave.GroupLeaveRequestStatus, "status", orDefault(req.Status, leave.StatusAwaitingApproval)); err != nil {
		h.writeDomainError(w, "Invalid status", err)
		return
	}
	if lr.FromDateType, err = h.optionValue(ctx, leave.GroupLeaveRequestDayType, "from_date_type", orDefault(req.FromDateType, leave.DayTypeAllDay)); err != nil {
		h.writeDomainError(w, "Invalid from date type", err)
		return
	}
	if lr.ToDateType, err = h.optionValue(ctx, leave.GroupLeaveRequestDayType, "to_date_type", orDefault(req.ToDateType, leave.DayTypeAllDay)); err != nil {
		h.writeDomainError(w, "Invalid to date type", err)
		return
	}

	var toil *leave.TOILAccrual
	if req.TOILToAccrue != "" {
		amount, err := decimal.NewFromString(req.TOILToAccrue)
		if err != nil {
			h.writeDomainError(w, "Invalid TOIL amount", &leave.ValidationError{Field: "toil_to_accrue", Message: "must be a decimal number"})
			return
		}
		toil = &leave.TOILAccrual{Amount: amount}
		if req.TOILExpiryDate != "" {
			d, err := parseDateField("toil_expiry_date", req.TOILExpiryDate)
			if err != nil {
				h.writeDomainError(w, "Invalid TOIL expiry date", err)
				return
			}
			toil.ExpiryDate = &d
		}
	}

	err = h.Store.WithTx(ctx, func(tx leave.Store) error {
		if _, err := tx.GetAbsenceType(ctx, lr.TypeID); err != nil {
			return err
		}
		_, err := leave.Book(ctx, tx, &lr, toil)
		return err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create leave request", err)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"contact_id":       lr.ContactID,
		"leave_request_id": lr.ID,
	}).Info("leave request created")
	h.Bus.Publish(ctx, events.Event{Topic: events.TopicLeaveRequestCreated, ContactID: lr.ContactID, LeaveRequestID: lr.ID})
	h.Bus.Publish(ctx, events.Event{Topic: events.TopicBalanceChanged, ContactID: lr.ContactID, LeaveRequestID: lr.ID})
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(lr))
}

// UpdateLeaveRequest changes a request's status and day types.
// PUT /api/leave-requests/{id}
func (h *Handler) UpdateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateLeaveRequestRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}

	lr, err := h.Store.GetLeaveRequest(ctx, leave.LeaveRequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get leave request", err)
		return
	}
	if lr.StatusID, err = h.optionValue(ctx, leave.GroupLeaveRequestStatus, "status", req.Status); err != nil {
		h.writeDomainError(w, "Invalid status", err)
		return
	}
	if req.FromDateType != "" {
		if lr.FromDateType, err = h.optionValue(ctx, leave.GroupLeaveRequestDayType, "from_date_type", req.FromDateType); err != nil {
			h.writeDomainError(w, "Invalid from date type", err)
			return
		}
	}
	if req.ToDateType != "" {
		if lr.ToDateType, err = h.optionValue(ctx, leave.GroupLeaveRequestDayType, "to_date_type", req.ToDateType); err != nil {
			h.writeDomainError(w, "Invalid to date type", err)
			return
		}
	}

	if err := h.Store.SaveLeaveRequest(ctx, &lr); err != nil {
		h.writeDomainError(w, "Failed to update leave request", err)
		return
	}

	h.Bus.Publish(ctx, events.Event{Topic: events.TopicLeaveRequestEdited, ContactID: lr.ContactID, LeaveRequestID: lr.ID})
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(lr))
}

// CancelLeaveRequest cancels a request on behalf of its contact. When the
// request falls in a known absence period the cancellation goes through
// that period's cached report view.
// POST /api/leave-requests/{id}/cancel
func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lr, err := h.Store.GetLeaveRequest(ctx, leave.LeaveRequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get leave request", err)
		return
	}

	periods, err := h.Store.ListAbsencePeriods(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to list absence periods", err)
		return
	}
	var cancelled leave.LeaveRequest
	if p, ok := periodOf(periods, lr.FromDate); ok {
		view, verr := h.Views.View(ctx, lr.ContactID, p.ID)
		if verr != nil {
			h.writeDomainError(w, "Failed to open leave report", verr)
			return
		}
		cancelled, err = view.Cancel(ctx, lr.ID)
	} else {
		cancelled, err = h.Reports.Cancel(ctx, lr.ID)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to cancel leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(cancelled))
}

func periodOf(periods []leave.AbsencePeriod, d leave.Date) (leave.AbsencePeriod, bool) {
	for _, p := range periods {
		if p.Period().Contains(d) {
			return p, true
		}
	}
	return leave.AbsencePeriod{}, false
}

// =============================================================================
// REPORT HANDLER
// =============================================================================

// GetReport returns a contact's leave report. The summary is always
// included; sections listed in ?sections= are opened and loaded.
// ?refresh=true reloads the cached view first.
// GET /api/contacts/{id}/report?period_id=&sections=approved,pending
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var sections []report.Section
	if raw := q.Get("sections"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			s, err := report.ParseSection(strings.TrimSpace(name))
			if err != nil {
				h.writeDomainError(w, "Invalid section", err)
				return
			}
			sections = append(sections, s)
		}
	}

	view, err := h.Views.View(ctx, leave.ContactID(chi.URLParam(r, "id")), leave.AbsencePeriodID(q.Get("period_id")))
	if err != nil {
		h.writeDomainError(w, "Failed to open leave report", err)
		return
	}
	if q.Get("refresh") == "true" {
		if err := view.Refresh(ctx); err != nil {
			h.writeDomainError(w, "Failed to refresh leave report", err)
			return
		}
	}
	for _, s := range sections {
		if _, err := view.Open(ctx, s); err != nil {
			h.writeDomainError(w, "Failed to load report section", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toReportResponse(view))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
