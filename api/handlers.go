/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave model, the public holiday rule engine and the leave
  report over REST. Handles HTTP request/response, JSON serialization and
  validation, and delegates to the domain packages.

ENDPOINTS:
  Contracts:
    GET    /api/contracts                  List contracts (?contact_id=)
    POST   /api/contracts                  Create contract, then holiday leave for it

  Absence types:
    GET    /api/absence-types              List absence types
    POST   /api/absence-types              Create absence type
    GET    /api/absence-types/{id}         Get absence type
    PUT    /api/absence-types/{id}         Update absence type

  Absence periods:
    GET    /api/absence-periods            List absence periods
    POST   /api/absence-periods            Create absence period

  Public holidays:
    GET    /api/public-holidays            List public holidays
    POST   /api/public-holidays            Create holiday, then holiday leave for it
    DELETE /api/public-holidays/{id}       Deactivate holiday

  Entitlements:
    GET    /api/entitlements               List (?contact_id=&period_id=)
    POST   /api/entitlements               Create entitlement with its amount

  Options:
    GET    /api/options/{group}            Option values of a group

  Admin:
    POST   /api/admin/public-holiday-leave Run holiday leave for an absence type

  Leave requests and the report: see leave_requests.go
  Scenarios: see scenarios.go

TRIGGERS:
  Saving a flagged, active absence type creates public holiday leave for
  every contract. Creating a holiday or a contract creates the leave it
  implies when a flagged absence type exists. Trigger failures are
  returned to the caller; the row that triggered them stays saved.

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"} with status:
  - 400: Validation errors, invalid input, misconfigured absence type
  - 404: Row or option value not found
  - 409: Leave request cannot be cancelled
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/publicholiday"
	"github.com/warp/leave-engine/report"
	"github.com/warp/leave-engine/sampledata"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    leave.TxStore
	Bus      *events.Bus
	Holidays *publicholiday.Service
	Reports  *report.Service
	Views    *report.Cache
	Importer *sampledata.Importer
	Logger   logrus.FieldLogger

	now      func() time.Time
	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the domain services over store. A nil bus gets a
// private one; opts.Now, if set, is the clock of every service.
func NewHandler(store leave.TxStore, bus *events.Bus, opts publicholiday.Options, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if bus == nil {
		bus = events.NewBus(logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	reports := report.NewService(store, bus, logger).WithClock(opts.Now)
	return &Handler{
		Store:    store,
		Bus:      bus,
		Holidays: publicholiday.NewService(store, bus, logger, opts),
		Reports:  reports,
		Views:    report.NewCache(reports, bus),
		Importer: sampledata.NewImporter(store, logger),
		Logger:   logger,
		now:      opts.Now,
		validate: newValidator(),
	}
}

// Close releases the cached report views.
func (h *Handler) Close() {
	h.Views.Close()
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns contracts, optionally of one contact.
// GET /api/contracts?contact_id=
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Store.ListContracts(r.Context(), leave.ContactID(r.URL.Query().Get("contact_id")))
	if err != nil {
		h.writeDomainError(w, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContract saves a contract and books the future public holidays
// it covers.
// POST /api/contracts
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateContractRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}

	c := leave.Contract{ContactID: leave.ContactID(req.ContactID), Title: req.Title}
	var err error
	if c.PeriodStart, err = parseDateField("period_start", req.PeriodStart); err != nil {
		h.writeDomainError(w, "Invalid period start", err)
		return
	}
	if req.PeriodEnd != "" {
		end, err := parseDateField("period_end", req.PeriodEnd)
		if err != nil {
			h.writeDomainError(w, "Invalid period end", err)
			return
		}
		c.PeriodEnd = &end
	}

	if err := h.Store.SaveContract(ctx, &c); err != nil {
		h.writeDomainError(w, "Failed to create contract", err)
		return
	}

	if _, err := h.Holidays.CreateForContract(ctx, c); err != nil {
		h.writeDomainError(w, "Failed to create public holiday leave for contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(c))
}

// =============================================================================
// ABSENCE TYPE HANDLERS
// =============================================================================

// ListAbsenceTypes returns every absence type.
// GET /api/absence-types
func (h *Handler) ListAbsenceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListAbsenceTypes(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list absence types", err)
		return
	}

	dtos := make([]AbsenceTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toAbsenceTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAbsenceType returns one absence type.
// GET /api/absence-types/{id}
func (h *Handler) GetAbsenceType(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetAbsenceType(r.Context(), leave.AbsenceTypeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get absence type", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceTypeDTO(t))
}

// CreateAbsenceType saves a new absence type.
// POST /api/absence-types
func (h *Handler) CreateAbsenceType(w http.ResponseWriter, r *http.Request) {
	h.saveAbsenceType(w, r, leave.AbsenceType{IsActive: true}, http.StatusCreated)
}

// UpdateAbsenceType replaces an absence type's settings.
// PUT /api/absence-types/{id}
func (h *Handler) UpdateAbsenceType(w http.ResponseWriter, r *http.Request) {
	existing, err := h.Store.GetAbsenceType(r.Context(), leave.AbsenceTypeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get absence type", err)
		return
	}
	h.saveAbsenceType(w, r, existing, http.StatusOK)
}

func (h *Handler) saveAbsenceType(w http.ResponseWriter, r *http.Request, t leave.AbsenceType, status int) {
	ctx := r.Context()

	var req SaveAbsenceTypeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}

	t.Title = req.Title
	t.MustTakePublicHolidayAsLeave = req.MustTakePublicHolidayAsLeave
	t.AllowOveruse = req.AllowOveruse
	t.AllowAccrualsRequest = req.AllowAccrualsRequest
	t.AllowRequestCancelation = leave.CancelationNo
	if req.AllowRequestCancelation != 0 {
		t.AllowRequestCancelation = leave.CancelationRule(req.AllowRequestCancelation)
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	if err := h.Store.SaveAbsenceType(ctx, &t); err != nil {
		h.writeDomainError(w, "Failed to save absence type", err)
		return
	}

	if t.MustTakePublicHolidayAsLeave && t.IsActive {
		res, err := h.Holidays.CreateForAbsenceType(ctx, t)
		if err != nil {
			h.writeDomainError(w, "Failed to create public holiday leave", err)
			return
		}
		h.Logger.WithFields(logrus.Fields{
			"absence_type_id": t.ID,
			"created":         len(res.Created),
		}).Info("absence type saved with public holiday leave")
	}
	writeJSON(w, status, toAbsenceTypeDTO(t))
}

// =============================================================================
// ABSENCE PERIOD HANDLERS
// =============================================================================

// ListAbsencePeriods returns every absence period.
// GET /api/absence-periods
func (h *Handler) ListAbsencePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Store.ListAbsencePeriods(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list absence periods", err)
		return
	}

	dtos := make([]AbsencePeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toAbsencePeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAbsencePeriod saves a new absence period.
// POST /api/absence-periods
func (h *Handler) CreateAbsencePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreateAbsencePeriodRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}

	p := leave.AbsencePeriod{Name: req.Name, Title: req.Title}
	var err error
	if p.StartDate, err = parseDateField("start_date", req.StartDate); err != nil {
		h.writeDomainError(w, "Invalid start date", err)
		return
	}
	if p.EndDate, err = parseDateField("end_date", req.EndDate); err != nil {
		h.writeDomainError(w, "Invalid end date", err)
		return
	}
	if p.Title == "" {
		p.Title = p.Name
	}

	if err := h.Store.SaveAbsencePeriod(r.Context(), &p); err != nil {
		h.writeDomainError(w, "Failed to create absence period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbsencePeriodDTO(p))
}

// =============================================================================
// PUBLIC HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns every public holiday, active or not.
// GET /api/public-holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list public holidays", err)
		return
	}

	dtos := make([]PublicHolidayDTO, len(holidays))
	for i, ph := range holidays {
		dtos[i] = toPublicHolidayDTO(ph)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday saves a public holiday and books it for every contract
// covering its date.
// POST /api/public-holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePublicHolidayRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}

	date, err := parseDateField("date", req.Date)
	if err != nil {
		h.writeDomainError(w, "Invalid date", err)
		return
	}
	ph := leave.PublicHoliday{Title: req.Title, Date: date, IsActive: true}
	if req.IsActive != nil {
		ph.IsActive = *req.IsActive
	}

	if err := h.Store.SaveHoliday(ctx, &ph); err != nil {
		h.writeDomainError(w, "Failed to create public holiday", err)
		return
	}

	if _, err := h.Holidays.CreateForHoliday(ctx, ph); err != nil {
		h.writeDomainError(w, "Failed to create public holiday leave", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPublicHolidayDTO(ph))
}

// DeleteHoliday deactivates a public holiday. Leave already created for it
// is kept.
// DELETE /api/public-holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ph, err := h.Store.GetHoliday(ctx, leave.HolidayID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get public holiday", err)
		return
	}
	ph.IsActive = false
	if err := h.Store.SaveHoliday(ctx, &ph); err != nil {
		h.writeDomainError(w, "Failed to deactivate public holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicHolidayDTO(ph))
}

// =============================================================================
// ENTITLEMENT HANDLERS
// =============================================================================

// ListEntitlements returns entitlements with their current value.
// GET /api/entitlements?contact_id=&period_id=
func (h *Handler) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	ents, err := h.Store.ListEntitlements(ctx, leave.ContactID(q.Get("contact_id")), leave.AbsencePeriodID(q.Get("period_id")))
	if err != nil {
		h.writeDomainError(w, "Failed to list entitlements", err)
		return
	}

	today := leave.DateOf(h.now())
	dtos := make([]EntitlementDTO, len(ents))
	for i, e := range ents {
		changes, err := h.Store.ListBalanceChangesBySource(ctx, leave.SourceEntitlement, string(e.ID))
		if err != nil {
			h.writeDomainError(w, "Failed to get entitlement balance", err)
			return
		}
		dtos[i] = toEntitlementDTO(e, leave.EntitlementValue(changes, today))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntitlement saves an entitlement and the Leave balance change
// carrying its amount.
// POST /api/entitlements
func (h *Handler) CreateEntitlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateEntitlementRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeDomainError(w, "Invalid amount", &leave.ValidationError{Field: "amount", Message: "must be a decimal number"})
		return
	}
	var expiry *leave.Date
	if req.ExpiryDate != "" {
		d, err := parseDateField("expiry_date", req.ExpiryDate)
		if err != nil {
			h.writeDomainError(w, "Invalid expiry date", err)
			return
		}
		expiry = &d
	}

	e := leave.Entitlement{
		ContactID: leave.ContactID(req.ContactID),
		TypeID:    leave.AbsenceTypeID(req.TypeID),
		PeriodID:  leave.AbsencePeriodID(req.PeriodID),
		Comment:   req.Comment,
	}
	err = h.Store.WithTx(ctx, func(tx leave.Store) error {
		if _, err := tx.GetAbsenceType(ctx, e.TypeID); err != nil {
			return err
		}
		if _, err := tx.GetAbsencePeriod(ctx, e.PeriodID); err != nil {
			return err
		}
		if err := tx.SaveEntitlement(ctx, &e); err != nil {
			return err
		}
		typeID, err := tx.ResolveOptionValue(ctx, leave.GroupBalanceChangeType, leave.ChangeTypeLeave)
		if err != nil {
			return err
		}
		return tx.SaveBalanceChange(ctx, &leave.LeaveBalanceChange{
			SourceID:   string(e.ID),
			SourceType: leave.SourceEntitlement,
			TypeID:     typeID,
			Amount:     amount,
			ExpiryDate: expiry,
		})
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create entitlement", err)
		return
	}

	h.Bus.Publish(ctx, events.Event{Topic: events.TopicBalanceChanged, ContactID: e.ContactID})
	writeJSON(w, http.StatusCreated, toEntitlementDTO(e, amount))
}

// =============================================================================
// OPTION HANDLERS
// =============================================================================

// ListOptions returns the values of one option group.
// GET /api/options/{group}
func (h *Handler) ListOptions(w http.ResponseWriter, r *http.Request) {
	group := leave.OptionGroup(chi.URLParam(r, "group"))
	if !group.Valid() {
		h.writeDomainError(w, "Unknown option group", &leave.ValidationError{Field: "group", Message: fmt.Sprintf("unknown option group %q", group)})
		return
	}

	options, err := h.Store.ListOptions(r.Context(), group)
	if err != nil {
		h.writeDomainError(w, "Failed to list options", err)
		return
	}
	dtos := make([]OptionDTO, len(options))
	for i, o := range options {
		dtos[i] = toOptionDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreatePublicHolidayLeave runs public holiday leave creation for one
// absence type. The type must be flagged.
// POST /api/admin/public-holiday-leave
func (h *Handler) CreatePublicHolidayLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PublicHolidayLeaveRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}
	t, err := h.Store.GetAbsenceType(ctx, leave.AbsenceTypeID(req.AbsenceTypeID))
	if err != nil {
		h.writeDomainError(w, "Failed to get absence type", err)
		return
	}

	res, err := h.Holidays.CreateForAbsenceType(ctx, t)
	if err != nil {
		h.writeDomainError(w, "Failed to create public holiday leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayLeaveResultDTO(res))
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &leave.ValidationError{Field: "body", Message: "is not valid JSON: " + err.Error()}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			msg := "failed " + fe.Tag() + " validation"
			if fe.Tag() == "required" {
				msg = "is required"
			}
			return &leave.ValidationError{Field: fe.Field(), Message: msg}
		}
		return err
	}
	return nil
}

// optionValue resolves a label sent by a client. Unknown labels are
// client errors.
func (h *Handler) optionValue(ctx context.Context, group leave.OptionGroup, field, label string) (string, error) {
	v, err := h.Store.ResolveOptionValue(ctx, group, label)
	if errors.Is(err, leave.ErrOptionNotFound) {
		return "", &leave.ValidationError{Field: field, Message: fmt.Sprintf("unknown option %q", label)}
	}
	return v, err
}

func parseDateField(field, s string) (leave.Date, error) {
	d, err := leave.ParseDate(s)
	if err != nil {
		return leave.Date{}, &leave.ValidationError{Field: field, Message: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, leave.ErrCancelNotAllowed):
		return http.StatusConflict
	case leave.IsClientError(err):
		return http.StatusBadRequest
	case leave.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.WithError(err).Error(message)
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
