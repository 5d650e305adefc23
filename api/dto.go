/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags. decodeAndValidate in
  handlers.go runs them and turns failures into leave.ValidationError, so
  they map to 400 like every other client error.

DATES AND AMOUNTS:
  Dates travel as YYYY-MM-DD strings, amounts as decimal strings.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/publicholiday"
	"github.com/warp/leave-engine/report"
)

// =============================================================================
// CONFIGURATION ENTITIES
// =============================================================================

type ContractDTO struct {
	ID          string  `json:"id"`
	ContactID   string  `json:"contact_id"`
	Title       string  `json:"title,omitempty"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   *string `json:"period_end"`
}

type CreateContractRequest struct {
	ContactID   string `json:"contact_id" validate:"required"`
	Title       string `json:"title"`
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"omitempty,datetime=2006-01-02"`
}

type AbsenceTypeDTO struct {
	ID                           string `json:"id"`
	Title                        string `json:"title"`
	MustTakePublicHolidayAsLeave bool   `json:"must_take_public_holiday_as_leave"`
	AllowRequestCancelation      int    `json:"allow_request_cancelation"`
	AllowOveruse                 bool   `json:"allow_overuse"`
	AllowAccrualsRequest         bool   `json:"allow_accruals_request"`
	IsActive                     bool   `json:"is_active"`
}

// SaveAbsenceTypeRequest is used for both create and update.
type SaveAbsenceTypeRequest struct {
	Title                        string `json:"title" validate:"required"`
	MustTakePublicHolidayAsLeave bool   `json:"must_take_public_holiday_as_leave"`
	AllowRequestCancelation      int    `json:"allow_request_cancelation" validate:"omitempty,min=1,max=3"`
	AllowOveruse                 bool   `json:"allow_overuse"`
	AllowAccrualsRequest         bool   `json:"allow_accruals_request"`
	IsActive                     *bool  `json:"is_active"`
}

type AbsencePeriodDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type CreateAbsencePeriodRequest struct {
	Name      string `json:"name" validate:"required"`
	Title     string `json:"title"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type PublicHolidayDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	IsActive bool   `json:"is_active"`
}

type CreatePublicHolidayRequest struct {
	Title    string `json:"title" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	IsActive *bool  `json:"is_active"`
}

type EntitlementDTO struct {
	ID        string `json:"id"`
	ContactID string `json:"contact_id"`
	TypeID    string `json:"type_id"`
	PeriodID  string `json:"period_id"`
	Comment   string `json:"comment,omitempty"`
	Amount    string `json:"amount"`
}

type CreateEntitlementRequest struct {
	ContactID  string `json:"contact_id" validate:"required"`
	TypeID     string `json:"type_id" validate:"required"`
	PeriodID   string `json:"period_id" validate:"required"`
	Amount     string `json:"amount" validate:"required,numeric"`
	ExpiryDate string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Comment    string `json:"comment"`
}

type OptionDTO struct {
	Value    string `json:"value"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Weight   int    `json:"weight"`
	IsActive bool   `json:"is_active"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveRequestDTO struct {
	ID              string    `json:"id"`
	ContactID       string    `json:"contact_id"`
	TypeID          string    `json:"type_id"`
	StatusID        string    `json:"status_id"`
	FromDate        string    `json:"from_date"`
	FromDateType    string    `json:"from_date_type"`
	ToDate          string    `json:"to_date"`
	ToDateType      string    `json:"to_date_type"`
	RequestType     string    `json:"request_type"`
	IsPublicHoliday bool      `json:"is_public_holiday"`
	ContractID      string    `json:"contract_id,omitempty"`
	Dates           []string  `json:"dates"`
	CreatedAt       time.Time `json:"created_at"`
	Actions         []string  `json:"actions,omitempty"`
}

// CreateLeaveRequestRequest takes status and day types as option labels.
// Status defaults to Awaiting Approval, day types to All Day.
type CreateLeaveRequestRequest struct {
	ContactID      string `json:"contact_id" validate:"required"`
	TypeID         string `json:"type_id" validate:"required"`
	Status         string `json:"status"`
	FromDate       string `json:"from_date" validate:"required,datetime=2006-01-02"`
	FromDateType   string `json:"from_date_type"`
	ToDate         string `json:"to_date" validate:"omitempty,datetime=2006-01-02"`
	ToDateType     string `json:"to_date_type"`
	RequestType    string `json:"request_type" validate:"omitempty,oneof=leave toil sickness"`
	TOILToAccrue   string `json:"toil_to_accrue" validate:"omitempty,numeric"`
	TOILExpiryDate string `json:"toil_expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateLeaveRequestRequest changes the status and day types of a request.
type UpdateLeaveRequestRequest struct {
	Status       string `json:"status" validate:"required"`
	FromDateType string `json:"from_date_type"`
	ToDateType   string `json:"to_date_type"`
}

// =============================================================================
// PUBLIC HOLIDAY LEAVE
// =============================================================================

type PublicHolidayLeaveRequest struct {
	AbsenceTypeID string `json:"absence_type_id" validate:"required"`
}

type PublicHolidayLeaveResultDTO struct {
	Created         int      `json:"created"`
	Skipped         int      `json:"skipped"`
	NothingToDo     bool     `json:"nothing_to_do"`
	LeaveRequestIDs []string `json:"leave_request_ids"`
}

// =============================================================================
// REPORT
// =============================================================================

type RemainderDTO struct {
	Current string `json:"current"`
	Future  string `json:"future"`
}

type BalanceChangesDTO struct {
	PublicHolidays string `json:"public_holidays"`
	Approved       string `json:"approved"`
	Pending        string `json:"pending"`
}

type TypeSummaryDTO struct {
	AbsenceType    AbsenceTypeDTO    `json:"absence_type"`
	Entitlement    string            `json:"entitlement"`
	Remainder      RemainderDTO      `json:"remainder"`
	BalanceChanges BalanceChangesDTO `json:"balance_changes"`
}

type ReportRequestDTO struct {
	LeaveRequestDTO
	BalanceChange string `json:"balance_change"`
}

type BreakdownDTO struct {
	TypeID        string  `json:"type_id"`
	EntitlementID string  `json:"entitlement_id,omitempty"`
	ChangeID      string  `json:"change_id,omitempty"`
	Label         string  `json:"label"`
	Amount        string  `json:"amount"`
	ExpiryDate    *string `json:"expiry_date"`
}

type SectionDTO struct {
	Open      bool               `json:"open"`
	Requests  []ReportRequestDTO `json:"requests,omitempty"`
	Breakdown []BreakdownDTO     `json:"breakdown,omitempty"`
}

type ReportResponse struct {
	ContactID string                `json:"contact_id"`
	Period    AbsencePeriodDTO      `json:"period"`
	Summary   []TypeSummaryDTO      `json:"summary"`
	Sections  map[string]SectionDTO `json:"sections"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a sample data scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type LoadScenarioResponse struct {
	ScenarioID string                       `json:"scenario_id"`
	Created    map[string]int               `json:"created"`
	Skipped    map[string]int               `json:"skipped"`
	Holidays   *PublicHolidayLeaveResultDTO `json:"holiday_leave,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toContractDTO(c leave.Contract) ContractDTO {
	return ContractDTO{
		ID:          string(c.ID),
		ContactID:   string(c.ContactID),
		Title:       c.Title,
		PeriodStart: c.PeriodStart.String(),
		PeriodEnd:   dateString(c.PeriodEnd),
	}
}

func toAbsenceTypeDTO(t leave.AbsenceType) AbsenceTypeDTO {
	return AbsenceTypeDTO{
		ID:                           string(t.ID),
		Title:                        t.Title,
		MustTakePublicHolidayAsLeave: t.MustTakePublicHolidayAsLeave,
		AllowRequestCancelation:      int(t.AllowRequestCancelation),
		AllowOveruse:                 t.AllowOveruse,
		AllowAccrualsRequest:         t.AllowAccrualsRequest,
		IsActive:                     t.IsActive,
	}
}

func toAbsencePeriodDTO(p leave.AbsencePeriod) AbsencePeriodDTO {
	return AbsencePeriodDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Title:     p.Title,
		StartDate: p.StartDate.String(),
		EndDate:   p.EndDate.String(),
	}
}

func toPublicHolidayDTO(h leave.PublicHoliday) PublicHolidayDTO {
	return PublicHolidayDTO{ID: string(h.ID), Title: h.Title, Date: h.Date.String(), IsActive: h.IsActive}
}

func toEntitlementDTO(e leave.Entitlement, amount decimal.Decimal) EntitlementDTO {
	return EntitlementDTO{
		ID:        string(e.ID),
		ContactID: string(e.ContactID),
		TypeID:    string(e.TypeID),
		PeriodID:  string(e.PeriodID),
		Comment:   e.Comment,
		Amount:    amount.String(),
	}
}

func toOptionDTO(o leave.OptionValue) OptionDTO {
	return OptionDTO{Value: o.Value, Name: o.Name, Label: o.Label, Weight: o.Weight, IsActive: o.IsActive}
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	dates := make([]string, len(r.Dates))
	for i, d := range r.Dates {
		dates[i] = d.Date.String()
	}
	return LeaveRequestDTO{
		ID:              string(r.ID),
		ContactID:       string(r.ContactID),
		TypeID:          string(r.TypeID),
		StatusID:        r.StatusID,
		FromDate:        r.FromDate.String(),
		FromDateType:    r.FromDateType,
		ToDate:          r.ToDate.String(),
		ToDateType:      r.ToDateType,
		RequestType:     string(r.RequestType),
		IsPublicHoliday: r.IsPublicHoliday,
		ContractID:      string(r.ContractID),
		Dates:           dates,
		CreatedAt:       r.CreatedAt,
	}
}

func toHolidayLeaveResultDTO(res publicholiday.Result) PublicHolidayLeaveResultDTO {
	ids := make([]string, len(res.Created))
	for i, r := range res.Created {
		ids[i] = string(r.ID)
	}
	return PublicHolidayLeaveResultDTO{
		Created:         len(res.Created),
		Skipped:         res.Skipped,
		NothingToDo:     res.NothingToDo,
		LeaveRequestIDs: ids,
	}
}

func toReportResponse(v *report.View) ReportResponse {
	summary := v.Summary()
	resp := ReportResponse{
		ContactID: string(v.ContactID()),
		Period:    toAbsencePeriodDTO(v.Period()),
		Summary:   make([]TypeSummaryDTO, len(summary.Types)),
		Sections:  make(map[string]SectionDTO, len(report.Sections)),
	}
	for i, ts := range summary.Types {
		resp.Summary[i] = TypeSummaryDTO{
			AbsenceType: toAbsenceTypeDTO(ts.AbsenceType),
			Entitlement: ts.Entitlement.String(),
			Remainder: RemainderDTO{
				Current: ts.Remainder.Current.String(),
				Future:  ts.Remainder.Future.String(),
			},
			BalanceChanges: BalanceChangesDTO{
				PublicHolidays: ts.BalanceChanges.PublicHolidays.String(),
				Approved:       ts.BalanceChanges.Approved.String(),
				Pending:        ts.BalanceChanges.Pending.String(),
			},
		}
	}
	for _, name := range report.Sections {
		st := v.Section(name)
		dto := SectionDTO{Open: st.Open}
		for _, e := range st.Data.Requests {
			dto.Requests = append(dto.Requests, ReportRequestDTO{
				LeaveRequestDTO: toLeaveRequestDTO(e.Request),
				BalanceChange:   e.BalanceChange.String(),
			})
		}
		for _, b := range st.Data.Breakdown {
			dto.Breakdown = append(dto.Breakdown, BreakdownDTO{
				TypeID:        string(b.TypeID),
				EntitlementID: string(b.EntitlementID),
				ChangeID:      string(b.ChangeID),
				Label:         b.Label,
				Amount:        b.Amount.String(),
				ExpiryDate:    dateString(b.ExpiryDate),
			})
		}
		resp.Sections[string(name)] = dto
	}
	return resp
}

func dateString(d *leave.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
