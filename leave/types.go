/*
Package leave provides the core leave and absence model.

PURPOSE:
  This package holds the data model the rest of the engine works on:
  contracts, absence types and periods, public holidays, entitlements,
  leave requests with their per-day rows, and the balance change ledger.
  It also defines the store interfaces every persistence backend implements.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe ids so a contact id can't be passed as a type id
  - AbsenceType: configuration, including the public holiday flag
  - Contract: the employment window a contact is covered by
  - LeaveRequest / LeaveRequestDate: a claim on one or more days
  - LeaveBalanceChange: a signed ledger entry (decimal amount)

DESIGN PRINCIPLES:
  1. Plain data: entities are values passed between stages, persistence
     lives behind the Store interfaces (store.go)
  2. Precision: amounts are decimal.Decimal, never float64
  3. Configurable vocabulary: status, day type and balance change type ids
     are resolved at runtime through an OptionResolver (options.go)

SEE ALSO:
  - time.go: Date and Period
  - options.go: option groups and labels
  - store.go: persistence interfaces
  - balance.go: balance aggregation over ledger rows
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ContactID string
type ContractID string
type AbsenceTypeID string
type AbsencePeriodID string
type HolidayID string
type LeaveRequestID string
type LeaveRequestDateID string
type BalanceChangeID string
type EntitlementID string

// =============================================================================
// CONFIGURATION ENTITIES
// =============================================================================

// CancelationRule controls whether a contact may cancel their own request.
type CancelationRule int

const (
	CancelationNo                   CancelationRule = 1
	CancelationAlways               CancelationRule = 2
	CancelationInAdvanceOfStartDate CancelationRule = 3
)

// Valid reports whether r is one of the known rules.
func (r CancelationRule) Valid() bool { return r >= CancelationNo && r <= CancelationInAdvanceOfStartDate }

// AbsenceType is a category of leave.
type AbsenceType struct {
	ID                           AbsenceTypeID
	Title                        string
	MustTakePublicHolidayAsLeave bool
	AllowRequestCancelation      CancelationRule
	AllowOveruse                 bool
	AllowAccrualsRequest         bool
	IsActive                     bool
}

// AllowsCancelation reports whether a contact may cancel r on day today.
func (t AbsenceType) AllowsCancelation(r LeaveRequest, today Date) bool {
	switch t.AllowRequestCancelation {
	case CancelationAlways:
		return true
	case CancelationInAdvanceOfStartDate:
		return today.Before(r.FromDate)
	default:
		return false
	}
}

// AbsencePeriod is the window entitlements are granted for.
type AbsencePeriod struct {
	ID        AbsencePeriodID
	Name      string
	Title     string
	StartDate Date
	EndDate   Date
}

// Period returns the inclusive range of the absence period.
func (p AbsencePeriod) Period() Period { return Period{Start: p.StartDate, End: p.EndDate} }

// Current reports whether now falls in the absence period.
func (p AbsencePeriod) Current(now time.Time) bool { return p.Period().Contains(DateOf(now)) }

// PublicHoliday is a date-stamped day off.
type PublicHoliday struct {
	ID       HolidayID
	Title    string
	Date     Date
	IsActive bool
}

// Contract is a contact's employment window. PeriodEnd nil means open-ended.
type Contract struct {
	ID          ContractID
	ContactID   ContactID
	Title       string
	PeriodStart Date
	PeriodEnd   *Date
}

// Covers reports whether d falls inside the contract, both ends inclusive.
func (c Contract) Covers(d Date) bool {
	return c.PeriodStart.BeforeOrEqual(d) && (c.PeriodEnd == nil || c.PeriodEnd.AfterOrEqual(d))
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// RequestType distinguishes ordinary leave from TOIL and sickness.
type RequestType string

const (
	RequestTypeLeave    RequestType = "leave"
	RequestTypeTOIL     RequestType = "toil"
	RequestTypeSickness RequestType = "sickness"
)

// LeaveRequest is a contact's claim on one or more days.
// StatusID, FromDateType and ToDateType hold option values (see options.go).
type LeaveRequest struct {
	ID              LeaveRequestID
	ContactID       ContactID
	TypeID          AbsenceTypeID
	StatusID        string
	FromDate        Date
	FromDateType    string
	ToDate          Date
	ToDateType      string
	RequestType     RequestType
	IsPublicHoliday bool
	ContractID      ContractID // contract a public holiday request was generated for, if any
	Dates           []LeaveRequestDate
	CreatedAt       time.Time
}

// LeaveRequestDate is one covered calendar day of a request.
type LeaveRequestDate struct {
	ID             LeaveRequestDateID
	LeaveRequestID LeaveRequestID
	Date           Date
}

// Normalize fills defaulted fields: ToDate and ToDateType fall back to the
// From values and RequestType falls back to leave.
func (r *LeaveRequest) Normalize() {
	if r.ToDate.IsZero() {
		r.ToDate = r.FromDate
	}
	if r.ToDateType == "" {
		r.ToDateType = r.FromDateType
	}
	if r.RequestType == "" {
		r.RequestType = RequestTypeLeave
	}
}

// Validate checks the request shape before it is persisted.
func (r LeaveRequest) Validate() error {
	switch {
	case r.ContactID == "":
		return &ValidationError{Field: "contact_id", Message: "is required"}
	case r.TypeID == "":
		return &ValidationError{Field: "type_id", Message: "is required"}
	case r.StatusID == "":
		return &ValidationError{Field: "status_id", Message: "is required"}
	case r.FromDate.IsZero():
		return &ValidationError{Field: "from_date", Message: "is required"}
	case r.ToDate.Before(r.FromDate):
		return &ValidationError{Field: "to_date", Message: "must not be before from_date"}
	}
	return nil
}

// Span returns the covered range of the request.
func (r LeaveRequest) Span() Period { return Period{Start: r.FromDate, End: r.ToDate} }

// DateRows derives one LeaveRequestDate per covered day, ascending.
// Ids are left empty for the store to assign.
func (r LeaveRequest) DateRows() []LeaveRequestDate {
	days := r.Span().Days()
	rows := make([]LeaveRequestDate, len(days))
	for i, d := range days {
		rows[i] = LeaveRequestDate{LeaveRequestID: r.ID, Date: d}
	}
	return rows
}

// =============================================================================
// BALANCE CHANGE LEDGER
// =============================================================================

// SourceType tags what a balance change is attached to.
type SourceType string

const (
	SourceLeaveRequestDay SourceType = "leave_request_day"
	SourceEntitlement     SourceType = "entitlement"
	SourceTOILRequest     SourceType = "toil_request"
)

// LeaveBalanceChange is a signed adjustment of a contact's balance.
// For SourceLeaveRequestDay, SourceID is a LeaveRequestDateID.
type LeaveBalanceChange struct {
	ID         BalanceChangeID
	SourceID   string
	SourceType SourceType
	TypeID     string
	Amount     decimal.Decimal
	ExpiryDate *Date
	CreatedAt  time.Time
}

// IsActive reports whether the change still moves the balance.
func (c LeaveBalanceChange) IsActive() bool { return !c.Amount.IsZero() }

// Expired reports whether the change had expired on day d.
func (c LeaveBalanceChange) Expired(d Date) bool {
	return c.ExpiryDate != nil && c.ExpiryDate.Before(d)
}

// DayBalanceChange is a leave-request-day balance change joined with the
// day and request it belongs to.
type DayBalanceChange struct {
	Change  LeaveBalanceChange
	Date    Date
	Request LeaveRequest
}

// Entitlement is the leave owed to a contact for an absence type and period.
// Its value is the sum of the balance changes sourced from it.
type Entitlement struct {
	ID        EntitlementID
	ContactID ContactID
	TypeID    AbsenceTypeID
	PeriodID  AbsencePeriodID
	Comment   string
}
