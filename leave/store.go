/*
store.go - Persistence interfaces for the leave model

PURPOSE:
  Defines the interface between the rule engine and the database.
  The engine only sees these repositories; SQLite and in-memory
  implementations live in store/sqlite and leave/store.

KEY INTERFACES:
  ContractStore:      Contracts, incl. the overlap query the resolver uses
  HolidayStore:       Public holidays
  AbsenceTypeStore:   Absence types and the public holiday flag lookup
  PeriodStore:        Absence periods
  LeaveRequestStore:  Leave requests and their date rows
  BalanceChangeStore: The balance change ledger
  EntitlementStore:   Entitlements
  OptionStore:        Option group metadata (implements OptionResolver)
  TxStore:            All of the above plus WithTx

SAVE CONTRACT:
  Save* methods create the row when its ID is empty (the store assigns a
  uuid and writes it back) and update it otherwise. Rejected input comes
  back as a *ValidationError.

ATOMICITY:
  WithTx runs fn against a Store bound to one transaction. If fn returns
  an error nothing it wrote is kept. WithTx calls do not nest.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with golang-migrate migrations
  - leave/store/memory.go: In-memory for testing

SEE ALSO:
  - publicholiday/: the rule engine built on these interfaces
  - report/: the read model built on these interfaces
*/
package leave

import "context"

// =============================================================================
// REPOSITORIES
// =============================================================================

type ContractStore interface {
	SaveContract(ctx context.Context, c *Contract) error
	GetContract(ctx context.Context, id ContractID) (Contract, error)
	// ListContracts returns contracts of contactID, or all contracts when empty.
	ListContracts(ctx context.Context, contactID ContactID) ([]Contract, error)
	// GetContractsOverlapping returns contracts whose [PeriodStart, PeriodEnd]
	// intersects [start, end], ordered by PeriodStart then ID.
	GetContractsOverlapping(ctx context.Context, start, end Date) ([]Contract, error)
}

type HolidayStore interface {
	SaveHoliday(ctx context.Context, h *PublicHoliday) error
	GetHoliday(ctx context.Context, id HolidayID) (PublicHoliday, error)
	ListHolidays(ctx context.Context) ([]PublicHoliday, error)
	// GetActiveHolidaysFrom returns active holidays on or after from, ascending.
	GetActiveHolidaysFrom(ctx context.Context, from Date) ([]PublicHoliday, error)
}

type AbsenceTypeStore interface {
	// SaveAbsenceType rejects a second active type flagged
	// MustTakePublicHolidayAsLeave with a *ValidationError.
	SaveAbsenceType(ctx context.Context, t *AbsenceType) error
	GetAbsenceType(ctx context.Context, id AbsenceTypeID) (AbsenceType, error)
	ListAbsenceTypes(ctx context.Context) ([]AbsenceType, error)
	// GetPublicHolidayAbsenceType returns the active flagged type or
	// ErrNoPublicHolidayAbsenceType.
	GetPublicHolidayAbsenceType(ctx context.Context) (AbsenceType, error)
}

type PeriodStore interface {
	SaveAbsencePeriod(ctx context.Context, p *AbsencePeriod) error
	GetAbsencePeriod(ctx context.Context, id AbsencePeriodID) (AbsencePeriod, error)
	ListAbsencePeriods(ctx context.Context) ([]AbsencePeriod, error)
}

// PublicHolidayRequestQuery selects public holiday requests of a contact and
// absence type covering Date. A non-empty ContractID also requires the
// request to have been generated for that contract.
type PublicHolidayRequestQuery struct {
	ContactID  ContactID
	TypeID     AbsenceTypeID
	Date       Date
	ContractID ContractID
}

// LeaveRequestFilter narrows ListLeaveRequests. Zero fields match everything.
// From/To select requests whose span intersects [From, To].
type LeaveRequestFilter struct {
	ContactID     ContactID
	TypeID        AbsenceTypeID
	From          *Date
	To            *Date
	PublicHoliday *bool
	RequestType   RequestType
}

type LeaveRequestStore interface {
	// SaveLeaveRequest creates the request and one date row per covered day
	// when r.ID is empty, writing ids back into r and r.Dates. For an existing
	// request only the status and day types are updated.
	SaveLeaveRequest(ctx context.Context, r *LeaveRequest) error
	GetLeaveRequest(ctx context.Context, id LeaveRequestID) (LeaveRequest, error)
	// ListLeaveRequests returns matching requests with their dates, ordered by
	// FromDate then ID.
	ListLeaveRequests(ctx context.Context, f LeaveRequestFilter) ([]LeaveRequest, error)
	// HasPublicHolidayRequest reports whether a public holiday request
	// matching q already exists.
	HasPublicHolidayRequest(ctx context.Context, q PublicHolidayRequestQuery) (bool, error)
}

// DayChangeQuery selects leave_request_day balance changes by the contact,
// absence type and date of the request they belong to.
type DayChangeQuery struct {
	ContactID        ContactID
	TypeID           AbsenceTypeID
	Date             Date
	ExcludeRequestID LeaveRequestID
	ActiveOnly       bool
}

type BalanceChangeStore interface {
	SaveBalanceChange(ctx context.Context, c *LeaveBalanceChange) error
	// ListBalanceChangesBySource returns the changes attached to one source row.
	ListBalanceChangesBySource(ctx context.Context, sourceType SourceType, sourceID string) ([]LeaveBalanceChange, error)
	// FindDayChanges returns day changes matching q, ordered by CreatedAt then ID.
	FindDayChanges(ctx context.Context, q DayChangeQuery) ([]DayBalanceChange, error)
	// ListDayChanges returns the day changes of a contact's requests of typeID
	// whose date falls in p. An empty typeID matches every type.
	ListDayChanges(ctx context.Context, contactID ContactID, typeID AbsenceTypeID, p Period) ([]DayBalanceChange, error)
}

type EntitlementStore interface {
	SaveEntitlement(ctx context.Context, e *Entitlement) error
	GetEntitlement(ctx context.Context, id EntitlementID) (Entitlement, error)
	// ListEntitlements filters by contact and period; empty values match all.
	ListEntitlements(ctx context.Context, contactID ContactID, periodID AbsencePeriodID) ([]Entitlement, error)
}

type OptionStore interface {
	OptionResolver
	SaveOption(ctx context.Context, o *OptionValue) error
	// ListOptions returns the group's values ordered by Weight.
	ListOptions(ctx context.Context, group OptionGroup) ([]OptionValue, error)
	// GetOption looks a value up by its stored value.
	GetOption(ctx context.Context, group OptionGroup, value string) (OptionValue, error)
}

// =============================================================================
// AGGREGATED STORE
// =============================================================================

// Store aggregates every repository the engine needs.
type Store interface {
	ContractStore
	HolidayStore
	AbsenceTypeStore
	PeriodStore
	LeaveRequestStore
	BalanceChangeStore
	EntitlementStore
	OptionStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
