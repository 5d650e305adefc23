/*
Package report builds a contact's leave report for one absence period.

PURPOSE:
  The read model behind "my leave": per absence type balances, and the
  leave requests and balance changes behind them, split into sections.

SUMMARY:
  One TypeSummary per absence type worth showing: types with no
  entitlement are hidden unless they allow overuse or accrual requests.
  Remainder.Current = entitlement + approved + public holiday changes
  Remainder.Future  = Remainder.Current + pending changes

SECTIONS:
  approved:     Approved or Admin Approved requests, public holidays excluded
  pending:      Awaiting Approval or More Information Required requests
  holidays:     public holiday requests
  other:        Rejected or Cancelled requests
  entitlements: the balance changes making up each entitlement
  expired:      expired entitlement changes and expired TOIL

STATE:
  Service answers stateless queries. View keeps one report open, loads
  sections lazily and refreshes itself on leave events. Cache shares
  views between API calls.

SEE ALSO:
  - leave/balance.go: Balance and status classification
  - events/: the topics a View listens to
*/
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
)

// Section names one expandable part of the report.
type Section string

const (
	SectionApproved     Section = "approved"
	SectionPending      Section = "pending"
	SectionHolidays     Section = "holidays"
	SectionExpired      Section = "expired"
	SectionOther        Section = "other"
	SectionEntitlements Section = "entitlements"
)

// Sections lists every section in display order.
var Sections = []Section{
	SectionApproved, SectionEntitlements, SectionExpired,
	SectionHolidays, SectionPending, SectionOther,
}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	for _, known := range Sections {
		if string(known) == s {
			return known, nil
		}
	}
	return "", &leave.ValidationError{Field: "section", Message: fmt.Sprintf("unknown section %q", s)}
}

// =============================================================================
// REPORT DATA
// =============================================================================

// Remainder is what is left of an entitlement.
type Remainder struct {
	Current decimal.Decimal
	Future  decimal.Decimal
}

// TypeSummary is the summary line of one absence type.
type TypeSummary struct {
	AbsenceType    leave.AbsenceType
	Entitlement    decimal.Decimal
	Remainder      Remainder
	BalanceChanges leave.Balance
}

// Summary is the always-loaded part of a report.
type Summary struct {
	ContactID leave.ContactID
	Period    leave.AbsencePeriod
	Types     []TypeSummary
}

// TypeSummary returns the line for typeID, if shown.
func (s Summary) TypeSummary(typeID leave.AbsenceTypeID) (TypeSummary, bool) {
	for _, t := range s.Types {
		if t.AbsenceType.ID == typeID {
			return t, true
		}
	}
	return TypeSummary{}, false
}

// RequestEntry is a leave request row with the sum of its day changes.
type RequestEntry struct {
	Request       leave.LeaveRequest
	BalanceChange decimal.Decimal
}

// BreakdownEntry is one balance change row of the entitlements and
// expired sections.
type BreakdownEntry struct {
	TypeID        leave.AbsenceTypeID
	EntitlementID leave.EntitlementID
	ChangeID      leave.BalanceChangeID
	Label         string
	Amount        decimal.Decimal
	ExpiryDate    *leave.Date
	CreatedAt     time.Time
}

// SectionData holds whatever a section lists.
type SectionData struct {
	Requests  []RequestEntry
	Breakdown []BreakdownEntry
}

// Len returns the number of rows.
func (d SectionData) Len() int { return len(d.Requests) + len(d.Breakdown) }

// =============================================================================
// SERVICE
// =============================================================================

// Service answers report queries against the store.
type Service struct {
	store     leave.Store
	publisher events.Publisher
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewService(store leave.Store, publisher events.Publisher, logger logrus.FieldLogger) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Service{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// WithClock replaces the clock used for expiry and cancellation checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Period returns the absence period with id, or the current one when id is
// empty.
func (s *Service) Period(ctx context.Context, id leave.AbsencePeriodID) (leave.AbsencePeriod, error) {
	if id != "" {
		return s.store.GetAbsencePeriod(ctx, id)
	}
	periods, err := s.store.ListAbsencePeriods(ctx)
	if err != nil {
		return leave.AbsencePeriod{}, err
	}
	now := s.now()
	for _, p := range periods {
		if p.Current(now) {
			return p, nil
		}
	}
	return leave.AbsencePeriod{}, &leave.NotFoundError{Kind: "absence period", ID: "current"}
}

// asOf is the day expiry is judged on: today, or the period end for a
// period that is already over.
func (s *Service) asOf(p leave.AbsencePeriod) leave.Date {
	today := leave.DateOf(s.now())
	if today.After(p.EndDate) {
		return p.EndDate
	}
	return today
}

// Summary computes the per type balances of contactID in period.
func (s *Service) Summary(ctx context.Context, contactID leave.ContactID, period leave.AbsencePeriod) (Summary, error) {
	statuses, err := leave.ResolveStatuses(ctx, s.store)
	if err != nil {
		return Summary{}, err
	}
	types, err := s.store.ListAbsenceTypes(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list absence types: %w", err)
	}
	entitlements, err := s.entitlementValues(ctx, contactID, period)
	if err != nil {
		return Summary{}, err
	}
	changes, err := s.store.ListDayChanges(ctx, contactID, "", period.Period())
	if err != nil {
		return Summary{}, fmt.Errorf("list day changes: %w", err)
	}

	byType := make(map[leave.AbsenceTypeID][]leave.DayBalanceChange)
	for _, dc := range changes {
		byType[dc.Request.TypeID] = append(byType[dc.Request.TypeID], dc)
	}

	summary := Summary{ContactID: contactID, Period: period}
	for _, t := range types {
		if !t.IsActive {
			continue
		}
		b := leave.Balance{Entitlement: entitlements[t.ID]}
		b.Accumulate(statuses, byType[t.ID])

		if b.Entitlement.IsZero() && !t.AllowOveruse && !t.AllowAccrualsRequest {
			continue
		}
		summary.Types = append(summary.Types, TypeSummary{
			AbsenceType:    t,
			Entitlement:    b.Entitlement,
			Remainder:      Remainder{Current: b.Current(), Future: b.Future()},
			BalanceChanges: b,
		})
	}
	return summary, nil
}

func (s *Service) entitlementValues(ctx context.Context, contactID leave.ContactID, period leave.AbsencePeriod) (map[leave.AbsenceTypeID]decimal.Decimal, error) {
	ents, err := s.store.ListEntitlements(ctx, contactID, period.ID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	asOf := s.asOf(period)
	values := make(map[leave.AbsenceTypeID]decimal.Decimal, len(ents))
	for _, e := range ents {
		changes, err := s.store.ListBalanceChangesBySource(ctx, leave.SourceEntitlement, string(e.ID))
		if err != nil {
			return nil, fmt.Errorf("load entitlement %s: %w", e.ID, err)
		}
		values[e.TypeID] = values[e.TypeID].Add(leave.EntitlementValue(changes, asOf))
	}
	return values, nil
}

// LoadSection fetches the rows of one section.
func (s *Service) LoadSection(ctx context.Context, contactID leave.ContactID, period leave.AbsencePeriod, section Section) (SectionData, error) {
	switch section {
	case SectionEntitlements:
		rows, err := s.breakdown(ctx, contactID, period, false)
		return SectionData{Breakdown: rows}, err
	case SectionExpired:
		return s.expired(ctx, contactID, period)
	case SectionApproved, SectionPending, SectionHolidays, SectionOther:
		rows, err := s.requests(ctx, contactID, period, section)
		return SectionData{Requests: rows}, err
	default:
		return SectionData{}, &leave.ValidationError{Field: "section", Message: fmt.Sprintf("unknown section %q", section)}
	}
}

func (s *Service) requests(ctx context.Context, contactID leave.ContactID, period leave.AbsencePeriod, section Section) ([]RequestEntry, error) {
	statuses, err := leave.ResolveStatuses(ctx, s.store)
	if err != nil {
		return nil, err
	}

	f := leave.LeaveRequestFilter{ContactID: contactID, From: &period.StartDate, To: &period.EndDate}
	var keep func(leave.LeaveRequest) bool
	switch section {
	case SectionApproved:
		keep = func(r leave.LeaveRequest) bool { return statuses.Approved[r.StatusID] && !r.IsPublicHoliday }
	case SectionPending:
		keep = func(r leave.LeaveRequest) bool { return statuses.Pending[r.StatusID] }
	case SectionHolidays:
		yes := true
		f.PublicHoliday = &yes
		keep = func(leave.LeaveRequest) bool { return true }
	case SectionOther:
		keep = func(r leave.LeaveRequest) bool { return statuses.Other[r.StatusID] }
	}

	reqs, err := s.store.ListLeaveRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	changes, err := s.store.ListDayChanges(ctx, contactID, "", period.Period())
	if err != nil {
		return nil, fmt.Errorf("list day changes: %w", err)
	}
	sums := make(map[leave.LeaveRequestID]decimal.Decimal)
	for _, dc := range changes {
		sums[dc.Request.ID] = sums[dc.Request.ID].Add(dc.Change.Amount)
	}

	var out []RequestEntry
	for _, r := range reqs {
		if keep(r) {
			out = append(out, RequestEntry{Request: r, BalanceChange: sums[r.ID]})
		}
	}
	return out, nil
}

// breakdown lists entitlement changes, either the live ones or the expired ones.
func (s *Service) breakdown(ctx context.Context, contactID leave.ContactID, period leave.AbsencePeriod, expired bool) ([]BreakdownEntry, error) {
	ents, err := s.store.ListEntitlements(ctx, contactID, period.ID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	asOf := s.asOf(period)

	var out []BreakdownEntry
	for _, e := range ents {
		changes, err := s.store.ListBalanceChangesBySource(ctx, leave.SourceEntitlement, string(e.ID))
		if err != nil {
			return nil, fmt.Errorf("load entitlement %s: %w", e.ID, err)
		}
		for _, c := range changes {
			if c.Expired(asOf) != expired {
				continue
			}
			out = append(out, BreakdownEntry{
				TypeID:        e.TypeID,
				EntitlementID: e.ID,
				ChangeID:      c.ID,
				Label:         s.changeLabel(ctx, c.TypeID),
				Amount:        c.Amount,
				ExpiryDate:    c.ExpiryDate,
				CreatedAt:     c.CreatedAt,
			})
		}
	}
	return out, nil
}

// accruedTOILLabel labels expired TOIL rows.
const accruedTOILLabel = "Accrued TOIL"

func (s *Service) expired(ctx context.Context, contactID leave.ContactID, period leave.AbsencePeriod) (SectionData, error) {
	rows, err := s.breakdown(ctx, contactID, period, true)
	if err != nil {
		return SectionData{}, err
	}

	toil, err := s.store.ListLeaveRequests(ctx, leave.LeaveRequestFilter{
		ContactID:   contactID,
		From:        &period.StartDate,
		To:          &period.EndDate,
		RequestType: leave.RequestTypeTOIL,
	})
	if err != nil {
		return SectionData{}, fmt.Errorf("list toil requests: %w", err)
	}
	asOf := s.asOf(period)
	for _, r := range toil {
		changes, err := s.store.ListBalanceChangesBySource(ctx, leave.SourceTOILRequest, string(r.ID))
		if err != nil {
			return SectionData{}, fmt.Errorf("load toil request %s: %w", r.ID, err)
		}
		for _, c := range changes {
			if !c.Expired(asOf) {
				continue
			}
			expiry := r.ToDate
			rows = append(rows, BreakdownEntry{
				TypeID:     r.TypeID,
				ChangeID:   c.ID,
				Label:      accruedTOILLabel,
				Amount:     c.Amount,
				ExpiryDate: &expiry,
				CreatedAt:  c.CreatedAt,
			})
		}
	}
	return SectionData{Breakdown: rows}, nil
}

// changeLabel returns the label of a balance change type, or the raw value
// when it is not configured.
func (s *Service) changeLabel(ctx context.Context, value string) string {
	o, err := s.store.GetOption(ctx, leave.GroupBalanceChangeType, value)
	if err != nil {
		return value
	}
	return o.Label
}
