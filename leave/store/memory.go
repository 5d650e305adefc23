// Package store provides an in-memory leave.TxStore.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a leave.TxStore kept in maps. Every call takes the store lock;
// WithTx holds it for the whole function and restores a snapshot on error.
type Memory struct {
	mu sync.RWMutex
	st *state
}

// NewMemory returns an empty store seeded with the default option values.
func NewMemory() *Memory {
	st := newState()
	for _, o := range leave.DefaultOptions() {
		_ = st.SaveOption(context.Background(), &o)
	}
	return &Memory{st: st}
}

var (
	_ leave.TxStore = (*Memory)(nil)
	_ leave.Store   = (*state)(nil)
)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Contracts
func (m *Memory) SaveContract(ctx context.Context, c *leave.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveContract(ctx, c)
}

func (m *Memory) GetContract(ctx context.Context, id leave.ContractID) (leave.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetContract(ctx, id)
}

func (m *Memory) ListContracts(ctx context.Context, contactID leave.ContactID) ([]leave.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListContracts(ctx, contactID)
}

func (m *Memory) GetContractsOverlapping(ctx context.Context, start, end leave.Date) ([]leave.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetContractsOverlapping(ctx, start, end)
}

// Holidays
func (m *Memory) SaveHoliday(ctx context.Context, h *leave.PublicHoliday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveHoliday(ctx, h)
}

func (m *Memory) GetHoliday(ctx context.Context, id leave.HolidayID) (leave.PublicHoliday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetHoliday(ctx, id)
}

func (m *Memory) ListHolidays(ctx context.Context) ([]leave.PublicHoliday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListHolidays(ctx)
}

func (m *Memory) GetActiveHolidaysFrom(ctx context.Context, from leave.Date) ([]leave.PublicHoliday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetActiveHolidaysFrom(ctx, from)
}

// Absence types
func (m *Memory) SaveAbsenceType(ctx context.Context, t *leave.AbsenceType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveAbsenceType(ctx, t)
}

func (m *Memory) GetAbsenceType(ctx context.Context, id leave.AbsenceTypeID) (leave.AbsenceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetAbsenceType(ctx, id)
}

func (m *Memory) ListAbsenceTypes(ctx context.Context) ([]leave.AbsenceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListAbsenceTypes(ctx)
}

func (m *Memory) GetPublicHolidayAbsenceType(ctx context.Context) (leave.AbsenceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetPublicHolidayAbsenceType(ctx)
}

// Absence periods
func (m *Memory) SaveAbsencePeriod(ctx context.Context, p *leave.AbsencePeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveAbsencePeriod(ctx, p)
}

func (m *Memory) GetAbsencePeriod(ctx context.Context, id leave.AbsencePeriodID) (leave.AbsencePeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetAbsencePeriod(ctx, id)
}

func (m *Memory) ListAbsencePeriods(ctx context.Context) ([]leave.AbsencePeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListAbsencePeriods(ctx)
}

// Leave requests
func (m *Memory) SaveLeaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveLeaveRequest(ctx, r)
}

func (m *Memory) GetLeaveRequest(ctx context.Context, id leave.LeaveRequestID) (leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetLeaveRequest(ctx, id)
}

func (m *Memory) ListLeaveRequests(ctx context.Context, f leave.LeaveRequestFilter) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListLeaveRequests(ctx, f)
}

func (m *Memory) HasPublicHolidayRequest(ctx context.Context, q leave.PublicHolidayRequestQuery) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.HasPublicHolidayRequest(ctx, q)
}

// Balance changes
func (m *Memory) SaveBalanceChange(ctx context.Context, c *leave.LeaveBalanceChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveBalanceChange(ctx, c)
}

func (m *Memory) ListBalanceChangesBySource(ctx context.Context, sourceType leave.SourceType, sourceID string) ([]leave.LeaveBalanceChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListBalanceChangesBySource(ctx, sourceType, sourceID)
}

func (m *Memory) FindDayChanges(ctx context.Context, q leave.DayChangeQuery) ([]leave.DayBalanceChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.FindDayChanges(ctx, q)
}

func (m *Memory) ListDayChanges(ctx context.Context, contactID leave.ContactID, typeID leave.AbsenceTypeID, p leave.Period) ([]leave.DayBalanceChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListDayChanges(ctx, contactID, typeID, p)
}

// Entitlements
func (m *Memory) SaveEntitlement(ctx context.Context, e *leave.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveEntitlement(ctx, e)
}

func (m *Memory) GetEntitlement(ctx context.Context, id leave.EntitlementID) (leave.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetEntitlement(ctx, id)
}

func (m *Memory) ListEntitlements(ctx context.Context, contactID leave.ContactID, periodID leave.AbsencePeriodID) ([]leave.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListEntitlements(ctx, contactID, periodID)
}

// Options
func (m *Memory) SaveOption(ctx context.Context, o *leave.OptionValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveOption(ctx, o)
}

func (m *Memory) ListOptions(ctx context.Context, group leave.OptionGroup) ([]leave.OptionValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListOptions(ctx, group)
}

func (m *Memory) GetOption(ctx context.Context, group leave.OptionGroup, value string) (leave.OptionValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetOption(ctx, group, value)
}

func (m *Memory) ResolveOptionValue(ctx context.Context, group leave.OptionGroup, label string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ResolveOptionValue(ctx, group, label)
}

// =============================================================================
// STATE - unlocked maps; also the Store handed to WithTx callbacks
// =============================================================================

type optionKey struct {
	Group leave.OptionGroup
	Value string
}

type state struct {
	contracts    map[leave.ContractID]leave.Contract
	holidays     map[leave.HolidayID]leave.PublicHoliday
	absenceTypes map[leave.AbsenceTypeID]leave.AbsenceType
	periods      map[leave.AbsencePeriodID]leave.AbsencePeriod
	requests     map[leave.LeaveRequestID]leave.LeaveRequest
	dates        map[leave.LeaveRequestDateID]leave.LeaveRequestDate
	changes      map[leave.BalanceChangeID]leave.LeaveBalanceChange
	entitlements map[leave.EntitlementID]leave.Entitlement
	options      map[optionKey]leave.OptionValue
}

func newState() *state {
	return &state{
		contracts:    make(map[leave.ContractID]leave.Contract),
		holidays:     make(map[leave.HolidayID]leave.PublicHoliday),
		absenceTypes: make(map[leave.AbsenceTypeID]leave.AbsenceType),
		periods:      make(map[leave.AbsencePeriodID]leave.AbsencePeriod),
		requests:     make(map[leave.LeaveRequestID]leave.LeaveRequest),
		dates:        make(map[leave.LeaveRequestDateID]leave.LeaveRequestDate),
		changes:      make(map[leave.BalanceChangeID]leave.LeaveBalanceChange),
		entitlements: make(map[leave.EntitlementID]leave.Entitlement),
		options:      make(map[optionKey]leave.OptionValue),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	for k, v := range s.holidays {
		c.holidays[k] = v
	}
	for k, v := range s.absenceTypes {
		c.absenceTypes[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.requests {
		v.Dates = append([]leave.LeaveRequestDate(nil), v.Dates...)
		c.requests[k] = v
	}
	for k, v := range s.dates {
		c.dates[k] = v
	}
	for k, v := range s.changes {
		c.changes[k] = v
	}
	for k, v := range s.entitlements {
		c.entitlements[k] = v
	}
	for k, v := range s.options {
		c.options[k] = v
	}
	return c
}

func notFound(kind, id string) error { return &leave.NotFoundError{Kind: kind, ID: id} }

// Contracts

func (s *state) SaveContract(_ context.Context, c *leave.Contract) error {
	if c.ContactID == "" {
		return &leave.ValidationError{Field: "contact_id", Message: "is required"}
	}
	if c.PeriodStart.IsZero() {
		return &leave.ValidationError{Field: "period_start", Message: "is required"}
	}
	if c.PeriodEnd != nil && c.PeriodEnd.Before(c.PeriodStart) {
		return &leave.ValidationError{Field: "period_end", Message: "must not be before period_start"}
	}
	if c.ID == "" {
		c.ID = leave.ContractID(uuid.NewString())
	} else if _, ok := s.contracts[c.ID]; !ok {
		return notFound("contract", string(c.ID))
	}
	s.contracts[c.ID] = *c
	return nil
}

func (s *state) GetContract(_ context.Context, id leave.ContractID) (leave.Contract, error) {
	c, ok := s.contracts[id]
	if !ok {
		return leave.Contract{}, notFound("contract", string(id))
	}
	return c, nil
}

func (s *state) ListContracts(_ context.Context, contactID leave.ContactID) ([]leave.Contract, error) {
	var out []leave.Contract
	for _, c := range s.contracts {
		if contactID == "" || c.ContactID == contactID {
			out = append(out, c)
		}
	}
	sortContracts(out)
	return out, nil
}

func (s *state) GetContractsOverlapping(_ context.Context, start, end leave.Date) ([]leave.Contract, error) {
	window := leave.Period{Start: start, End: end}
	var out []leave.Contract
	for _, c := range s.contracts {
		if window.Overlaps(c.PeriodStart, c.PeriodEnd) {
			out = append(out, c)
		}
	}
	sortContracts(out)
	return out, nil
}

func sortContracts(cs []leave.Contract) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].PeriodStart.Equal(cs[j].PeriodStart) {
			return cs[i].PeriodStart.Before(cs[j].PeriodStart)
		}
		return cs[i].ID < cs[j].ID
	})
}

// Holidays

func (s *state) SaveHoliday(_ context.Context, h *leave.PublicHoliday) error {
	if h.Title == "" {
		return &leave.ValidationError{Field: "title", Message: "is required"}
	}
	if h.Date.IsZero() {
		return &leave.ValidationError{Field: "date", Message: "is required"}
	}
	if h.ID == "" {
		h.ID = leave.HolidayID(uuid.NewString())
	} else if _, ok := s.holidays[h.ID]; !ok {
		return notFound("public holiday", string(h.ID))
	}
	s.holidays[h.ID] = *h
	return nil
}

func (s *state) GetHoliday(_ context.Context, id leave.HolidayID) (leave.PublicHoliday, error) {
	h, ok := s.holidays[id]
	if !ok {
		return leave.PublicHoliday{}, notFound("public holiday", string(id))
	}
	return h, nil
}

func (s *state) ListHolidays(_ context.Context) ([]leave.PublicHoliday, error) {
	out := make([]leave.PublicHoliday, 0, len(s.holidays))
	for _, h := range s.holidays {
		out = append(out, h)
	}
	sortHolidays(out)
	return out, nil
}

func (s *state) GetActiveHolidaysFrom(_ context.Context, from leave.Date) ([]leave.PublicHoliday, error) {
	var out []leave.PublicHoliday
	for _, h := range s.holidays {
		if h.IsActive && h.Date.AfterOrEqual(from) {
			out = append(out, h)
		}
	}
	sortHolidays(out)
	return out, nil
}

func sortHolidays(hs []leave.PublicHoliday) {
	sort.Slice(hs, func(i, j int) bool {
		if !hs[i].Date.Equal(hs[j].Date) {
			return hs[i].Date.Before(hs[j].Date)
		}
		return hs[i].ID < hs[j].ID
	})
}

// Absence types

func (s *state) SaveAbsenceType(_ context.Context, t *leave.AbsenceType) error {
	if t.Title == "" {
		return &leave.ValidationError{Field: "title", Message: "is required"}
	}
	if t.AllowRequestCancelation == 0 {
		t.AllowRequestCancelation = leave.CancelationNo
	}
	if !t.AllowRequestCancelation.Valid() {
		return &leave.ValidationError{Field: "allow_request_cancelation", Message: "must be 1, 2 or 3"}
	}
	if t.MustTakePublicHolidayAsLeave && t.IsActive {
		for _, other := range s.absenceTypes {
			if other.ID != t.ID && other.IsActive && other.MustTakePublicHolidayAsLeave {
				return &leave.ValidationError{
					Field:   "must_take_public_holiday_as_leave",
					Message: "is already set on absence type " + other.Title,
				}
			}
		}
	}
	if t.ID == "" {
		t.ID = leave.AbsenceTypeID(uuid.NewString())
	} else if _, ok := s.absenceTypes[t.ID]; !ok {
		return notFound("absence type", string(t.ID))
	}
	s.absenceTypes[t.ID] = *t
	return nil
}

func (s *state) GetAbsenceType(_ context.Context, id leave.AbsenceTypeID) (leave.AbsenceType, error) {
	t, ok := s.absenceTypes[id]
	if !ok {
		return leave.AbsenceType{}, notFound("absence type", string(id))
	}
	return t, nil
}

func (s *state) ListAbsenceTypes(_ context.Context) ([]leave.AbsenceType, error) {
	out := make([]leave.AbsenceType, 0, len(s.absenceTypes))
	for _, t := range s.absenceTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) GetPublicHolidayAbsenceType(_ context.Context) (leave.AbsenceType, error) {
	for _, t := range s.absenceTypes {
		if t.IsActive && t.MustTakePublicHolidayAsLeave {
			return t, nil
		}
	}
	return leave.AbsenceType{}, leave.ErrNoPublicHolidayAbsenceType
}

// Absence periods

func (s *state) SaveAbsencePeriod(_ context.Context, p *leave.AbsencePeriod) error {
	if p.Title == "" {
		return &leave.ValidationError{Field: "title", Message: "is required"}
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return &leave.ValidationError{Field: "start_date", Message: "and end_date are required"}
	}
	if p.EndDate.Before(p.StartDate) {
		return &leave.ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	if p.ID == "" {
		p.ID = leave.AbsencePeriodID(uuid.NewString())
	} else if _, ok := s.periods[p.ID]; !ok {
		return notFound("absence period", string(p.ID))
	}
	s.periods[p.ID] = *p
	return nil
}

func (s *state) GetAbsencePeriod(_ context.Context, id leave.AbsencePeriodID) (leave.AbsencePeriod, error) {
	p, ok := s.periods[id]
	if !ok {
		return leave.AbsencePeriod{}, notFound("absence period", string(id))
	}
	return p, nil
}

func (s *state) ListAbsencePeriods(_ context.Context) ([]leave.AbsencePeriod, error) {
	out := make([]leave.AbsencePeriod, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// Leave requests

func (s *state) SaveLeaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	if r.ID != "" {
		existing, ok := s.requests[r.ID]
		if !ok {
			return notFound("leave request", string(r.ID))
		}
		if r.StatusID == "" {
			return &leave.ValidationError{Field: "status_id", Message: "is required"}
		}
		existing.StatusID = r.StatusID
		if r.FromDateType != "" {
			existing.FromDateType = r.FromDateType
		}
		if r.ToDateType != "" {
			existing.ToDateType = r.ToDateType
		}
		s.requests[r.ID] = existing
		*r = copyRequest(existing)
		return nil
	}

	r.Normalize()
	if err := r.Validate(); err != nil {
		return err
	}
	r.ID = leave.LeaveRequestID(uuid.NewString())
	r.CreatedAt = time.Now().UTC()
	r.Dates = r.DateRows()
	for i := range r.Dates {
		r.Dates[i].ID = leave.LeaveRequestDateID(uuid.NewString())
		s.dates[r.Dates[i].ID] = r.Dates[i]
	}
	s.requests[r.ID] = copyRequest(*r)
	return nil
}

func copyRequest(r leave.LeaveRequest) leave.LeaveRequest {
	r.Dates = append([]leave.LeaveRequestDate(nil), r.Dates...)
	return r
}

func (s *state) GetLeaveRequest(_ context.Context, id leave.LeaveRequestID) (leave.LeaveRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return leave.LeaveRequest{}, notFound("leave request", string(id))
	}
	return copyRequest(r), nil
}

func (s *state) ListLeaveRequests(_ context.Context, f leave.LeaveRequestFilter) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if matchesFilter(r, f) {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FromDate.Equal(out[j].FromDate) {
			return out[i].FromDate.Before(out[j].FromDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesFilter(r leave.LeaveRequest, f leave.LeaveRequestFilter) bool {
	switch {
	case f.ContactID != "" && r.ContactID != f.ContactID:
		return false
	case f.TypeID != "" && r.TypeID != f.TypeID:
		return false
	case f.RequestType != "" && r.RequestType != f.RequestType:
		return false
	case f.PublicHoliday != nil && r.IsPublicHoliday != *f.PublicHoliday:
		return false
	case f.From != nil && r.ToDate.Before(*f.From):
		return false
	case f.To != nil && r.FromDate.After(*f.To):
		return false
	}
	return true
}

func (s *state) HasPublicHolidayRequest(_ context.Context, q leave.PublicHolidayRequestQuery) (bool, error) {
	for _, r := range s.requests {
		if !r.IsPublicHoliday || r.ContactID != q.ContactID || r.TypeID != q.TypeID || !r.Span().Contains(q.Date) {
			continue
		}
		if q.ContractID == "" || r.ContractID == q.ContractID {
			return true, nil
		}
	}
	return false, nil
}

// Balance changes

func (s *state) SaveBalanceChange(_ context.Context, c *leave.LeaveBalanceChange) error {
	if err := validateChange(c); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = leave.BalanceChangeID(uuid.NewString())
		c.CreatedAt = time.Now().UTC()
	} else {
		existing, ok := s.changes[c.ID]
		if !ok {
			return notFound("balance change", string(c.ID))
		}
		c.CreatedAt = existing.CreatedAt
	}
	s.changes[c.ID] = *c
	return nil
}

func validateChange(c *leave.LeaveBalanceChange) error {
	switch {
	case c.SourceID == "":
		return &leave.ValidationError{Field: "source_id", Message: "is required"}
	case c.TypeID == "":
		return &leave.ValidationError{Field: "type_id", Message: "is required"}
	}
	switch c.SourceType {
	case leave.SourceLeaveRequestDay, leave.SourceEntitlement, leave.SourceTOILRequest:
		return nil
	default:
		return &leave.ValidationError{Field: "source_type", Message: "is not a known source type"}
	}
}

func (s *state) ListBalanceChangesBySource(_ context.Context, sourceType leave.SourceType, sourceID string) ([]leave.LeaveBalanceChange, error) {
	var out []leave.LeaveBalanceChange
	for _, c := range s.changes {
		if c.SourceType == sourceType && c.SourceID == sourceID {
			out = append(out, c)
		}
	}
	sortChanges(out)
	return out, nil
}

func sortChanges(cs []leave.LeaveBalanceChange) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

// dayChanges joins every leave_request_day change with its date row and request.
func (s *state) dayChanges(keep func(leave.DayBalanceChange) bool) []leave.DayBalanceChange {
	var out []leave.DayBalanceChange
	for _, c := range s.changes {
		if c.SourceType != leave.SourceLeaveRequestDay {
			continue
		}
		row, ok := s.dates[leave.LeaveRequestDateID(c.SourceID)]
		if !ok {
			continue
		}
		r, ok := s.requests[row.LeaveRequestID]
		if !ok {
			continue
		}
		dc := leave.DayBalanceChange{Change: c, Date: row.Date, Request: copyRequest(r)}
		if keep(dc) {
			out = append(out, dc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Change, out[j].Change
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (s *state) FindDayChanges(_ context.Context, q leave.DayChangeQuery) ([]leave.DayBalanceChange, error) {
	return s.dayChanges(func(dc leave.DayBalanceChange) bool {
		return dc.Request.ContactID == q.ContactID &&
			dc.Request.TypeID == q.TypeID &&
			dc.Date.Equal(q.Date) &&
			(q.ExcludeRequestID == "" || dc.Request.ID != q.ExcludeRequestID) &&
			(!q.ActiveOnly || dc.Change.IsActive())
	}), nil
}

func (s *state) ListDayChanges(_ context.Context, contactID leave.ContactID, typeID leave.AbsenceTypeID, p leave.Period) ([]leave.DayBalanceChange, error) {
	return s.dayChanges(func(dc leave.DayBalanceChange) bool {
		return dc.Request.ContactID == contactID &&
			(typeID == "" || dc.Request.TypeID == typeID) &&
			p.Contains(dc.Date)
	}), nil
}

// Entitlements

func (s *state) SaveEntitlement(_ context.Context, e *leave.Entitlement) error {
	switch {
	case e.ContactID == "":
		return &leave.ValidationError{Field: "contact_id", Message: "is required"}
	case e.TypeID == "":
		return &leave.ValidationError{Field: "type_id", Message: "is required"}
	case e.PeriodID == "":
		return &leave.ValidationError{Field: "period_id", Message: "is required"}
	}
	if e.ID == "" {
		e.ID = leave.EntitlementID(uuid.NewString())
	} else if _, ok := s.entitlements[e.ID]; !ok {
		return notFound("entitlement", string(e.ID))
	}
	s.entitlements[e.ID] = *e
	return nil
}

func (s *state) GetEntitlement(_ context.Context, id leave.EntitlementID) (leave.Entitlement, error) {
	e, ok := s.entitlements[id]
	if !ok {
		return leave.Entitlement{}, notFound("entitlement", string(id))
	}
	return e, nil
}

func (s *state) ListEntitlements(_ context.Context, contactID leave.ContactID, periodID leave.AbsencePeriodID) ([]leave.Entitlement, error) {
	var out []leave.Entitlement
	for _, e := range s.entitlements {
		if (contactID == "" || e.ContactID == contactID) && (periodID == "" || e.PeriodID == periodID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Options

func (s *state) SaveOption(_ context.Context, o *leave.OptionValue) error {
	switch {
	case !o.Group.Valid():
		return &leave.ValidationError{Field: "group", Message: "is not a known option group"}
	case o.Value == "":
		return &leave.ValidationError{Field: "value", Message: "is required"}
	case o.Label == "":
		return &leave.ValidationError{Field: "label", Message: "is required"}
	}
	s.options[optionKey{Group: o.Group, Value: o.Value}] = *o
	return nil
}

func (s *state) ListOptions(_ context.Context, group leave.OptionGroup) ([]leave.OptionValue, error) {
	var out []leave.OptionValue
	for k, o := range s.options {
		if k.Group == group {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight < out[j].Weight
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func (s *state) GetOption(_ context.Context, group leave.OptionGroup, value string) (leave.OptionValue, error) {
	o, ok := s.options[optionKey{Group: group, Value: value}]
	if !ok {
		return leave.OptionValue{}, notFound("option value", string(group)+"/"+value)
	}
	return o, nil
}

func (s *state) ResolveOptionValue(ctx context.Context, group leave.OptionGroup, label string) (string, error) {
	opts, _ := s.ListOptions(ctx, group)
	for _, o := range opts {
		if o.IsActive && o.Label == label {
			return o.Value, nil
		}
	}
	return "", &leave.OptionNotFoundError{Group: group, Label: label}
}
