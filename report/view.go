package report

import (
	"context"
	"sync"

	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// VIEW - one open report, kept fresh by leave events
// =============================================================================

// SectionState is a section as a View holds it.
type SectionState struct {
	Open bool
	Data SectionData
}

// View is the report of one contact for one absence period. Sections are
// loaded the first time they are opened and cached until a refresh.
type View struct {
	svc       *Service
	contactID leave.ContactID
	period    leave.AbsencePeriod

	mu       sync.Mutex
	summary  Summary
	sections map[Section]*SectionState
	unsubs   []func()
}

// NewView opens the report and loads its summary.
func (s *Service) NewView(ctx context.Context, contactID leave.ContactID, period leave.AbsencePeriod) (*View, error) {
	v := &View{
		svc:       s,
		contactID: contactID,
		period:    period,
		sections:  make(map[Section]*SectionState, len(Sections)),
	}
	for _, name := range Sections {
		v.sections[name] = &SectionState{}
	}
	summary, err := s.Summary(ctx, contactID, period)
	if err != nil {
		return nil, err
	}
	v.summary = summary
	return v, nil
}

func (v *View) ContactID() leave.ContactID { return v.contactID }

func (v *View) Period() leave.AbsencePeriod { return v.period }

// Summary returns the current summary.
func (v *View) Summary() Summary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.summary
}

// Section returns a copy of the section's state.
func (v *View) Section(name Section) SectionState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if st, ok := v.sections[name]; ok {
		return *st
	}
	return SectionState{}
}

// ToggleSection opens or closes a section. Opening a section with no
// cached rows loads it.
func (v *View) ToggleSection(ctx context.Context, name Section) (SectionState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, ok := v.sections[name]
	if !ok {
		_, err := ParseSection(string(name))
		return SectionState{}, err
	}
	st.Open = !st.Open
	if st.Open && st.Data.Len() == 0 {
		data, err := v.svc.LoadSection(ctx, v.contactID, v.period, name)
		if err != nil {
			st.Open = false
			return SectionState{}, err
		}
		st.Data = data
	}
	return *st, nil
}

// Open makes sure a section is open and loaded.
func (v *View) Open(ctx context.Context, name Section) (SectionState, error) {
	if v.Section(name).Open {
		return v.Section(name), nil
	}
	return v.ToggleSection(ctx, name)
}

// Refresh reloads the summary and every open section, and drops the cached
// rows of closed ones.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	summary, err := v.svc.Summary(ctx, v.contactID, v.period)
	if err != nil {
		return err
	}
	v.summary = summary

	for _, name := range Sections {
		st := v.sections[name]
		if !st.Open {
			st.Data = SectionData{}
			continue
		}
		data, err := v.svc.LoadSection(ctx, v.contactID, v.period, name)
		if err != nil {
			return err
		}
		st.Data = data
	}
	return nil
}

// Cancel cancels one of the contact's requests and moves it from the
// approved or pending rows to other, if other is loaded.
func (v *View) Cancel(ctx context.Context, id leave.LeaveRequestID) (leave.LeaveRequest, error) {
	r, err := v.svc.Cancel(ctx, id)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var moved *RequestEntry
	for _, name := range []Section{SectionApproved, SectionPending} {
		st := v.sections[name]
		kept := st.Data.Requests[:0]
		for _, e := range st.Data.Requests {
			if e.Request.ID == r.ID {
				moved = &e
				continue
			}
			kept = append(kept, e)
		}
		st.Data.Requests = kept
	}

	other := v.sections[SectionOther]
	if other.Data.Len() > 0 && !containsRequest(other.Data.Requests, r.ID) {
		entry := RequestEntry{Request: r}
		if moved != nil {
			entry.BalanceChange = moved.BalanceChange
		}
		other.Data.Requests = append(other.Data.Requests, entry)
	}

	summary, err := v.svc.Summary(ctx, v.contactID, v.period)
	if err != nil {
		return r, err
	}
	v.summary = summary
	return r, nil
}

func containsRequest(entries []RequestEntry, id leave.LeaveRequestID) bool {
	for _, e := range entries {
		if e.Request.ID == id {
			return true
		}
	}
	return false
}

// Subscribe refreshes the view whenever a leave event concerns its contact.
func (v *View) Subscribe(bus *events.Bus) {
	handler := func(ctx context.Context, e events.Event) {
		if e.ContactID != "" && e.ContactID != v.contactID {
			return
		}
		if err := v.Refresh(ctx); err != nil {
			v.svc.logger.WithError(err).WithField("contact_id", v.contactID).Warn("report refresh failed")
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, topic := range []events.Topic{
		events.TopicLeaveRequestCreated,
		events.TopicLeaveRequestEdited,
		events.TopicBalanceChanged,
	} {
		v.unsubs = append(v.unsubs, bus.Subscribe(topic, handler))
	}
}

// Close drops the view's subscriptions.
func (v *View) Close() {
	v.mu.Lock()
	unsubs := v.unsubs
	v.unsubs = nil
	v.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// =============================================================================
// CACHE - views shared across API calls
// =============================================================================

type viewKey struct {
	contact leave.ContactID
	period  leave.AbsencePeriodID
}

// Cache keeps one subscribed View per contact and period.
type Cache struct {
	svc *Service
	bus *events.Bus

	mu    sync.Mutex
	views map[viewKey]*View
}

func NewCache(svc *Service, bus *events.Bus) *Cache {
	return &Cache{svc: svc, bus: bus, views: make(map[viewKey]*View)}
}

// View returns the cached view, opening it on first use. An empty periodID
// selects the current absence period.
func (c *Cache) View(ctx context.Context, contactID leave.ContactID, periodID leave.AbsencePeriodID) (*View, error) {
	period, err := c.svc.Period(ctx, periodID)
	if err != nil {
		return nil, err
	}
	key := viewKey{contact: contactID, period: period.ID}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.views[key]; ok {
		return v, nil
	}
	v, err := c.svc.NewView(ctx, contactID, period)
	if err != nil {
		return nil, err
	}
	if c.bus != nil {
		v.Subscribe(c.bus)
	}
	c.views[key] = v
	return v, nil
}

// Len returns the number of cached views.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}

// Close unsubscribes and drops every view.
func (c *Cache) Close() {
	c.mu.Lock()
	views := c.views
	c.views = make(map[viewKey]*View)
	c.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
