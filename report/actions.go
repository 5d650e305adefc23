package report

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
)

// Action is something a contact may do with one of their requests.
type Action string

const (
	ActionEdit    Action = "edit"
	ActionCancel  Action = "cancel"
	ActionRespond Action = "respond"
	ActionView    Action = "view"
)

// actionMatrix is keyed by status label. Admin Approved requests are
// managed by administrators and are view only.
var actionMatrix = map[string][]Action{
	leave.StatusAwaitingApproval:        {ActionEdit, ActionCancel},
	leave.StatusMoreInformationRequired: {ActionRespond, ActionCancel},
	leave.StatusApproved:                {ActionView, ActionCancel},
	leave.StatusAdminApproved:           {ActionView},
	leave.StatusCancelled:               {ActionView},
	leave.StatusRejected:                {ActionView},
}

// ActionsFor returns the actions the request's current status allows.
// An unknown status allows nothing.
func (s *Service) ActionsFor(ctx context.Context, r leave.LeaveRequest) ([]Action, error) {
	o, err := s.store.GetOption(ctx, leave.GroupLeaveRequestStatus, r.StatusID)
	if leave.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return actionMatrix[o.Label], nil
}

// CanCancel applies the absence type's cancellation rule on now's date.
func CanCancel(t leave.AbsenceType, r leave.LeaveRequest, now time.Time) bool {
	return t.AllowsCancelation(r, leave.DateOf(now))
}

// Cancel moves a request to Cancelled. Both the status and the absence type
// rule must allow it, otherwise the error wraps leave.ErrCancelNotAllowed.
func (s *Service) Cancel(ctx context.Context, id leave.LeaveRequestID) (leave.LeaveRequest, error) {
	r, err := s.store.GetLeaveRequest(ctx, id)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	t, err := s.store.GetAbsenceType(ctx, r.TypeID)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	actions, err := s.ActionsFor(ctx, r)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if !hasAction(actions, ActionCancel) {
		return leave.LeaveRequest{}, fmt.Errorf("request %s in status %s: %w", r.ID, r.StatusID, leave.ErrCancelNotAllowed)
	}
	if !CanCancel(t, r, s.now()) {
		return leave.LeaveRequest{}, fmt.Errorf("absence type %s does not allow cancelling request %s: %w", t.ID, r.ID, leave.ErrCancelNotAllowed)
	}

	cancelled, err := s.store.ResolveOptionValue(ctx, leave.GroupLeaveRequestStatus, leave.StatusCancelled)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	r.StatusID = cancelled
	if err := s.store.SaveLeaveRequest(ctx, &r); err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("cancel leave request %s: %w", r.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"contact_id":       r.ContactID,
		"leave_request_id": r.ID,
	}).Info("leave request cancelled")
	s.publisher.Publish(ctx, events.Event{
		Topic:          events.TopicLeaveRequestEdited,
		ContactID:      r.ContactID,
		LeaveRequestID: r.ID,
	})
	return r, nil
}

func hasAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
