package leave

import (
	"context"
	"strconv"
	"strings"
)

// =============================================================================
// OPTION VOCABULARY - runtime-configurable labels and their stored values
// =============================================================================

// OptionGroup names a set of configurable option values.
type OptionGroup string

const (
	GroupLeaveRequestStatus  OptionGroup = "hrleaveandabsences_leave_request_status"
	GroupLeaveRequestDayType OptionGroup = "hrleaveandabsences_leave_request_day_type"
	GroupBalanceChangeType   OptionGroup = "hrleaveandabsences_leave_balance_change_type"
)

// Groups lists every option group known to the engine.
var Groups = []OptionGroup{GroupLeaveRequestStatus, GroupLeaveRequestDayType, GroupBalanceChangeType}

// Valid reports whether g is a known group.
func (g OptionGroup) Valid() bool {
	for _, known := range Groups {
		if g == known {
			return true
		}
	}
	return false
}

// Leave request status labels.
const (
	StatusApproved                = "Approved"
	StatusAdminApproved           = "Admin Approved"
	StatusAwaitingApproval        = "Awaiting Approval"
	StatusMoreInformationRequired = "More Information Required"
	StatusRejected                = "Rejected"
	StatusCancelled               = "Cancelled"
)

// Day type labels.
const (
	DayTypeAllDay        = "All Day"
	DayTypeHalfDayAM     = "Half Day AM"
	DayTypeHalfDayPM     = "Half Day PM"
	DayTypeNonWorkingDay = "Non Working Day"
	DayTypeWeekend       = "Weekend"
	DayTypePublicHoliday = "Public Holiday"
)

// Balance change type labels.
const (
	ChangeTypeLeave          = "Leave"
	ChangeTypeBroughtForward = "Brought Forward"
	ChangeTypePublicHoliday  = "Public Holiday"
	ChangeTypeCredit         = "Credit"
	ChangeTypeDebit          = "Debit"
)

// OptionValue is one entry of an option group. Value is what gets persisted
// on leave requests and balance changes; Label is what rules refer to.
type OptionValue struct {
	Group    OptionGroup
	Value    string
	Name     string
	Label    string
	Weight   int
	IsActive bool
}

// OptionResolver maps a human-readable label to its configured value.
// Implementations return an *OptionNotFoundError when the label is unknown.
type OptionResolver interface {
	ResolveOptionValue(ctx context.Context, group OptionGroup, label string) (string, error)
}

// StatusSet resolves a list of status labels into a set of values.
func StatusSet(ctx context.Context, r OptionResolver, labels ...string) (map[string]bool, error) {
	set := make(map[string]bool, len(labels))
	for _, label := range labels {
		v, err := r.ResolveOptionValue(ctx, GroupLeaveRequestStatus, label)
		if err != nil {
			return nil, err
		}
		set[v] = true
	}
	return set, nil
}

// ResolveStatuses resolves the status groups used to partition requests.
func ResolveStatuses(ctx context.Context, r OptionResolver) (Statuses, error) {
	approved, err := StatusSet(ctx, r, StatusApproved, StatusAdminApproved)
	if err != nil {
		return Statuses{}, err
	}
	pending, err := StatusSet(ctx, r, StatusAwaitingApproval, StatusMoreInformationRequired)
	if err != nil {
		return Statuses{}, err
	}
	other, err := StatusSet(ctx, r, StatusRejected, StatusCancelled)
	if err != nil {
		return Statuses{}, err
	}
	cancelled, err := r.ResolveOptionValue(ctx, GroupLeaveRequestStatus, StatusCancelled)
	if err != nil {
		return Statuses{}, err
	}
	return Statuses{Approved: approved, Pending: pending, Other: other, Cancelled: cancelled}, nil
}

// DefaultOptions is the vocabulary seeded into a new store.
func DefaultOptions() []OptionValue {
	seed := map[OptionGroup][]string{
		GroupLeaveRequestStatus: {
			StatusApproved, StatusAdminApproved, StatusAwaitingApproval,
			StatusMoreInformationRequired, StatusRejected, StatusCancelled,
		},
		GroupLeaveRequestDayType: {
			DayTypeAllDay, DayTypeHalfDayAM, DayTypeHalfDayPM,
			DayTypeNonWorkingDay, DayTypeWeekend, DayTypePublicHoliday,
		},
		GroupBalanceChangeType: {
			ChangeTypeLeave, ChangeTypeBroughtForward, ChangeTypePublicHoliday,
			ChangeTypeCredit, ChangeTypeDebit,
		},
	}
	var out []OptionValue
	for _, g := range Groups {
		for i, label := range seed[g] {
			out = append(out, OptionValue{
				Group:    g,
				Value:    strconv.Itoa(i + 1),
				Name:     optionName(label),
				Label:    label,
				Weight:   i + 1,
				IsActive: true,
			})
		}
	}
	return out
}

// optionName derives the machine name, e.g. "Admin Approved" -> "admin_approved".
func optionName(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}
