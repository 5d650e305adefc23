package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BOOKING - a leave request plus its ledger rows
// =============================================================================

// TOILAccrual is the time off in lieu a TOIL request earns.
type TOILAccrual struct {
	Amount     decimal.Decimal
	ExpiryDate *Date
}

var (
	fullDay = decimal.NewFromInt(-1)
	halfDay = decimal.RequireFromString("-0.5")
)

// Book saves a new request and one Leave balance change per covered day.
// A day already taken by an active public holiday request of the same
// contact and absence type costs nothing. A TOIL accrual, if given, is
// recorded as a Credit change sourced from the request.
//
// Book does not open a transaction; callers wrap it in WithTx.
func Book(ctx context.Context, s Store, r *LeaveRequest, toil *TOILAccrual) ([]LeaveBalanceChange, error) {
	if r.ID != "" {
		return nil, &ValidationError{Field: "id", Message: "must be empty for a new request"}
	}
	r.Normalize()
	if err := s.SaveLeaveRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("save leave request: %w", err)
	}

	leaveType, err := s.ResolveOptionValue(ctx, GroupBalanceChangeType, ChangeTypeLeave)
	if err != nil {
		return nil, err
	}

	var changes []LeaveBalanceChange
	for i, row := range r.Dates {
		dayType := r.FromDateType
		switch {
		case i == len(r.Dates)-1 && i > 0:
			dayType = r.ToDateType
		case i > 0:
			dayType = ""
		}
		amount, err := dayAmount(ctx, s, *r, row.Date, dayType)
		if err != nil {
			return nil, err
		}
		c := LeaveBalanceChange{
			SourceID:   string(row.ID),
			SourceType: SourceLeaveRequestDay,
			TypeID:     leaveType,
			Amount:     amount,
		}
		if err := s.SaveBalanceChange(ctx, &c); err != nil {
			return nil, fmt.Errorf("save balance change for %s: %w", row.Date, err)
		}
		changes = append(changes, c)
	}

	if toil != nil && r.RequestType == RequestTypeTOIL {
		credit, err := s.ResolveOptionValue(ctx, GroupBalanceChangeType, ChangeTypeCredit)
		if err != nil {
			return nil, err
		}
		c := LeaveBalanceChange{
			SourceID:   string(r.ID),
			SourceType: SourceTOILRequest,
			TypeID:     credit,
			Amount:     toil.Amount,
			ExpiryDate: toil.ExpiryDate,
		}
		if err := s.SaveBalanceChange(ctx, &c); err != nil {
			return nil, fmt.Errorf("save toil accrual: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// dayAmount is the deduction for one day. An empty dayType is a whole day.
func dayAmount(ctx context.Context, s Store, r LeaveRequest, date Date, dayType string) (decimal.Decimal, error) {
	if r.IsPublicHoliday {
		return fullDay, nil
	}

	taken, err := s.FindDayChanges(ctx, DayChangeQuery{
		ContactID:        r.ContactID,
		TypeID:           r.TypeID,
		Date:             date,
		ExcludeRequestID: r.ID,
		ActiveOnly:       true,
	})
	if err != nil {
		return decimal.Zero, err
	}
	for _, dc := range taken {
		if dc.Request.IsPublicHoliday {
			return decimal.Zero, nil
		}
	}

	if dayType == "" {
		return fullDay, nil
	}
	o, err := s.GetOption(ctx, GroupLeaveRequestDayType, dayType)
	if err != nil {
		return decimal.Zero, err
	}
	switch o.Label {
	case DayTypeHalfDayAM, DayTypeHalfDayPM:
		return halfDay, nil
	case DayTypeNonWorkingDay, DayTypeWeekend, DayTypePublicHoliday:
		return decimal.Zero, nil
	default:
		return fullDay, nil
	}
}
