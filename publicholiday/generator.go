package publicholiday

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// GENERATOR - one leave request per (contact, holiday)
// =============================================================================

// GeneratorStore is what the generator needs: option lookups and a place to
// save the request.
type GeneratorStore interface {
	leave.OptionResolver
	leave.LeaveRequestStore
}

// Generator creates public holiday leave requests.
type Generator struct {
	store GeneratorStore
}

func NewGenerator(store GeneratorStore) *Generator {
	return &Generator{store: store}
}

// Generate persists an "Admin Approved", "All Day" request covering the
// holiday's date for contactID. The status and day type values are looked up
// on every call. Nothing is written if absenceType does not take public
// holidays as leave, and the request and its dates are saved together.
func (g *Generator) Generate(ctx context.Context, contactID leave.ContactID, absenceType leave.AbsenceType, holiday leave.PublicHoliday) (leave.LeaveRequest, error) {
	return g.generate(ctx, contactID, "", absenceType, holiday)
}

// GenerateForContract is Generate for the contract's contact, recording the
// contract on the request.
func (g *Generator) GenerateForContract(ctx context.Context, contract leave.Contract, absenceType leave.AbsenceType, holiday leave.PublicHoliday) (leave.LeaveRequest, error) {
	return g.generate(ctx, contract.ContactID, contract.ID, absenceType, holiday)
}

func (g *Generator) generate(ctx context.Context, contactID leave.ContactID, contractID leave.ContractID, absenceType leave.AbsenceType, holiday leave.PublicHoliday) (leave.LeaveRequest, error) {
	if !absenceType.MustTakePublicHolidayAsLeave {
		return leave.LeaveRequest{}, &leave.InvalidConfigurationError{
			AbsenceTypeID: absenceType.ID,
			Reason:        "public holiday leave can only be created for absence types that must take public holidays as leave",
		}
	}

	status, err := g.store.ResolveOptionValue(ctx, leave.GroupLeaveRequestStatus, leave.StatusAdminApproved)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	dayType, err := g.store.ResolveOptionValue(ctx, leave.GroupLeaveRequestDayType, leave.DayTypeAllDay)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	req := leave.LeaveRequest{
		ContactID:       contactID,
		TypeID:          absenceType.ID,
		StatusID:        status,
		FromDate:        holiday.Date,
		FromDateType:    dayType,
		RequestType:     leave.RequestTypeLeave,
		IsPublicHoliday: true,
		ContractID:      contractID,
	}
	if err := g.save(ctx, &req); err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("save public holiday leave request for contact %s on %s: %w", contactID, holiday.Date, err)
	}
	return req, nil
}

// save writes the request and its date rows in one transaction when the
// store supports it.
func (g *Generator) save(ctx context.Context, req *leave.LeaveRequest) error {
	ts, ok := g.store.(leave.TxStore)
	if !ok {
		return g.store.SaveLeaveRequest(ctx, req)
	}
	return ts.WithTx(ctx, func(tx leave.Store) error {
		return tx.SaveLeaveRequest(ctx, req)
	})
}
