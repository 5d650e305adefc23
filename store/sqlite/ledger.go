package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE BALANCE CHANGES
// =============================================================================

// SaveBalanceChange inserts a change or rewrites an existing one. Only the
// amount and expiry date change on update; the source is fixed at creation.
func (s *queries) SaveBalanceChange(ctx context.Context, c *leave.LeaveBalanceChange) error {
	switch {
	case c.SourceID == "":
		return &leave.ValidationError{Field: "source_id", Message: "is required"}
	case c.TypeID == "":
		return &leave.ValidationError{Field: "type_id", Message: "is required"}
	}
	switch c.SourceType {
	case leave.SourceLeaveRequestDay, leave.SourceEntitlement, leave.SourceTOILRequest:
	default:
		return &leave.ValidationError{Field: "source_type", Message: "is not a known source type"}
	}

	if c.ID == "" {
		c.ID = leave.BalanceChangeID(uuid.NewString())
		c.CreatedAt = time.Now().UTC()
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO leave_balance_changes (id, source_id, source_type, type_id, amount, expiry_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.SourceID, string(c.SourceType), c.TypeID, c.Amount.String(),
			nullDate(c.ExpiryDate), formatTime(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to save balance change: %w", err)
		}
		return nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_balance_changes SET type_id = ?, amount = ?, expiry_date = ? WHERE id = ?
	`, c.TypeID, c.Amount.String(), nullDate(c.ExpiryDate), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update balance change: %w", err)
	}
	return checkAffected(res, "balance change", string(c.ID))
}

const changeColumns = `c.id, c.source_id, c.source_type, c.type_id, c.amount, c.expiry_date, c.created_at`

func (s *queries) ListBalanceChangesBySource(ctx context.Context, sourceType leave.SourceType, sourceID string) ([]leave.LeaveBalanceChange, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+changeColumns+` FROM leave_balance_changes c
		WHERE c.source_type = ? AND c.source_id = ?
		ORDER BY c.created_at, c.rowid
	`, string(sourceType), sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.LeaveBalanceChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// dayChangeSelect joins a leave_request_day change to its date row and request.
const dayChangeSelect = `
	SELECT ` + changeColumns + `, d.date, ` + requestColumns + `
	FROM leave_balance_changes c
	JOIN leave_request_dates d ON d.id = c.source_id
	JOIN leave_requests r ON r.id = d.leave_request_id
	WHERE c.source_type = 'leave_request_day'`

func (s *queries) FindDayChanges(ctx context.Context, q leave.DayChangeQuery) ([]leave.DayBalanceChange, error) {
	query := dayChangeSelect + `
		AND r.contact_id = ? AND r.type_id = ? AND d.date = ? AND r.id <> ?`
	if q.ActiveOnly {
		query += ` AND CAST(c.amount AS REAL) <> 0`
	}
	query += ` ORDER BY c.created_at, c.rowid`
	return s.queryDayChanges(ctx, query, q.ContactID, q.TypeID, q.Date.String(), q.ExcludeRequestID)
}

func (s *queries) ListDayChanges(ctx context.Context, contactID leave.ContactID, typeID leave.AbsenceTypeID, p leave.Period) ([]leave.DayBalanceChange, error) {
	return s.queryDayChanges(ctx, dayChangeSelect+`
		AND r.contact_id = ? AND (? = '' OR r.type_id = ?) AND d.date BETWEEN ? AND ?
		ORDER BY d.date, c.created_at, c.rowid
	`, contactID, typeID, typeID, p.Start.String(), p.End.String())
}

func (s *queries) queryDayChanges(ctx context.Context, query string, args ...any) ([]leave.DayBalanceChange, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.DayBalanceChange
	for rows.Next() {
		var dc leave.DayBalanceChange
		var amount, createdAt, date string
		var expiry sql.NullString
		var from, to, requestType, requestCreatedAt string
		r := &dc.Request
		if err := rows.Scan(
			&dc.Change.ID, &dc.Change.SourceID, &dc.Change.SourceType, &dc.Change.TypeID,
			&amount, &expiry, &createdAt, &date,
			&r.ID, &r.ContactID, &r.TypeID, &r.StatusID, &from, &r.FromDateType,
			&to, &r.ToDateType, &requestType, &r.IsPublicHoliday, &r.ContractID, &requestCreatedAt,
		); err != nil {
			return nil, err
		}
		if dc.Change.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if dc.Change.ExpiryDate, err = parseNullDate(expiry); err != nil {
			return nil, err
		}
		dc.Change.CreatedAt = parseTime(createdAt)
		if dc.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		if r.FromDate, err = parseDate(from); err != nil {
			return nil, err
		}
		if r.ToDate, err = parseDate(to); err != nil {
			return nil, err
		}
		r.RequestType = leave.RequestType(requestType)
		r.CreatedAt = parseTime(requestCreatedAt)
		out = append(out, dc)
	}
	return out, rows.Err()
}

func scanChange(sc scanner) (leave.LeaveBalanceChange, error) {
	var c leave.LeaveBalanceChange
	var amount, createdAt string
	var expiry sql.NullString
	if err := sc.Scan(&c.ID, &c.SourceID, &c.SourceType, &c.TypeID, &amount, &expiry, &createdAt); err != nil {
		return leave.LeaveBalanceChange{}, err
	}
	var err error
	if c.Amount, err = parseAmount(amount); err != nil {
		return leave.LeaveBalanceChange{}, err
	}
	if c.ExpiryDate, err = parseNullDate(expiry); err != nil {
		return leave.LeaveBalanceChange{}, err
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func (s *queries) SaveEntitlement(ctx context.Context, e *leave.Entitlement) error {
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
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO entitlements (id, contact_id, type_id, period_id, comment) VALUES (?, ?, ?, ?, ?)
		`, e.ID, e.ContactID, e.TypeID, e.PeriodID, e.Comment)
		if err != nil {
			return fmt.Errorf("failed to save entitlement: %w", err)
		}
		return nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE entitlements SET contact_id = ?, type_id = ?, period_id = ?, comment = ? WHERE id = ?
	`, e.ContactID, e.TypeID, e.PeriodID, e.Comment, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update entitlement: %w", err)
	}
	return checkAffected(res, "entitlement", string(e.ID))
}

func (s *queries) GetEntitlement(ctx context.Context, id leave.EntitlementID) (leave.Entitlement, error) {
	var e leave.Entitlement
	err := s.q.QueryRowContext(ctx, `
		SELECT id, contact_id, type_id, period_id, comment FROM entitlements WHERE id = ?
	`, id).Scan(&e.ID, &e.ContactID, &e.TypeID, &e.PeriodID, &e.Comment)
	if err != nil {
		return leave.Entitlement{}, notFoundOr(err, "entitlement", string(id))
	}
	return e, nil
}

func (s *queries) ListEntitlements(ctx context.Context, contactID leave.ContactID, periodID leave.AbsencePeriodID) ([]leave.Entitlement, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, contact_id, type_id, period_id, comment FROM entitlements
		WHERE (? = '' OR contact_id = ?) AND (? = '' OR period_id = ?)
		ORDER BY id
	`, contactID, contactID, periodID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Entitlement
	for rows.Next() {
		var e leave.Entitlement
		if err := rows.Scan(&e.ID, &e.ContactID, &e.TypeID, &e.PeriodID, &e.Comment); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
