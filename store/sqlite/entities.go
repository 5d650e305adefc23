package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// CONTRACTS
// =============================================================================

func (s *queries) SaveContract(ctx context.Context, c *leave.Contract) error {
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
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO contracts (id, contact_id, title, period_start, period_end)
			VALUES (?, ?, ?, ?, ?)
		`, c.ID, c.ContactID, c.Title, c.PeriodStart.String(), nullDate(c.PeriodEnd))
		if err != nil {
			return fmt.Errorf("failed to save contract: %w", err)
		}
		return nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE contracts SET contact_id = ?, title = ?, period_start = ?, period_end = ?
		WHERE id = ?
	`, c.ContactID, c.Title, c.PeriodStart.String(), nullDate(c.PeriodEnd), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return checkAffected(res, "contract", string(c.ID))
}

const contractColumns = `id, contact_id, title, period_start, period_end`

func (s *queries) GetContract(ctx context.Context, id leave.ContractID) (leave.Contract, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	c, err := scanContract(row)
	if err != nil {
		return leave.Contract{}, notFoundOr(err, "contract", string(id))
	}
	return c, nil
}

func (s *queries) ListContracts(ctx context.Context, contactID leave.ContactID) ([]leave.Contract, error) {
	return s.queryContracts(ctx, `
		SELECT `+contractColumns+` FROM contracts
		WHERE ? = '' OR contact_id = ?
		ORDER BY period_start, id
	`, contactID, contactID)
}

// GetContractsOverlapping returns contracts intersecting [start, end].
// A NULL period_end is open-ended.
func (s *queries) GetContractsOverlapping(ctx context.Context, start, end leave.Date) ([]leave.Contract, error) {
	return s.queryContracts(ctx, `
		SELECT `+contractColumns+` FROM contracts
		WHERE period_start <= ? AND (period_end IS NULL OR period_end >= ?)
		ORDER BY period_start, id
	`, end.String(), start.String())
}

func (s *queries) queryContracts(ctx context.Context, query string, args ...any) ([]leave.Contract, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(sc scanner) (leave.Contract, error) {
	var c leave.Contract
	var start string
	var end sql.NullString
	if err := sc.Scan(&c.ID, &c.ContactID, &c.Title, &start, &end); err != nil {
		return leave.Contract{}, err
	}
	var err error
	if c.PeriodStart, err = parseDate(start); err != nil {
		return leave.Contract{}, err
	}
	if c.PeriodEnd, err = parseNullDate(end); err != nil {
		return leave.Contract{}, err
	}
	return c, nil
}

// =============================================================================
// PUBLIC HOLIDAYS
// =============================================================================

func (s *queries) SaveHoliday(ctx context.Context, h *leave.PublicHoliday) error {
	if h.Title == "" {
		return &leave.ValidationError{Field: "title", Message: "is required"}
	}
	if h.Date.IsZero() {
		return &leave.ValidationError{Field: "date", Message: "is required"}
	}

	if h.ID == "" {
		h.ID = leave.HolidayID(uuid.NewString())
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO public_holidays (id, title, date, is_active) VALUES (?, ?, ?, ?)
		`, h.ID, h.Title, h.Date.String(), h.IsActive)
		if err != nil {
			return fmt.Errorf("failed to save public holiday: %w", err)
		}
		return nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE public_holidays SET title = ?, date = ?, is_active = ? WHERE id = ?
	`, h.Title, h.Date.String(), h.IsActive, h.ID)
	if err != nil {
		return fmt.Errorf("failed to update public holiday: %w", err)
	}
	return checkAffected(res, "public holiday", string(h.ID))
}

func (s *queries) GetHoliday(ctx context.Context, id leave.HolidayID) (leave.PublicHoliday, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, title, date, is_active FROM public_holidays WHERE id = ?`, id)
	h, err := scanHoliday(row)
	if err != nil {
		return leave.PublicHoliday{}, notFoundOr(err, "public holiday", string(id))
	}
	return h, nil
}

func (s *queries) ListHolidays(ctx context.Context) ([]leave.PublicHoliday, error) {
	return s.queryHolidays(ctx, `SELECT id, title, date, is_active FROM public_holidays ORDER BY date, id`)
}

func (s *queries) GetActiveHolidaysFrom(ctx context.Context, from leave.Date) ([]leave.PublicHoliday, error) {
	return s.queryHolidays(ctx, `
		SELECT id, title, date, is_active FROM public_holidays
		WHERE is_active = 1 AND date >= ?
		ORDER BY date, id
	`, from.String())
}

func (s *queries) queryHolidays(ctx context.Context, query string, args ...any) ([]leave.PublicHoliday, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.PublicHoliday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHoliday(sc scanner) (leave.PublicHoliday, error) {
	var h leave.PublicHoliday
	var date string
	if err := sc.Scan(&h.ID, &h.Title, &date, &h.IsActive); err != nil {
		return leave.PublicHoliday{}, err
	}
	var err error
	h.Date, err = parseDate(date)
	return h, err
}

// =============================================================================
// ABSENCE TYPES
// =============================================================================

func (s *queries) SaveAbsenceType(ctx context.Context, t *leave.AbsenceType) error {
	if t.Title == "" {
		return &leave.ValidationError{Field: "title", Message: "is required"}
	}
	if t.AllowRequestCancelation == 0 {
		t.AllowRequestCancelation = leave.CancelationNo
	}
	if !t.AllowRequestCancelation.Valid() {
		return &leave.ValidationError{Field: "allow_request_cancelation", Message: "must be 1, 2 or 3"}
	}

	var err error
	var res sql.Result
	if t.ID == "" {
		t.ID = leave.AbsenceTypeID(uuid.NewString())
		_, err = s.q.ExecContext(ctx, `
			INSERT INTO absence_types (id, title, must_take_public_holiday_as_leave,
				allow_request_cancelation, allow_overuse, allow_accruals_request, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.Title, t.MustTakePublicHolidayAsLeave, int(t.AllowRequestCancelation),
			t.AllowOveruse, t.AllowAccrualsRequest, t.IsActive)
	} else {
		res, err = s.q.ExecContext(ctx, `
			UPDATE absence_types SET title = ?, must_take_public_holiday_as_leave = ?,
				allow_request_cancelation = ?, allow_overuse = ?, allow_accruals_request = ?, is_active = ?
			WHERE id = ?
		`, t.Title, t.MustTakePublicHolidayAsLeave, int(t.AllowRequestCancelation),
			t.AllowOveruse, t.AllowAccrualsRequest, t.IsActive, t.ID)
	}
	if err != nil {
		if isUniqueConstraintError(err) {
			return &leave.ValidationError{
				Field:   "must_take_public_holiday_as_leave",
				Message: "is already set on another active absence type",
			}
		}
		return fmt.Errorf("failed to save absence type: %w", err)
	}
	if res != nil {
		return checkAffected(res, "absence type", string(t.ID))
	}
	return nil
}

const absenceTypeColumns = `id, title, must_take_public_holiday_as_leave, allow_request_cancelation,
	allow_overuse, allow_accruals_request, is_active`

func (s *queries) GetAbsenceType(ctx context.Context, id leave.AbsenceTypeID) (leave.AbsenceType, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+absenceTypeColumns+` FROM absence_types WHERE id = ?`, id)
	t, err := scanAbsenceType(row)
	if err != nil {
		return leave.AbsenceType{}, notFoundOr(err, "absence type", string(id))
	}
	return t, nil
}

func (s *queries) ListAbsenceTypes(ctx context.Context) ([]leave.AbsenceType, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+absenceTypeColumns+` FROM absence_types ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.AbsenceType
	for rows.Next() {
		t, err := scanAbsenceType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *queries) GetPublicHolidayAbsenceType(ctx context.Context) (leave.AbsenceType, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+absenceTypeColumns+` FROM absence_types
		WHERE must_take_public_holiday_as_leave = 1 AND is_active = 1
		LIMIT 1
	`)
	t, err := scanAbsenceType(row)
	if err == sql.ErrNoRows {
		return leave.AbsenceType{}, leave.ErrNoPublicHolidayAbsenceType
	}
	return t, err
}

func scanAbsenceType(sc scanner) (leave.AbsenceType, error) {
	var t leave.AbsenceType
	var rule int
	if err := sc.Scan(&t.ID, &t.Title, &t.MustTakePublicHolidayAsLeave, &rule,
		&t.AllowOveruse, &t.AllowAccrualsRequest, &t.IsActive); err != nil {
		return leave.AbsenceType{}, err
	}
	t.AllowRequestCancelation = leave.CancelationRule(rule)
	return t, nil
}

// =============================================================================
// ABSENCE PERIODS
// =============================================================================

func (s *queries) SaveAbsencePeriod(ctx context.Context, p *leave.AbsencePeriod) error {
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
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO absence_periods (id, name, title, start_date, end_date) VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Title, p.StartDate.String(), p.EndDate.String())
		if err != nil {
			return fmt.Errorf("failed to save absence period: %w", err)
		}
		return nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE absence_periods SET name = ?, title = ?, start_date = ?, end_date = ? WHERE id = ?
	`, p.Name, p.Title, p.StartDate.String(), p.EndDate.String(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update absence period: %w", err)
	}
	return checkAffected(res, "absence period", string(p.ID))
}

func (s *queries) GetAbsencePeriod(ctx context.Context, id leave.AbsencePeriodID) (leave.AbsencePeriod, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, name, title, start_date, end_date FROM absence_periods WHERE id = ?`, id)
	p, err := scanPeriod(row)
	if err != nil {
		return leave.AbsencePeriod{}, notFoundOr(err, "absence period", string(id))
	}
	return p, nil
}

func (s *queries) ListAbsencePeriods(ctx context.Context) ([]leave.AbsencePeriod, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, title, start_date, end_date FROM absence_periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.AbsencePeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPeriod(sc scanner) (leave.AbsencePeriod, error) {
	var p leave.AbsencePeriod
	var start, end string
	if err := sc.Scan(&p.ID, &p.Name, &p.Title, &start, &end); err != nil {
		return leave.AbsencePeriod{}, err
	}
	var err error
	if p.StartDate, err = parseDate(start); err != nil {
		return leave.AbsencePeriod{}, err
	}
	p.EndDate, err = parseDate(end)
	return p, err
}
