package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// SaveLeaveRequest inserts a new request with its date rows, or updates the
// status and day types of an existing one.
func (s *queries) SaveLeaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	if r.ID != "" {
		return s.updateLeaveRequest(ctx, r)
	}

	r.Normalize()
	if err := r.Validate(); err != nil {
		return err
	}
	r.ID = leave.LeaveRequestID(uuid.NewString())
	r.CreatedAt = time.Now().UTC()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_requests (id, contact_id, type_id, status_id, from_date, from_date_type,
			to_date, to_date_type, request_type, is_public_holiday, contract_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ContactID, r.TypeID, r.StatusID, r.FromDate.String(), r.FromDateType,
		r.ToDate.String(), r.ToDateType, string(r.RequestType), r.IsPublicHoliday, r.ContractID, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}

	r.Dates = r.DateRows()
	for i := range r.Dates {
		r.Dates[i].ID = leave.LeaveRequestDateID(uuid.NewString())
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO leave_request_dates (id, leave_request_id, date) VALUES (?, ?, ?)
		`, r.Dates[i].ID, r.ID, r.Dates[i].Date.String())
		if err != nil {
			return fmt.Errorf("failed to save leave request date: %w", err)
		}
	}
	return nil
}

func (s *queries) updateLeaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	if r.StatusID == "" {
		return &leave.ValidationError{Field: "status_id", Message: "is required"}
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_requests SET status_id = ?,
			from_date_type = COALESCE(NULLIF(?, ''), from_date_type),
			to_date_type = COALESCE(NULLIF(?, ''), to_date_type)
		WHERE id = ?
	`, r.StatusID, r.FromDateType, r.ToDateType, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if err := checkAffected(res, "leave request", string(r.ID)); err != nil {
		return err
	}

	saved, err := s.GetLeaveRequest(ctx, r.ID)
	if err != nil {
		return err
	}
	*r = saved
	return nil
}

const requestColumns = `r.id, r.contact_id, r.type_id, r.status_id, r.from_date, r.from_date_type,
	r.to_date, r.to_date_type, r.request_type, r.is_public_holiday, r.contract_id, r.created_at`

func (s *queries) GetLeaveRequest(ctx context.Context, id leave.LeaveRequestID) (leave.LeaveRequest, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests r WHERE r.id = ?`, id)
	r, err := scanRequest(row)
	if err != nil {
		return leave.LeaveRequest{}, notFoundOr(err, "leave request", string(id))
	}

	reqs := []leave.LeaveRequest{r}
	if err := s.attachDates(ctx, reqs); err != nil {
		return leave.LeaveRequest{}, err
	}
	return reqs[0], nil
}

func (s *queries) ListLeaveRequests(ctx context.Context, f leave.LeaveRequestFilter) ([]leave.LeaveRequest, error) {
	var where []string
	var args []any
	if f.ContactID != "" {
		where = append(where, "r.contact_id = ?")
		args = append(args, f.ContactID)
	}
	if f.TypeID != "" {
		where = append(where, "r.type_id = ?")
		args = append(args, f.TypeID)
	}
	if f.RequestType != "" {
		where = append(where, "r.request_type = ?")
		args = append(args, string(f.RequestType))
	}
	if f.PublicHoliday != nil {
		where = append(where, "r.is_public_holiday = ?")
		args = append(args, *f.PublicHoliday)
	}
	if f.From != nil {
		where = append(where, "r.to_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "r.from_date <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests r`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.from_date, r.id"

	out, err := s.queryRequests(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachDates(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// queryRequests scans request rows without their dates. The rows are closed
// before returning so the single connection is free for attachDates.
func (s *queries) queryRequests(ctx context.Context, query string, args ...any) ([]leave.LeaveRequest, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *queries) HasPublicHolidayRequest(ctx context.Context, q leave.PublicHolidayRequestQuery) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leave_requests
		WHERE contact_id = ? AND type_id = ? AND is_public_holiday = 1
			AND from_date <= ? AND to_date >= ?
			AND (? = '' OR contract_id = ?)
	`, q.ContactID, q.TypeID, q.Date.String(), q.Date.String(), q.ContractID, q.ContractID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// attachDates loads date rows for every request in reqs.
func (s *queries) attachDates(ctx context.Context, reqs []leave.LeaveRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	index := make(map[leave.LeaveRequestID]int, len(reqs))
	placeholders := make([]string, len(reqs))
	args := make([]any, len(reqs))
	for i, r := range reqs {
		index[r.ID] = i
		placeholders[i] = "?"
		args[i] = r.ID
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, leave_request_id, date FROM leave_request_dates
		WHERE leave_request_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY date, id
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row leave.LeaveRequestDate
		var date string
		if err := rows.Scan(&row.ID, &row.LeaveRequestID, &date); err != nil {
			return err
		}
		if row.Date, err = parseDate(date); err != nil {
			return err
		}
		i := index[row.LeaveRequestID]
		reqs[i].Dates = append(reqs[i].Dates, row)
	}
	return rows.Err()
}

func scanRequest(sc scanner) (leave.LeaveRequest, error) {
	var r leave.LeaveRequest
	var from, to, requestType, createdAt string
	if err := sc.Scan(&r.ID, &r.ContactID, &r.TypeID, &r.StatusID, &from, &r.FromDateType,
		&to, &r.ToDateType, &requestType, &r.IsPublicHoliday, &r.ContractID, &createdAt); err != nil {
		return leave.LeaveRequest{}, err
	}
	var err error
	if r.FromDate, err = parseDate(from); err != nil {
		return leave.LeaveRequest{}, err
	}
	if r.ToDate, err = parseDate(to); err != nil {
		return leave.LeaveRequest{}, err
	}
	r.RequestType = leave.RequestType(requestType)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}
