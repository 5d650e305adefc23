/*
Package sampledata imports CSV sample data into a leave store.

PURPOSE:
  Seeds a development or demo database with absence periods, absence
  types, public holidays, contracts and entitlements.

FILE FORMAT:
  One CSV per kind, header row first. Columns are matched by name, so
  their order is free; unknown columns are ignored.

  absence_periods:  name,title,start_date,end_date
  absence_types:    title,must_take_public_holiday_as_leave,allow_request_cancelation,
                    allow_overuse,allow_accruals_request,is_active
  public_holidays:  title,date,is_active
  contracts:        contact_id,title,period_start,period_end
  entitlements:     contact_id,absence_type,period,amount,comment

  Dates are YYYY-MM-DD; a trailing time of day is ignored. Booleans accept
  1/0 and true/false. Entitlements refer to absence types by title and to
  periods by name.

RERUNS:
  Rows already present (same period name, type title, holiday date and
  title, contract contact and start, entitlement contact/type/period) are
  skipped, so importing twice does not duplicate anything.

SEE ALSO:
  - data/: the embedded default data set
  - cmd/server: the seed command
  - api/scenarios.go: scenario loading over HTTP
*/
package sampledata

import (
	"context"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/leave"
)

//go:embed data/*.csv
var defaultData embed.FS

// Kind names one importable CSV.
type Kind string

const (
	KindAbsencePeriods Kind = "absence_periods"
	KindAbsenceTypes   Kind = "absence_types"
	KindPublicHolidays Kind = "public_holidays"
	KindContracts      Kind = "contracts"
	KindEntitlements   Kind = "entitlements"
)

// Kinds lists every kind in dependency order.
var Kinds = []Kind{KindAbsencePeriods, KindAbsenceTypes, KindPublicHolidays, KindContracts, KindEntitlements}

// Counts reports how many rows each kind created and skipped.
type Counts struct {
	Created map[Kind]int
	Skipped map[Kind]int
}

func newCounts() Counts {
	return Counts{Created: make(map[Kind]int), Skipped: make(map[Kind]int)}
}

// Importer writes CSV rows into a store.
type Importer struct {
	store  leave.Store
	logger logrus.FieldLogger
}

func NewImporter(store leave.Store, logger logrus.FieldLogger) *Importer {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Importer{store: store, logger: logger}
}

// ImportDefaults imports the embedded data set.
func (im *Importer) ImportDefaults(ctx context.Context) (Counts, error) {
	counts := newCounts()
	for _, kind := range Kinds {
		f, err := defaultData.Open("data/" + string(kind) + ".csv")
		if err != nil {
			return counts, fmt.Errorf("open %s: %w", kind, err)
		}
		created, skipped, err := im.Import(ctx, kind, f)
		f.Close()
		counts.Created[kind] = created
		counts.Skipped[kind] = skipped
		if err != nil {
			return counts, err
		}
	}
	im.logger.WithFields(logrus.Fields{
		"created": counts.Created,
		"skipped": counts.Skipped,
	}).Info("sample data imported")
	return counts, nil
}

// Import reads one CSV of the given kind and saves its rows. It stops at
// the first bad row; rows before it stay saved.
func (im *Importer) Import(ctx context.Context, kind Kind, r io.Reader) (created, skipped int, err error) {
	rows, err := readRows(r)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", kind, err)
	}

	var process func(context.Context, row) (bool, error)
	switch kind {
	case KindAbsencePeriods:
		process, err = im.absencePeriods(ctx)
	case KindAbsenceTypes:
		process, err = im.absenceTypes(ctx)
	case KindPublicHolidays:
		process, err = im.publicHolidays(ctx)
	case KindContracts:
		process, err = im.contracts(ctx)
	case KindEntitlements:
		process, err = im.entitlements(ctx)
	default:
		return 0, 0, &leave.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown sample data kind %q", kind)}
	}
	if err != nil {
		return 0, 0, err
	}

	for _, rw := range rows {
		ok, err := process(ctx, rw)
		if err != nil {
			return created, skipped, fmt.Errorf("%s line %d: %w", kind, rw.line, err)
		}
		if ok {
			created++
		} else {
			skipped++
		}
	}
	return created, skipped, nil
}

// =============================================================================
// CSV ROWS
// =============================================================================

type row struct {
	line   int
	fields map[string]string
}

func readRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &leave.ValidationError{Field: "header", Message: "is missing"}
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				fields[name] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row{line: line, fields: fields})
	}
}

func (r row) required(name string) (string, error) {
	v := r.fields[name]
	if v == "" {
		return "", &leave.ValidationError{Field: name, Message: "is required"}
	}
	return v, nil
}

func (r row) date(name string) (leave.Date, error) {
	v, err := r.required(name)
	if err != nil {
		return leave.Date{}, err
	}
	return parseDate(name, v)
}

func (r row) optionalDate(name string) (*leave.Date, error) {
	v := r.fields[name]
	if v == "" {
		return nil, nil
	}
	d, err := parseDate(name, v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDate(name, v string) (leave.Date, error) {
	d, err := leave.ParseDate(strings.Fields(v)[0])
	if err != nil {
		return leave.Date{}, &leave.ValidationError{Field: name, Message: fmt.Sprintf("invalid date %q", v)}
	}
	return d, nil
}

func (r row) bool(name string) (bool, error) {
	v := r.fields[name]
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &leave.ValidationError{Field: name, Message: fmt.Sprintf("invalid boolean %q", v)}
	}
	return b, nil
}

// =============================================================================
// PROCESSORS
// =============================================================================

func (im *Importer) absencePeriods(ctx context.Context) (func(context.Context, row) (bool, error), error) {
	existing, err := im.store.ListAbsencePeriods(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.Name] = true
	}

	return func(ctx context.Context, r row) (bool, error) {
		name, err := r.required("name")
		if err != nil {
			return false, err
		}
		if seen[name] {
			return false, nil
		}
		start, err := r.date("start_date")
		if err != nil {
			return false, err
		}
		end, err := r.date("end_date")
		if err != nil {
			return false, err
		}
		title := r.fields["title"]
		if title == "" {
			title = name
		}
		p := leave.AbsencePeriod{Name: name, Title: title, StartDate: start, EndDate: end}
		if err := im.store.SaveAbsencePeriod(ctx, &p); err != nil {
			return false, err
		}
		seen[name] = true
		return true, nil
	}, nil
}

func (im *Importer) absenceTypes(ctx context.Context) (func(context.Context, row) (bool, error), error) {
	existing, err := im.store.ListAbsenceTypes(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t.Title] = true
	}

	return func(ctx context.Context, r row) (bool, error) {
		title, err := r.required("title")
		if err != nil {
			return false, err
		}
		if seen[title] {
			return false, nil
		}

		t := leave.AbsenceType{Title: title, AllowRequestCancelation: leave.CancelationNo, IsActive: true}
		if t.MustTakePublicHolidayAsLeave, err = r.bool("must_take_public_holiday_as_leave"); err != nil {
			return false, err
		}
		if t.AllowOveruse, err = r.bool("allow_overuse"); err != nil {
			return false, err
		}
		if t.AllowAccrualsRequest, err = r.bool("allow_accruals_request"); err != nil {
			return false, err
		}
		if v := r.fields["is_active"]; v != "" {
			if t.IsActive, err = r.bool("is_active"); err != nil {
				return false, err
			}
		}
		if v := r.fields["allow_request_cancelation"]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || !leave.CancelationRule(n).Valid() {
				return false, &leave.ValidationError{Field: "allow_request_cancelation", Message: fmt.Sprintf("invalid rule %q", v)}
			}
			t.AllowRequestCancelation = leave.CancelationRule(n)
		}

		if err := im.store.SaveAbsenceType(ctx, &t); err != nil {
			return false, err
		}
		seen[title] = true
		return true, nil
	}, nil
}

func (im *Importer) publicHolidays(ctx context.Context) (func(context.Context, row) (bool, error), error) {
	existing, err := im.store.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	key := func(title string, d leave.Date) string { return d.String() + "|" + title }
	seen := make(map[string]bool, len(existing))
	for _, h := range existing {
		seen[key(h.Title, h.Date)] = true
	}

	return func(ctx context.Context, r row) (bool, error) {
		title, err := r.required("title")
		if err != nil {
			return false, err
		}
		date, err := r.date("date")
		if err != nil {
			return false, err
		}
		if seen[key(title, date)] {
			return false, nil
		}
		h := leave.PublicHoliday{Title: title, Date: date, IsActive: true}
		if v := r.fields["is_active"]; v != "" {
			if h.IsActive, err = r.bool("is_active"); err != nil {
				return false, err
			}
		}
		if err := im.store.SaveHoliday(ctx, &h); err != nil {
			return false, err
		}
		seen[key(title, date)] = true
		return true, nil
	}, nil
}

func (im *Importer) contracts(ctx context.Context) (func(context.Context, row) (bool, error), error) {
	existing, err := im.store.ListContracts(ctx, "")
	if err != nil {
		return nil, err
	}
	key := func(contact leave.ContactID, start leave.Date) string { return string(contact) + "|" + start.String() }
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[key(c.ContactID, c.PeriodStart)] = true
	}

	return func(ctx context.Context, r row) (bool, error) {
		contact, err := r.required("contact_id")
		if err != nil {
			return false, err
		}
		start, err := r.date("period_start")
		if err != nil {
			return false, err
		}
		if seen[key(leave.ContactID(contact), start)] {
			return false, nil
		}
		end, err := r.optionalDate("period_end")
		if err != nil {
			return false, err
		}
		c := leave.Contract{ContactID: leave.ContactID(contact), Title: r.fields["title"], PeriodStart: start, PeriodEnd: end}
		if err := im.store.SaveContract(ctx, &c); err != nil {
			return false, err
		}
		seen[key(c.ContactID, start)] = true
		return true, nil
	}, nil
}

func (im *Importer) entitlements(ctx context.Context) (func(context.Context, row) (bool, error), error) {
	types, err := im.store.ListAbsenceTypes(ctx)
	if err != nil {
		return nil, err
	}
	typeIDs := make(map[string]leave.AbsenceTypeID, len(types))
	for _, t := range types {
		typeIDs[t.Title] = t.ID
	}
	periods, err := im.store.ListAbsencePeriods(ctx)
	if err != nil {
		return nil, err
	}
	periodIDs := make(map[string]leave.AbsencePeriodID, len(periods))
	for _, p := range periods {
		periodIDs[p.Name] = p.ID
	}
	changeType, err := im.store.ResolveOptionValue(ctx, leave.GroupBalanceChangeType, leave.ChangeTypeLeave)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, r row) (bool, error) {
		contact, err := r.required("contact_id")
		if err != nil {
			return false, err
		}
		typeTitle, err := r.required("absence_type")
		if err != nil {
			return false, err
		}
		typeID, ok := typeIDs[typeTitle]
		if !ok {
			return false, &leave.ValidationError{Field: "absence_type", Message: fmt.Sprintf("unknown absence type %q", typeTitle)}
		}
		periodName, err := r.required("period")
		if err != nil {
			return false, err
		}
		periodID, ok := periodIDs[periodName]
		if !ok {
			return false, &leave.ValidationError{Field: "period", Message: fmt.Sprintf("unknown absence period %q", periodName)}
		}
		raw, err := r.required("amount")
		if err != nil {
			return false, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return false, &leave.ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount %q", raw)}
		}

		existing, err := im.store.ListEntitlements(ctx, leave.ContactID(contact), periodID)
		if err != nil {
			return false, err
		}
		for _, e := range existing {
			if e.TypeID == typeID {
				return false, nil
			}
		}

		e := leave.Entitlement{ContactID: leave.ContactID(contact), TypeID: typeID, PeriodID: periodID, Comment: r.fields["comment"]}
		if err := im.store.SaveEntitlement(ctx, &e); err != nil {
			return false, err
		}
		c := leave.LeaveBalanceChange{
			SourceID:   string(e.ID),
			SourceType: leave.SourceEntitlement,
			TypeID:     changeType,
			Amount:     amount,
		}
		if err := im.store.SaveBalanceChange(ctx, &c); err != nil {
			return false, err
		}
		return true, nil
	}, nil
}
