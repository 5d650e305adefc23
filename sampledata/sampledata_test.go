package sampledata_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
	"github.com/warp/leave-engine/sampledata"
)

func TestImportDefaults(t *testing.T) {
	// GIVEN: an empty store
	m := store.NewMemory()
	ctx := context.Background()
	im := sampledata.NewImporter(m, nil)

	// WHEN: the embedded data set is imported
	counts, err := im.ImportDefaults(ctx)
	require.NoError(t, err)

	// THEN: every kind was created
	assert.Equal(t, 2, counts.Created[sampledata.KindAbsencePeriods])
	assert.Equal(t, 3, counts.Created[sampledata.KindAbsenceTypes])
	assert.Equal(t, 16, counts.Created[sampledata.KindPublicHolidays])
	assert.Equal(t, 4, counts.Created[sampledata.KindContracts])
	assert.Equal(t, 5, counts.Created[sampledata.KindEntitlements])

	flagged, err := m.GetPublicHolidayAbsenceType(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Holiday / Vacation", flagged.Title)
	assert.Equal(t, leave.CancelationInAdvanceOfStartDate, flagged.AllowRequestCancelation)

	contracts, err := m.ListContracts(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	require.NotNil(t, contracts[0].PeriodEnd)
	assert.Equal(t, "2026-11-30", contracts[0].PeriodEnd.String())
}

func TestImportDefaults_Rerun(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	im := sampledata.NewImporter(m, nil)

	_, err := im.ImportDefaults(ctx)
	require.NoError(t, err)
	counts, err := im.ImportDefaults(ctx)
	require.NoError(t, err)

	for _, kind := range sampledata.Kinds {
		assert.Zero(t, counts.Created[kind], kind)
	}
	holidays, err := m.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, holidays, 16)
}

func TestImport_AbsencePeriodWithTimeOfDay(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	csv := "name,title,start_date,end_date\n" +
		"2016,2016 (Jan 1 to Dec 31),2016-01-01 02:00:00,2016-12-31 01:59:59\n"
	created, skipped, err := sampledata.NewImporter(m, nil).Import(ctx, sampledata.KindAbsencePeriods, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Zero(t, skipped)

	periods, err := m.ListAbsencePeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2016", periods[0].Name)
	assert.Equal(t, "2016 (Jan 1 to Dec 31)", periods[0].Title)
	assert.Equal(t, "2016-01-01", periods[0].StartDate.String())
	assert.Equal(t, "2016-12-31", periods[0].EndDate.String())
}

func TestImport_ColumnsInAnyOrder(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	csv := "date,title,extra\n2016-06-01,Whit Monday,ignored\n"
	created, _, err := sampledata.NewImporter(m, nil).Import(ctx, sampledata.KindPublicHolidays, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	holidays, err := m.ListHolidays(ctx)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.True(t, holidays[0].IsActive)
}

func TestImport_Entitlements(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	im := sampledata.NewImporter(m, nil)

	_, _, err := im.Import(ctx, sampledata.KindAbsencePeriods, strings.NewReader("name,start_date,end_date\n2016,2016-01-01,2016-12-31\n"))
	require.NoError(t, err)
	_, _, err = im.Import(ctx, sampledata.KindAbsenceTypes, strings.NewReader("title,must_take_public_holiday_as_leave\nAnnual,true\n"))
	require.NoError(t, err)

	created, _, err := im.Import(ctx, sampledata.KindEntitlements, strings.NewReader(
		"contact_id,absence_type,period,amount,comment\nc1,Annual,2016,12.5,part time\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	ents, err := m.ListEntitlements(ctx, "c1", "")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "part time", ents[0].Comment)

	changes, err := m.ListBalanceChangesBySource(ctx, leave.SourceEntitlement, string(ents[0].ID))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "1", changes[0].TypeID, "Leave")
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind sampledata.Kind
		csv  string
		want string
	}{
		{"missing header", sampledata.KindContracts, "", "header"},
		{"missing required column", sampledata.KindContracts, "contact_id,period_start\nc1,\n", "line 2"},
		{"bad date", sampledata.KindPublicHolidays, "title,date\nX,2016-13-01\n", "invalid date"},
		{"bad boolean", sampledata.KindAbsenceTypes, "title,allow_overuse\nX,maybe\n", "invalid boolean"},
		{"bad cancellation rule", sampledata.KindAbsenceTypes, "title,allow_request_cancelation\nX,7\n", "invalid rule"},
		{"unknown absence type", sampledata.KindEntitlements, "contact_id,absence_type,period,amount\nc1,Nope,2016,1\n", "unknown absence type"},
		{"unknown kind", sampledata.Kind("payroll"), "a\n1\n", "unknown sample data kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := store.NewMemory()
			_, _, err := sampledata.NewImporter(m, nil).Import(context.Background(), tt.kind, strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.ErrorIs(t, err, leave.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
