/*
scenarios.go - Sample data scenarios for demos and manual testing

PURPOSE:

	Loads the embedded sample data set (absence periods, absence types,
	UK public holidays, contracts and entitlements) into the store, and
	optionally books public holiday leave for it straight away.

AVAILABLE SCENARIOS:

	sample-data:               Embedded CSV data set only
	sample-data-holiday-leave: Data set plus public holiday leave for the
	                           flagged absence type

HOW SCENARIOS WORK:
 1. Import each CSV kind in dependency order (sampledata.Kinds)
 2. Rows already present are skipped, so loading twice is harmless
 3. For the holiday leave scenario, run CreateForAbsenceType

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sample-data-holiday-leave"}

	POST /api/scenarios/import/{kind}   (text/csv body)

SEE ALSO:
  - sampledata/: CSV import and the embedded data set
  - handlers.go: other handlers
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/sampledata"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	ScenarioSampleData         = "sample-data"
	ScenarioSampleHolidayLeave = "sample-data-holiday-leave"
)

var scenarios = []ScenarioDTO{
	{
		ID:          ScenarioSampleData,
		Name:        "Sample Data",
		Description: "Absence periods, absence types, UK public holidays, contracts and entitlements",
	},
	{
		ID:          ScenarioSampleHolidayLeave,
		Name:        "Sample Data With Public Holiday Leave",
		Description: "Sample data, then public holiday leave for every contract",
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last scenario loaded by this process.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return
	}

	resp, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadScenario(ctx context.Context, id string) (LoadScenarioResponse, error) {
	if id != ScenarioSampleData && id != ScenarioSampleHolidayLeave {
		return LoadScenarioResponse{}, &leave.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", id)}
	}

	counts, err := h.Importer.ImportDefaults(ctx)
	if err != nil {
		return LoadScenarioResponse{}, err
	}
	resp := LoadScenarioResponse{
		ScenarioID: id,
		Created:    make(map[string]int, len(counts.Created)),
		Skipped:    make(map[string]int, len(counts.Skipped)),
	}
	for kind, n := range counts.Created {
		resp.Created[string(kind)] = n
	}
	for kind, n := range counts.Skipped {
		resp.Skipped[string(kind)] = n
	}

	if id == ScenarioSampleHolidayLeave {
		t, err := h.Store.GetPublicHolidayAbsenceType(ctx)
		if err != nil {
			return resp, err
		}
		res, err := h.Holidays.CreateForAbsenceType(ctx, t)
		if err != nil {
			return resp, err
		}
		dto := toHolidayLeaveResultDTO(res)
		resp.Holidays = &dto
	}
	return resp, nil
}

// ImportCSV imports one CSV of the given kind from the request body.
// POST /api/scenarios/import/{kind}
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	kind := sampledata.Kind(chi.URLParam(r, "kind"))

	created, skipped, err := h.Importer.Import(r.Context(), kind, r.Body)
	if err != nil {
		h.writeDomainError(w, "Failed to import CSV", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created, "skipped": skipped})
}
