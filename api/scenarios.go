/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates products, centers,
	groups, meeting calendars and accounts that demonstrate one way an
	account gets its collection calendar.

AVAILABLE SCENARIOS:

	center-meeting:       Client inherits the monthly meeting of its group's center
	group-weekly:         Group-owned recurring deposit on the group's bi-weekly meeting
	standalone:           Accounts with their own calendars, fixed and tiered products
	ambiguous-membership: Client in two groups; inheritance is rejected

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Register preset products via factory
 3. Create centers, groups and memberships
 4. Create meeting calendars
 5. Open accounts through deposit.Service

All dates are fixed so that loaded scenarios are reproducible.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "center-meeting"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - deposit/presets.go: Product JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/deposit-engine/calendar"
	"github.com/warp/deposit-engine/deposit"
	"github.com/warp/deposit-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "center-meeting",
		Name:        "Center Meeting",
		Description: "Fixed deposit inheriting the monthly meeting calendar of the client's center",
	},
	{
		ID:          "group-weekly",
		Name:        "Group Weekly",
		Description: "Group-owned recurring deposit on the group's bi-weekly Tuesday meeting",
	},
	{
		ID:          "standalone",
		Name:        "Standalone Calendars",
		Description: "Accounts with their own monthly calendar, fixed and amount-tiered products",
	},
	{
		ID:          "ambiguous-membership",
		Name:        "Ambiguous Membership",
		Description: "Client in two groups: calendar inheritance is refused",
	},
}

// Preset product IDs registered by every scenario.
const (
	ProductFixedStandard = "fd-standard"
	ProductRecurringKES  = "rd-kes"
	ProductFixedTiered   = "fd-tiered"
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context) ([]string, error)
	switch req.ScenarioID {
	case "center-meeting":
		loader = h.loadCenterMeetingScenario
	case "group-weekly":
		loader = h.loadGroupWeeklyScenario
	case "standalone":
		loader = h.loadStandaloneScenario
	case "ambiguous-membership":
		loader = h.loadAmbiguousMembershipScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	accounts, err := h.LoadScenarioByID(r.Context(), req.ScenarioID, loader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"accounts": accounts,
	})
}

// LoadScenarioByID resets the store and runs loader. It returns the IDs
// of the accounts the scenario opened.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string, loader func(context.Context) ([]string, error)) ([]string, error) {
	if err := h.reset(ctx); err != nil {
		return nil, err
	}
	if err := h.RegisterPresets(ctx); err != nil {
		return nil, err
	}

	accounts, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", id), zap.Strings("accounts", accounts))
	return accounts, nil
}

// RegisterPresets stores the preset products.
func (h *Handler) RegisterPresets(ctx context.Context) error {
	for _, js := range []string{
		deposit.StandardFixedDepositJSON(ProductFixedStandard, "Standard Fixed Deposit", "5", "6"),
		deposit.RecurringDepositJSON(ProductRecurringKES, "Recurring Savings (KES)", "7", "500"),
		deposit.TieredSavingsJSON(ProductFixedTiered, "Tiered Term Deposit"),
	} {
		p, err := h.ProductFactory.ParseProduct(js)
		if err != nil {
			return err
		}
		if err := h.RegisterProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadCenterMeetingScenario(ctx context.Context) ([]string, error) {
	if err := h.Store.SaveCenter(ctx, generic.CenterRecord{ID: "c-market", Name: "Market Center"}); err != nil {
		return nil, err
	}
	if err := h.Store.SaveGroup(ctx, generic.GroupRecord{ID: "g-tuesday", Name: "Tuesday Traders", CenterID: "c-market"}); err != nil {
		return nil, err
	}
	for _, c := range []generic.ClientID{"client-amina", "client-brian"} {
		if err := h.Store.AddClientToGroup(ctx, c, "g-tuesday"); err != nil {
			return nil, err
		}
	}

	// The center meets on the 10th of every month
	centerOwner := generic.Owner{EntityID: "c-market", EntityType: generic.EntityTypeCenter}
	if err := h.createMeetingCalendar(ctx, centerOwner, civil.Date{Year: 2023, Month: time.June, Day: 10},
		calendar.Frequency{Type: calendar.FrequencyMonthly, Interval: 1}); err != nil {
		return nil, err
	}

	return h.openAccounts(ctx,
		openSpec{product: ProductFixedStandard, req: deposit.Request{
			AccountID:       "acc-amina-fd",
			ClientID:        "client-amina",
			InheritCalendar: true,
			StartDate:       civil.Date{Year: 2024, Month: time.January, Day: 15},
			Principal:       decimal.NewFromInt(50000),
			TermLength:      6,
			TermUnit:        generic.UnitMonths,
		}},
		openSpec{product: ProductFixedStandard, req: deposit.Request{
			AccountID:       "acc-brian-fd",
			ClientID:        "client-brian",
			InheritCalendar: true,
			StartDate:       civil.Date{Year: 2024, Month: time.February, Day: 1},
			Principal:       decimal.NewFromInt(12000),
		}},
	)
}

func (h *Handler) loadGroupWeeklyScenario(ctx context.Context) ([]string, error) {
	if err := h.Store.SaveGroup(ctx, generic.GroupRecord{ID: "g-riverside", Name: "Riverside Savers"}); err != nil {
		return nil, err
	}
	if err := h.Store.AddClientToGroup(ctx, "client-carol", "g-riverside"); err != nil {
		return nil, err
	}

	// Every other Tuesday
	groupOwner := generic.Owner{EntityID: "g-riverside", EntityType: generic.EntityTypeGroup}
	if err := h.createMeetingCalendar(ctx, groupOwner, civil.Date{Year: 2024, Month: time.January, Day: 2},
		calendar.Frequency{Type: calendar.FrequencyWeekly, Interval: 2}); err != nil {
		return nil, err
	}

	return h.openAccounts(ctx,
		openSpec{product: ProductRecurringKES, req: deposit.Request{
			AccountID:       "acc-riverside-rd",
			GroupID:         "g-riverside",
			InheritCalendar: true,
			StartDate:       civil.Date{Year: 2024, Month: time.January, Day: 3},
			Principal:       decimal.NewFromInt(1000),
			TermLength:      12,
			TermUnit:        generic.UnitMonths,
		}},
		openSpec{product: ProductRecurringKES, req: deposit.Request{
			AccountID:       "acc-carol-rd",
			ClientID:        "client-carol",
			InheritCalendar: true,
			StartDate:       civil.Date{Year: 2024, Month: time.January, Day: 16},
			Principal:       decimal.NewFromInt(600),
			Installment:     decimal.NewFromInt(500),
		}},
	)
}

func (h *Handler) loadStandaloneScenario(ctx context.Context) ([]string, error) {
	monthly := &calendar.Frequency{Type: calendar.FrequencyMonthly, Interval: 1}
	rate := decimal.NewFromInt(10)

	return h.openAccounts(ctx,
		openSpec{product: ProductFixedStandard, req: deposit.Request{
			AccountID:  "acc-dan-fd",
			ClientID:   "client-dan",
			Frequency:  monthly,
			StartDate:  civil.Date{Year: 2024, Month: time.January, Day: 15},
			Principal:  decimal.NewFromInt(10000),
			AnnualRate: &rate,
			TermLength: 6,
			TermUnit:   generic.UnitMonths,
		}},
		openSpec{product: ProductFixedTiered, req: deposit.Request{
			AccountID: "acc-dan-tiered",
			ClientID:  "client-dan",
			Frequency: monthly,
			StartDate: civil.Date{Year: 2024, Month: time.March, Day: 1},
			Principal: decimal.NewFromInt(25000),
		}},
	)
}

func (h *Handler) loadAmbiguousMembershipScenario(ctx context.Context) ([]string, error) {
	for _, g := range []generic.GroupRecord{
		{ID: "g-north", Name: "North Circle"},
		{ID: "g-south", Name: "South Circle"},
	} {
		if err := h.Store.SaveGroup(ctx, g); err != nil {
			return nil, err
		}
		if err := h.Store.AddClientToGroup(ctx, "client-eve", g.ID); err != nil {
			return nil, err
		}
		owner := generic.Owner{EntityID: string(g.ID), EntityType: generic.EntityTypeGroup}
		if err := h.createMeetingCalendar(ctx, owner, civil.Date{Year: 2024, Month: time.January, Day: 5},
			calendar.Frequency{Type: calendar.FrequencyWeekly, Interval: 1}); err != nil {
			return nil, err
		}
	}
	// No accounts: inheriting for client-eve fails until one membership is removed
	return []string{}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type openSpec struct {
	product string
	req     deposit.Request
}

func (h *Handler) openAccounts(ctx context.Context, specs ...openSpec) ([]string, error) {
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		product := h.product(s.product)
		if product == nil {
			return nil, fmt.Errorf("product %s not registered", s.product)
		}
		if _, err := h.Service.OpenAccount(ctx, product, s.req); err != nil {
			return nil, fmt.Errorf("account %s: %w", s.req.AccountID, err)
		}
		ids = append(ids, string(s.req.AccountID))
	}
	return ids, nil
}

func (h *Handler) createMeetingCalendar(ctx context.Context, owner generic.Owner, start civil.Date, freq calendar.Frequency) error {
	rule, err := freq.RecurrenceRule(start)
	if err != nil {
		return err
	}
	_, err = h.Store.CreateCalendar(ctx, generic.CalendarRecord{
		Title:     "meeting:" + owner.String(),
		Type:      generic.CalendarTypeCollection,
		StartDate: start,
		Rule:      rule,
	}, owner)
	return err
}
