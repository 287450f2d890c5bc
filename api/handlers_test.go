/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Deposit preview and account opening through the router
- Calendar inheritance set up via the hierarchy endpoints
- Error kind to HTTP status mapping
- Product creation from JSON and YAML
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/deposit-engine/generic"
	"github.com/warp/deposit-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, zap.NewNop())
	require.NoError(t, h.RegisterPresets(context.Background()))
	return h, NewRouter(h, RouterOptions{})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Code
}

// seedCenter creates center c1 meeting monthly on the 10th, group g1 under it
// and client-1 as member, all through the API.
func seedCenter(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/centers", CenterDTO{ID: "c1", Name: "Center One"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPost, "/api/groups", GroupDTO{ID: "g1", Name: "Group One", CenterID: "c1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPost, "/api/groups/g1/members", AddMemberRequest{ClientID: "client-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPost, "/api/calendars", CreateCalendarRequest{
		EntityType: "center",
		EntityID:   "c1",
		StartDate:  civil.Date{Year: 2023, Month: time.June, Day: 10},
		Frequency:  FrequencyDTO{Type: "monthly", Interval: 1},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

const endToEndBody = `{
	"product_id": "fd-standard",
	"account_id": "acc-1",
	"client_id": "client-1",
	"frequency": {"type": "monthly", "interval": 1},
	"start_date": "2024-01-15",
	"principal": "10000",
	"annual_rate": 10,
	"term_length": 6,
	"term_unit": "months"
}`

// =============================================================================
// DEPOSITS
// =============================================================================

func TestPreviewDeposit_EndToEnd(t *testing.T) {
	// GIVEN: The standard fixed deposit product
	// WHEN: Previewing 10,000 at 10% for 6 months on a standalone monthly calendar
	// THEN: Six due dates and the reference maturity amount are returned

	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/deposits/preview", endToEndBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	quote := decode[QuoteDTO](t, rec)
	assert.Equal(t, "standalone", quote.Calendar.Provenance)
	assert.Equal(t, 15, quote.Calendar.DayOfMonth)
	require.Len(t, quote.Schedule, 6)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 15}, quote.Schedule[0].DueDate)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.July, Day: 15}, quote.Maturity.MaturityDate)
	assert.Equal(t, "10509.10", quote.Maturity.MaturityAmount.StringFixed(2))
	assert.Equal(t, "509.10", quote.Maturity.ExpectedInterest.StringFixed(2))
	assert.Equal(t, "USD", quote.Maturity.Currency)
}

func TestPreviewDeposit_NothingPersisted(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/deposits/preview", endToEndBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/accounts/acc-1/calendar", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestOpenAccount_AttachesOnce(t *testing.T) {
	// GIVEN: An opened account
	// WHEN: Opening the same account again
	// THEN: 409 calendar_already_attached

	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/accounts", endToEndBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	quote := decode[QuoteDTO](t, rec)
	assert.Equal(t, "acc-1", quote.AccountID)
	assert.NotEmpty(t, quote.Calendar.ID)

	rec = do(t, router, http.MethodPost, "/api/accounts", endToEndBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "calendar_already_attached", errorCode(t, rec))
}

func TestOpenAccount_RequiresAccountID(t *testing.T) {
	_, router := newTestServer(t)

	body := strings.Replace(endToEndBody, `"account_id": "acc-1",`, "", 1)
	rec := do(t, router, http.MethodPost, "/api/accounts", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenAccount_InheritsCenterCalendar(t *testing.T) {
	// GIVEN: client-1 in group g1 under center c1 meeting on the 10th
	// WHEN: Opening an inheriting account starting on the 15th
	// THEN: Due dates follow the center meeting and the last one is maturity

	_, router := newTestServer(t)
	seedCenter(t, router)

	rec := do(t, router, http.MethodPost, "/api/accounts", map[string]any{
		"product_id":       "fd-standard",
		"account_id":       "acc-2",
		"client_id":        "client-1",
		"inherit_calendar": true,
		"start_date":       "2024-01-15",
		"principal":        "1000",
		"term_length":      6,
		"term_unit":        "months",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	quote := decode[QuoteDTO](t, rec)
	assert.Equal(t, "inherited_from_center", quote.Calendar.Provenance)
	require.NotNil(t, quote.Calendar.InheritedFrom)
	assert.Equal(t, "c1", quote.Calendar.InheritedFrom.EntityID)
	require.Len(t, quote.Schedule, 7)
	assert.Equal(t, 10, quote.Schedule[0].DueDate.Day)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.July, Day: 15}, quote.Schedule[6].DueDate)
	assert.Equal(t, "5", quote.Maturity.AnnualRate.String())

	// The attached calendar is the center's series
	rec = do(t, router, http.MethodGet, "/api/accounts/acc-2/calendar?count=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cal := decode[CalendarDTO](t, rec)
	assert.Equal(t, civil.Date{Year: 2023, Month: time.June, Day: 10}, cal.SeriesStart)
	assert.Equal(t, []civil.Date{
		{Year: 2023, Month: time.June, Day: 10},
		{Year: 2023, Month: time.July, Day: 10},
		{Year: 2023, Month: time.August, Day: 10},
	}, cal.Upcoming)

	rec = do(t, router, http.MethodGet, "/api/accounts/acc-2/calendar?from=2024-03-10&count=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cal = decode[CalendarDTO](t, rec)
	assert.Equal(t, []civil.Date{
		{Year: 2024, Month: time.April, Day: 10},
		{Year: 2024, Month: time.May, Day: 10},
	}, cal.Upcoming)
}

func TestGetAccountCalendar_InvalidQuery(t *testing.T) {
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/accounts", endToEndBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/accounts/acc-1/calendar?count=1000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/accounts/acc-1/calendar?from=15-01-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestDepositErrors(t *testing.T) {
	_, router := newTestServer(t)
	seedCenter(t, router)

	// A second group for client-2 without any calendar
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/groups", GroupDTO{ID: "g2", Name: "Loose"}).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/groups/g1/members", AddMemberRequest{ClientID: "client-2"}).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/groups/g2/members", AddMemberRequest{ClientID: "client-2"}).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/groups/g2/members", AddMemberRequest{ClientID: "client-3"}).Code)

	base := func() map[string]any {
		return map[string]any{
			"product_id": "fd-standard",
			"client_id":  "client-1",
			"frequency":  map[string]any{"type": "monthly"},
			"start_date": "2024-01-15",
			"principal":  "1000",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
		status int
		code   string
	}{
		{
			name:   "no frequency without inheritance",
			mutate: func(b map[string]any) { delete(b, "frequency") },
			status: http.StatusUnprocessableEntity,
			code:   "no_valid_recurring_details",
		},
		{
			name: "client in no group",
			mutate: func(b map[string]any) {
				b["client_id"] = "client-9"
				b["inherit_calendar"] = true
			},
			status: http.StatusUnprocessableEntity,
			code:   "client_not_in_any_group",
		},
		{
			name: "client in two groups",
			mutate: func(b map[string]any) {
				b["client_id"] = "client-2"
				b["inherit_calendar"] = true
			},
			status: http.StatusUnprocessableEntity,
			code:   "client_in_multiple_groups",
		},
		{
			name: "group without calendar",
			mutate: func(b map[string]any) {
				b["client_id"] = "client-3"
				b["inherit_calendar"] = true
			},
			status: http.StatusUnprocessableEntity,
			code:   "no_parent_calendar",
		},
		{
			name: "term outside rate chart",
			mutate: func(b map[string]any) {
				b["term_length"] = 13
				b["term_unit"] = "months"
			},
			status: http.StatusUnprocessableEntity,
			code:   "invalid_interest_rate_for_term",
		},
		{
			name:   "negative principal",
			mutate: func(b map[string]any) { b["principal"] = "-5" },
			status: http.StatusBadRequest,
			code:   "invalid_term",
		},
		{
			name:   "installment on fixed deposit",
			mutate: func(b map[string]any) { b["installment"] = "100" },
			status: http.StatusBadRequest,
			code:   "invalid_term",
		},
		{
			name:   "unknown product",
			mutate: func(b map[string]any) { b["product_id"] = "nope" },
			status: http.StatusNotFound,
		},
		{
			name:   "missing product",
			mutate: func(b map[string]any) { delete(b, "product_id") },
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := base()
			tt.mutate(body)

			rec := do(t, router, http.MethodPost, "/api/deposits/preview", body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, rec))
			}
		})
	}
}

func TestPreviewDeposit_MalformedBody(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/deposits/preview", `{"product_id": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/deposits/preview", `{"product_id": "fd-standard", "start_date": "01/15/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(generic.ErrCalendarAlreadyAttached))
	assert.Equal(t, http.StatusNotFound, statusFor(&generic.NotFoundError{Kind: "group", ID: "g"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&generic.MultipleGroupsError{Owner: "client c", Groups: []generic.GroupID{"g1", "g2"}}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}

// =============================================================================
// HIERARCHY AND CALENDARS
// =============================================================================

func TestClientGroups(t *testing.T) {
	_, router := newTestServer(t)
	seedCenter(t, router)

	rec := do(t, router, http.MethodGet, "/api/clients/client-1/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ClientID string     `json:"client_id"`
		Groups   []GroupDTO `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "client-1", resp.ClientID)
	assert.Equal(t, []GroupDTO{{ID: "g1", Name: "Group One", CenterID: "c1"}}, resp.Groups)
}

func TestCreateCalendar_Validation(t *testing.T) {
	_, router := newTestServer(t)
	seedCenter(t, router)

	start := civil.Date{Year: 2024, Month: time.January, Day: 2}

	// Accounts get calendars by opening, not through this endpoint
	rec := do(t, router, http.MethodPost, "/api/calendars", CreateCalendarRequest{
		EntityType: "savings_account", EntityID: "acc-1", StartDate: start,
		Frequency: FrequencyDTO{Type: "weekly"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/calendars", CreateCalendarRequest{
		EntityType: "group", EntityID: "g1", StartDate: start,
		Frequency: FrequencyDTO{Type: "hourly"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_term", errorCode(t, rec))

	// The center already has its meeting calendar
	rec = do(t, router, http.MethodPost, "/api/calendars", CreateCalendarRequest{
		EntityType: "center", EntityID: "c1", StartDate: start,
		Frequency: FrequencyDTO{Type: "weekly"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestProducts_ListAndGet(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]ProductDTO](t, rec)
	require.Len(t, products, 3)
	assert.Equal(t, ProductFixedStandard, products[0].ID)

	rec = do(t, router, http.MethodGet, "/api/products/"+ProductRecurringKES, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[ProductDTO](t, rec)
	assert.Equal(t, "recurring", p.Config.Kind)
	assert.Equal(t, 1, p.Version)

	rec = do(t, router, http.MethodGet, "/api/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_YAML(t *testing.T) {
	// GIVEN: A product definition in YAML
	// WHEN: Posting it with a YAML content type
	// THEN: The product is stored and usable for previews

	_, router := newTestServer(t)

	body := `id: fd-promo
name: Promo Fixed Deposit
kind: fixed
currency:
  code: USD
  decimal_places: 2
rounding: half_even
default_term:
  length: 3
  unit: months
compounding: monthly
day_count: actual_365
financial_year_start_month: 1
post_interest_at_period_end: true
rate_chart:
  name: promo
  tiers:
    - min_tenor: 1
      max_tenor: 12
      unit: months
      rate: "12"
`
	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/deposits/preview", map[string]any{
		"product_id": "fd-promo",
		"client_id":  "client-1",
		"frequency":  map[string]any{"type": "monthly"},
		"start_date": "2024-01-01",
		"principal":  "1000",
		"term_length": 12,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decode[QuoteDTO](t, rec)
	assert.Equal(t, "1127.19", quote.Maturity.MaturityAmount.StringFixed(2))
}

func TestCreateProduct_InvalidJSON(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/products", `{"id": "x", "kind": "perpetual"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProduct_BumpsVersion(t *testing.T) {
	h, router := newTestServer(t)

	require.NoError(t, h.RegisterPresets(context.Background()))

	rec := do(t, router, http.MethodGet, "/api/products/"+ProductFixedStandard, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[ProductDTO](t, rec).Version)
}

func TestLoadProducts_FromStore(t *testing.T) {
	// GIVEN: Products stored by one handler
	// WHEN: A new handler over the same store loads them
	// THEN: Deposits can be previewed without re-registering

	h, _ := newTestServer(t)

	fresh := NewHandler(h.Store, nil)
	require.NoError(t, fresh.LoadProducts(context.Background()))
	router := NewRouter(fresh, RouterOptions{})

	rec := do(t, router, http.MethodPost, "/api/deposits/preview", endToEndBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "10509.10", decode[QuoteDTO](t, rec).Maturity.MaturityAmount.StringFixed(2))
}

func TestHealthz(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}
