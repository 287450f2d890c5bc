/*
handlers.go - HTTP API handlers for the deposit engine

PURPOSE:
  Exposes calendar resolution, schedule generation and maturity quotes via
  a REST API. Handles HTTP request/response and JSON serialization, and
  delegates to deposit.Service.

ENDPOINTS:
  Hierarchy:
    POST   /api/centers                 Create or rename a center
    POST   /api/groups                  Create a group (optionally under a center)
    POST   /api/groups/{id}/members     Add a client to a group
    GET    /api/clients/{id}/groups     Groups of a client

  Calendars:
    POST   /api/calendars               Create a center/group meeting calendar

  Products:
    GET    /api/products                List products
    POST   /api/products                Create product from JSON or YAML
    GET    /api/products/{id}           Get product

  Deposits:
    POST   /api/deposits/preview        Calendar + schedule + maturity, nothing stored
    POST   /api/accounts                Open account: preview and attach calendar
    GET    /api/accounts/{id}/calendar  Attached calendar and upcoming due dates

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario
    POST   /api/scenarios/reset         Clear all data

ERROR HANDLING:
  Engine errors are mapped by kind (generic.Code):
  - 400: invalid_term, malformed input
  - 404: not_found, unknown product
  - 409: calendar_already_attached
  - 422: calendar resolution failures, invalid_interest_rate_for_term
  - 500: everything else

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/deposit-engine/calendar"
	"github.com/warp/deposit-engine/deposit"
	"github.com/warp/deposit-engine/factory"
	"github.com/warp/deposit-engine/generic"
)

// maxUpcoming bounds the count query parameter of the account calendar.
const maxUpcoming = 366

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API persists: calendars, the group directory,
// hierarchy writes and products.
type Store interface {
	generic.TxCalendarStore
	generic.Directory
	generic.HierarchyStore
	generic.ProductStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          Store
	Service        *deposit.Service
	ProductFactory *factory.ProductFactory
	Logger         *zap.Logger

	mu sync.RWMutex
	// Parsed products by ID, kept in sync with the store
	products map[string]*deposit.Product
	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store. A nil logger
// disables logging.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:          store,
		Service:        deposit.NewService(store, store, logger.Named("deposit")),
		ProductFactory: factory.NewProductFactory(),
		Logger:         logger,
		products:       make(map[string]*deposit.Product),
	}
}

// LoadProducts loads all stored products into the cache. Invalid stored
// definitions are logged and skipped.
func (h *Handler) LoadProducts(ctx context.Context) error {
	records, err := h.Store.ListProducts(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range records {
		p, err := h.ProductFactory.ParseProduct(r.ConfigJSON)
		if err != nil {
			h.Logger.Warn("skipping invalid stored product",
				zap.String("product_id", r.ID),
				zap.Error(err))
			continue
		}
		h.products[p.ID] = p
	}
	return nil
}

// RegisterProduct stores p (bumping its version) and caches it.
func (h *Handler) RegisterProduct(ctx context.Context, p *deposit.Product) error {
	config, err := json.Marshal(h.ProductFactory.ToJSON(p))
	if err != nil {
		return fmt.Errorf("failed to encode product %s: %w", p.ID, err)
	}
	if err := h.Store.SaveProduct(ctx, generic.ProductRecord{ID: p.ID, Name: p.Name, ConfigJSON: string(config)}); err != nil {
		return err
	}

	h.mu.Lock()
	h.products[p.ID] = p
	h.mu.Unlock()
	return nil
}

// ProductCount returns the number of cached products.
func (h *Handler) ProductCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.products)
}

func (h *Handler) product(id string) *deposit.Product {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.products[id]
}

// =============================================================================
// HIERARCHY HANDLERS
// =============================================================================

// CreateCenter creates or renames a center.
func (h *Handler) CreateCenter(w http.ResponseWriter, r *http.Request) {
	var req CenterDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "ID and name are required", nil)
		return
	}

	if err := h.Store.SaveCenter(r.Context(), generic.CenterRecord{ID: generic.CenterID(req.ID), Name: req.Name}); err != nil {
		h.writeDomainError(w, "Failed to save center", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateGroup creates or updates a group.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "ID and name are required", nil)
		return
	}

	err := h.Store.SaveGroup(r.Context(), generic.GroupRecord{
		ID:       generic.GroupID(req.ID),
		Name:     req.Name,
		CenterID: generic.CenterID(req.CenterID),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to save group", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// AddGroupMember adds a client to a group. Adding twice is a no-op.
func (h *Handler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required", nil)
		return
	}

	if err := h.Store.AddClientToGroup(r.Context(), generic.ClientID(req.ClientID), generic.GroupID(groupID)); err != nil {
		h.writeDomainError(w, "Failed to add member", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":    "added",
		"group_id":  groupID,
		"client_id": req.ClientID,
	})
}

// GetClientGroups returns the groups of a client.
func (h *Handler) GetClientGroups(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	groups, err := h.Store.GroupsOf(r.Context(), generic.ClientID(clientID))
	if err != nil {
		h.writeDomainError(w, "Failed to load groups", err)
		return
	}

	dtos := make([]GroupDTO, 0, len(groups))
	for _, g := range groups {
		dto := GroupDTO{ID: string(g.ID), Name: g.Name}
		center, err := h.Store.ParentOf(r.Context(), g.ID)
		if err != nil {
			h.writeDomainError(w, "Failed to load group center", err)
			return
		}
		if center != nil {
			dto.CenterID = string(center.ID)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "groups": dtos})
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// CreateCalendar creates the meeting calendar of a center or group.
func (h *Handler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req CreateCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entityType, err := generic.ParseEntityType(req.EntityType)
	if err != nil || (entityType != generic.EntityTypeCenter && entityType != generic.EntityTypeGroup) {
		writeError(w, http.StatusBadRequest, "entity_type must be center or group", err)
		return
	}
	if req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required", nil)
		return
	}
	if generic.IsZeroDate(req.StartDate) {
		writeError(w, http.StatusBadRequest, "start_date is required", nil)
		return
	}

	freq := req.Frequency.toFrequency()
	rule, err := freq.RecurrenceRule(req.StartDate)
	if err != nil {
		h.writeDomainError(w, "Invalid frequency", err)
		return
	}

	title := req.Title
	if title == "" {
		title = "meeting:" + req.EntityType + ":" + req.EntityID
	}
	owner := generic.Owner{EntityID: req.EntityID, EntityType: entityType}
	id, err := h.Store.CreateCalendar(r.Context(), generic.CalendarRecord{
		Title:     title,
		Type:      generic.CalendarTypeCollection,
		StartDate: req.StartDate,
		Rule:      rule,
	}, owner)
	if err != nil {
		h.writeDomainError(w, "Failed to create calendar", err)
		return
	}

	h.Logger.Info("meeting calendar created",
		zap.String("calendar_id", string(id)),
		zap.String("owner", owner.String()),
		zap.String("rule", rule))
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    id,
		"owner": OwnerDTO{EntityType: req.EntityType, EntityID: req.EntityID},
		"rule":  rule,
	})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, 0, len(records))
	for _, rec := range records {
		var pj factory.ProductJSON
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &pj); err != nil {
			h.Logger.Warn("stored product is not valid JSON", zap.String("product_id", rec.ID), zap.Error(err))
			continue
		}
		dtos = append(dtos, ProductDTO{ID: rec.ID, Name: rec.Name, Version: rec.Version, Config: pj})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates a product from a JSON body, or a YAML body when the
// content type says so.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	var product *deposit.Product
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		product, err = h.ProductFactory.ParseProductYAML(body)
	} else {
		product, err = h.ProductFactory.ParseProduct(string(body))
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product definition", err)
		return
	}

	if err := h.RegisterProduct(r.Context(), product); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}

	h.Logger.Info("product saved", zap.String("product_id", product.ID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "created",
		"product": product.ID,
	})
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	var pj factory.ProductJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &pj); err != nil {
		writeError(w, http.StatusInternalServerError, "Stored product is corrupt", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductDTO{ID: rec.ID, Name: rec.Name, Version: rec.Version, Config: pj})
}

// =============================================================================
// DEPOSIT HANDLERS
// =============================================================================

// PreviewDeposit resolves the calendar, generates the schedule and
// computes the maturity of a deposit without storing anything.
func (h *Handler) PreviewDeposit(w http.ResponseWriter, r *http.Request) {
	req, product, ok := h.decodeDeposit(w, r)
	if !ok {
		return
	}

	quote, err := h.Service.Preview(r.Context(), product, req.toRequest())
	if err != nil {
		h.writeDomainError(w, "Failed to preview deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(product.ID, generic.AccountID(req.AccountID), quote))
}

// OpenAccount previews the deposit and attaches its calendar to the account.
func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	req, product, ok := h.decodeDeposit(w, r)
	if !ok {
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required", nil)
		return
	}

	quote, err := h.Service.OpenAccount(r.Context(), product, req.toRequest())
	if err != nil {
		h.writeDomainError(w, "Failed to open account", err)
		return
	}

	h.Logger.Info("account opened",
		zap.String("account_id", req.AccountID),
		zap.String("product_id", product.ID),
		zap.String("provenance", string(quote.Calendar.Provenance)))
	writeJSON(w, http.StatusCreated, toQuoteDTO(product.ID, generic.AccountID(req.AccountID), quote))
}

// GetAccountCalendar returns the calendar attached to an account and its
// next due dates. Query: from=YYYY-MM-DD (default: calendar start),
// count=N (default 12).
func (h *Handler) GetAccountCalendar(w http.ResponseWriter, r *http.Request) {
	id := generic.AccountID(chi.URLParam(r, "id"))

	cal, err := h.Service.AccountCalendar(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to load account calendar", err)
		return
	}

	// From the day before the series start so that the start itself counts
	from := cal.SeriesStart.AddDays(-1)
	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = civil.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
	}
	count := 12
	if s := r.URL.Query().Get("count"); s != "" {
		if count, err = strconv.Atoi(s); err != nil || count < 0 || count > maxUpcoming {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 0 and %d", maxUpcoming), err)
			return
		}
	}

	upcoming, err := calendar.Upcoming(cal, from, count)
	if err != nil {
		h.writeDomainError(w, "Failed to expand calendar", err)
		return
	}

	dto := toCalendarDTO(cal)
	dto.Upcoming = upcoming
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) decodeDeposit(w http.ResponseWriter, r *http.Request) (DepositRequest, *deposit.Product, bool) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, nil, false
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required", nil)
		return req, nil, false
	}
	product := h.product(req.ProductID)
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return req, nil, false
	}
	return req, product, true
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.products = make(map[string]*deposit.Product)
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(err error) int {
	switch generic.Code(err) {
	case "invalid_term":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "calendar_already_attached":
		return http.StatusConflict
	case "client_not_in_any_group", "client_in_multiple_groups", "no_parent_calendar",
		"no_valid_recurring_details", "invalid_interest_rate_for_term":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}

	writeJSON(w, status, ErrorResponse{Error: message, Code: generic.Code(err), Details: err.Error()})
}
