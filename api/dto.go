/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine types (civil dates, decimals, typed IDs) from the external API
  contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are "YYYY-MM-DD". Amounts and rates are decimal strings; numbers
  are accepted on input.

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/product.go: ProductJSON type
*/
package api

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/warp/deposit-engine/calendar"
	"github.com/warp/deposit-engine/deposit"
	"github.com/warp/deposit-engine/factory"
	"github.com/warp/deposit-engine/generic"
)

// =============================================================================
// HIERARCHY
// =============================================================================

type CenterDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GroupDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CenterID string `json:"center_id,omitempty"`
}

type AddMemberRequest struct {
	ClientID string `json:"client_id"`
}

// =============================================================================
// CALENDARS
// =============================================================================

type FrequencyDTO struct {
	Type     string `json:"type"`
	Interval int    `json:"interval,omitempty"`
}

func (f *FrequencyDTO) toFrequency() *calendar.Frequency {
	if f == nil {
		return nil
	}
	return &calendar.Frequency{Type: calendar.FrequencyType(f.Type), Interval: f.Interval}
}

// CreateCalendarRequest creates the meeting calendar of a center or group.
type CreateCalendarRequest struct {
	EntityType string       `json:"entity_type"`
	EntityID   string       `json:"entity_id"`
	Title      string       `json:"title"`
	StartDate  civil.Date   `json:"start_date"`
	Frequency  FrequencyDTO `json:"frequency"`
}

type OwnerDTO struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

type CalendarDTO struct {
	ID            string       `json:"id,omitempty"`
	Provenance    string       `json:"provenance,omitempty"`
	StartDate     civil.Date   `json:"start_date"`
	SeriesStart   civil.Date   `json:"series_start"`
	Frequency     FrequencyDTO `json:"frequency"`
	Weekday       string       `json:"weekday,omitempty"`
	DayOfMonth    int          `json:"day_of_month,omitempty"`
	Rule          string       `json:"rule,omitempty"`
	InheritedFrom *OwnerDTO    `json:"inherited_from,omitempty"`
	Upcoming      []civil.Date `json:"upcoming,omitempty"`
}

func toCalendarDTO(c calendar.CollectionCalendar) CalendarDTO {
	dto := CalendarDTO{
		ID:          string(c.ID),
		Provenance:  string(c.Provenance),
		StartDate:   c.StartDate,
		SeriesStart: c.SeriesStart,
		Frequency:   FrequencyDTO{Type: string(c.Frequency.Type), Interval: c.Frequency.Interval},
	}
	switch c.Frequency.Type {
	case calendar.FrequencyWeekly:
		dto.Weekday = c.Anchor.Weekday.String()
	case calendar.FrequencyMonthly, calendar.FrequencyYearly:
		dto.DayOfMonth = c.Anchor.DayOfMonth
	}
	if rule, err := c.Frequency.RecurrenceRule(c.SeriesStart); err == nil {
		dto.Rule = rule
	}
	if c.InheritedFrom != nil {
		dto.InheritedFrom = &OwnerDTO{EntityType: c.InheritedFrom.EntityType.String(), EntityID: c.InheritedFrom.EntityID}
	}
	return dto
}

// =============================================================================
// DEPOSITS
// =============================================================================

// DepositRequest is the body of both preview and open-account calls.
type DepositRequest struct {
	ProductID       string           `json:"product_id"`
	AccountID       string           `json:"account_id,omitempty"`
	ClientID        string           `json:"client_id,omitempty"`
	GroupID         string           `json:"group_id,omitempty"`
	InheritCalendar bool             `json:"inherit_calendar"`
	Frequency       *FrequencyDTO    `json:"frequency,omitempty"`
	StartDate       civil.Date       `json:"start_date"`
	Principal       decimal.Decimal  `json:"principal"`
	Installment     decimal.Decimal  `json:"installment,omitempty"`
	AnnualRate      *decimal.Decimal `json:"annual_rate,omitempty"`
	TermLength      int              `json:"term_length,omitempty"`
	TermUnit        string           `json:"term_unit,omitempty"`
	PreClosure      bool             `json:"pre_closure,omitempty"`
	ClosureDate     *civil.Date      `json:"closure_date,omitempty"`
}

func (r DepositRequest) toRequest() deposit.Request {
	req := deposit.Request{
		AccountID:       generic.AccountID(r.AccountID),
		ClientID:        generic.ClientID(r.ClientID),
		GroupID:         generic.GroupID(r.GroupID),
		InheritCalendar: r.InheritCalendar,
		Frequency:       r.Frequency.toFrequency(),
		StartDate:       r.StartDate,
		Principal:       r.Principal,
		Installment:     r.Installment,
		AnnualRate:      r.AnnualRate,
		TermLength:      r.TermLength,
		TermUnit:        generic.TermUnit(r.TermUnit),
		PreClosure:      r.PreClosure,
	}
	if r.ClosureDate != nil {
		req.ClosureDate = *r.ClosureDate
	}
	return req
}

type ScheduleEntryDTO struct {
	Index   int        `json:"index"`
	DueDate civil.Date `json:"due_date"`
}

type MaturityDTO struct {
	MaturityDate           civil.Date      `json:"maturity_date"`
	MaturityAmount         decimal.Decimal `json:"maturity_amount"`
	ExpectedInterest       decimal.Decimal `json:"expected_interest"`
	DepositAmount          decimal.Decimal `json:"deposit_amount"`
	Currency               string          `json:"currency"`
	DepositPeriod          int             `json:"deposit_period"`
	DepositPeriodFrequency string          `json:"deposit_period_frequency"`
	AnnualRate             decimal.Decimal `json:"annual_rate"`
}

type QuoteDTO struct {
	AccountID string             `json:"account_id,omitempty"`
	ProductID string             `json:"product_id"`
	Calendar  CalendarDTO        `json:"calendar"`
	Schedule  []ScheduleEntryDTO `json:"schedule"`
	Truncated bool               `json:"truncated,omitempty"`
	Maturity  MaturityDTO        `json:"maturity"`
}

func toQuoteDTO(productID string, accountID generic.AccountID, q deposit.Quote) QuoteDTO {
	entries := make([]ScheduleEntryDTO, len(q.Schedule.Entries))
	for i, e := range q.Schedule.Entries {
		entries[i] = ScheduleEntryDTO{Index: e.Index, DueDate: e.DueDate}
	}
	res := q.Result
	places := res.MaturityAmount.Currency.DecimalPlaces
	return QuoteDTO{
		AccountID: string(accountID),
		ProductID: productID,
		Calendar:  toCalendarDTO(q.Calendar),
		Schedule:  entries,
		Truncated: q.Schedule.Truncated,
		Maturity: MaturityDTO{
			MaturityDate:           res.MaturityDate,
			MaturityAmount:         res.MaturityAmount.Value.Round(places),
			ExpectedInterest:       res.ExpectedInterest.Value.Round(places),
			DepositAmount:          res.DepositAmount.Value.Round(places),
			Currency:               res.MaturityAmount.Currency.Code,
			DepositPeriod:          res.DepositPeriod,
			DepositPeriodFrequency: string(res.DepositPeriodFrequency),
			AnnualRate:             res.AnnualRate,
		},
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDTO wraps the product definition with its stored version.
type ProductDTO struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Version int                 `json:"version"`
	Config  factory.ProductJSON `json:"config"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
