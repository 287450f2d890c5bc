/*
Package generic provides the shared vocabulary of the deposit engine.

PURPOSE:
  This package contains the domain-agnostic value types used by the
  scheduling (calendar) and maturity (maturity) packages: money with a
  currency scale, identifiers, the deposit term, day-granular dates and
  financial-year periods. It also defines the store interfaces through which
  the engine reaches calendars and the client/group/center hierarchy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal quantity bound to a currency (e.g., 1000.00 USD)
  - Currency: ISO code plus the number of minor-unit digits
  - RoundingMode: How a full-precision amount is brought to currency scale
  - Identifiers: Type-safe IDs for accounts, clients, groups, centers, calendars
  - Owner: An (entity id, entity type) pair owning a calendar instance

DESIGN PRINCIPLES:
  1. Precision: All arithmetic uses decimal.Decimal, never float64
  2. Immutability: Values are passed by value and never mutated in place
  3. Type Safety: Strong typing for IDs prevents mixing clients and groups
  4. Explicit time: No function reads the wall clock; dates are parameters

USAGE:
  principal := generic.NewMoney("1000.00", generic.USD)
  rounded := principal.Mul(factor).Round(generic.RoundHalfEven)

SEE ALSO:
  - term.go: DepositTerm and its enums
  - time.go: civil.Date helpers
  - errors.go: Scheduling error taxonomy
  - store.go: Calendar store and directory interfaces
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount with a currency scale
// =============================================================================

type Currency struct {
	Code          string
	DecimalPlaces int32
}

var (
	USD = Currency{Code: "USD", DecimalPlaces: 2}
	EUR = Currency{Code: "EUR", DecimalPlaces: 2}
	KES = Currency{Code: "KES", DecimalPlaces: 2}
	JPY = Currency{Code: "JPY", DecimalPlaces: 0}
)

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

// RoundingMode selects how a full-precision amount is brought to the
// currency's minor-unit scale.
type RoundingMode string

const (
	RoundHalfEven RoundingMode = "half_even" // banker's rounding, the default
	RoundHalfUp   RoundingMode = "half_up"
	RoundDown     RoundingMode = "down"
)

func (m RoundingMode) IsValid() bool {
	switch m {
	case RoundHalfEven, RoundHalfUp, RoundDown:
		return true
	}
	return false
}

func NewMoney(value string, currency Currency) Money {
	return Money{Value: MustParseDecimal(value), Currency: currency}
}

func NewMoneyFromDecimal(value decimal.Decimal, currency Currency) Money {
	return Money{Value: value, Currency: currency}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Zero() Money { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(b Money) Money { return Money{Value: m.Value.Add(b.Value), Currency: m.Currency} }
func (m Money) Sub(b Money) Money { return Money{Value: m.Value.Sub(b.Value), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s), Currency: m.Currency} }
func (m Money) IsNegative() bool { return m.Value.IsNegative() }
func (m Money) IsZero() bool { return m.Value.IsZero() }
func (m Money) IsPositive() bool { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool { return m.Currency == b.Currency && m.Value.Equal(b.Value) }
func (m Money) String() string { return m.Value.StringFixed(m.Currency.DecimalPlaces) + " " + m.Currency.Code }

// Max returns the larger of m and b.
func (m Money) Max(b Money) Money {
	if m.LessThan(b) {
		return b
	}
	return m
}

// Round brings the amount to the currency scale using mode.
// An empty mode means half-even.
func (m Money) Round(mode RoundingMode) Money {
	places := m.Currency.DecimalPlaces
	var v decimal.Decimal
	switch mode {
	case RoundHalfUp:
		v = m.Value.Round(places)
	case RoundDown:
		v = m.Value.Truncate(places)
	default:
		v = m.Value.RoundBank(places)
	}
	return Money{Value: v, Currency: m.Currency}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type ClientID string
type GroupID string
type CenterID string
type CalendarID string

// EntityType is the numeric code of the entity a calendar instance hangs off.
// The values match the codes already persisted by the back office.
type EntityType int

const (
	EntityTypeCenter         EntityType = 1
	EntityTypeGroup          EntityType = 2
	EntityTypeLoan           EntityType = 3
	EntityTypeClient         EntityType = 4
	EntityTypeSavingsAccount EntityType = 5
)

func (e EntityType) String() string {
	switch e {
	case EntityTypeCenter:
		return "center"
	case EntityTypeGroup:
		return "group"
	case EntityTypeLoan:
		return "loan"
	case EntityTypeClient:
		return "client"
	case EntityTypeSavingsAccount:
		return "savings_account"
	default:
		return fmt.Sprintf("entity_type(%d)", int(e))
	}
}

// ParseEntityType accepts the string names produced by String.
func ParseEntityType(s string) (EntityType, error) {
	for _, e := range []EntityType{EntityTypeCenter, EntityTypeGroup, EntityTypeLoan, EntityTypeClient, EntityTypeSavingsAccount} {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown entity type %q", s)
}

// Owner identifies the entity a calendar instance belongs to.
type Owner struct {
	EntityID   string
	EntityType EntityType
}

func (o Owner) String() string { return o.EntityType.String() + ":" + o.EntityID }

// AccountOwner is the owner of a deposit account's calendar instance.
func AccountOwner(id AccountID) Owner {
	return Owner{EntityID: string(id), EntityType: EntityTypeSavingsAccount}
}

// =============================================================================
// HIERARCHY SNAPSHOTS
// =============================================================================

// GroupRef is a value snapshot of a group. The engine never holds live
// references into the client/group/center graph.
type GroupRef struct {
	ID   GroupID
	Name string
}

type CenterRef struct {
	ID   CenterID
	Name string
}
