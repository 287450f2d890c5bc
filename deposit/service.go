package deposit

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/deposit-engine/calendar"
	"github.com/warp/deposit-engine/generic"
	"github.com/warp/deposit-engine/maturity"
)

// =============================================================================
// REQUEST / QUOTE
// =============================================================================

// Request carries one account's deposit parameters. Exactly one of ClientID
// and GroupID identifies the account holder.
type Request struct {
	AccountID generic.AccountID
	ClientID  generic.ClientID
	GroupID   generic.GroupID

	// InheritCalendar reuses the meeting calendar of the holder's group (or
	// that group's center). Frequency is required otherwise.
	InheritCalendar bool
	Frequency       *calendar.Frequency

	StartDate civil.Date
	Principal decimal.Decimal

	// Installment is the periodic deposit of a recurring product. Zero means
	// the principal amount.
	Installment decimal.Decimal

	// AnnualRate overrides the product's rate chart when set.
	AnnualRate *decimal.Decimal

	// TermLength/TermUnit override the product's default term when set.
	TermLength int
	TermUnit   generic.TermUnit

	PreClosure  bool
	ClosureDate civil.Date
}

func (r Request) ownerLabel() string {
	if r.GroupID != "" {
		return "group " + string(r.GroupID)
	}
	return "client " + string(r.ClientID)
}

// Quote is the computed outcome of a request.
type Quote struct {
	Calendar calendar.CollectionCalendar
	Schedule calendar.Schedule
	Result   maturity.MaturityResult
}

// =============================================================================
// SERVICE
// =============================================================================

// Service runs the account workflows against a calendar store and the group
// directory.
type Service struct {
	Calendars generic.TxCalendarStore
	Directory generic.Directory
	Logger    *zap.Logger
}

// NewService creates a service. A nil logger disables logging.
func NewService(calendars generic.TxCalendarStore, directory generic.Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Calendars: calendars, Directory: directory, Logger: logger}
}

// Preview computes the calendar, schedule and maturity of req without
// persisting anything.
func (s *Service) Preview(ctx context.Context, product *Product, req Request) (Quote, error) {
	if product == nil {
		return Quote{}, &generic.InvalidTermError{Field: "product", Reason: "is required"}
	}
	if req.ClientID == "" && req.GroupID == "" {
		return Quote{}, &generic.InvalidTermError{Field: "owner", Reason: "client_id or group_id is required"}
	}
	if req.ClientID != "" && req.GroupID != "" {
		return Quote{}, &generic.InvalidTermError{Field: "owner", Reason: "only one of client_id and group_id may be set"}
	}

	groups, err := s.ownerGroups(ctx, req)
	if err != nil {
		return Quote{}, err
	}

	resolver := calendar.Resolver{Calendars: s.Calendars, Directory: s.Directory}
	cal, err := resolver.Resolve(ctx, calendar.ResolveInput{
		Account:           req.AccountID,
		OwnerLabel:        req.ownerLabel(),
		OwnerGroups:       groups,
		InheritFromParent: req.InheritCalendar,
		Frequency:         req.Frequency,
		StartDate:         req.StartDate,
	})
	if err != nil {
		return Quote{}, err
	}

	term, err := buildTerm(product, req)
	if err != nil {
		return Quote{}, err
	}

	schedule, err := calendar.Generate(cal, term)
	if err != nil {
		return Quote{}, err
	}

	rate, err := s.rate(product, req, term)
	if err != nil {
		return Quote{}, err
	}

	result, err := maturity.Calculate(maturity.CalculationInput{
		Term:                    term,
		Schedule:                schedule,
		AnnualRate:              rate,
		IsPreClosure:            term.PreClosure,
		PostInterestAtPeriodEnd: product.PostInterestAtPeriodEnd,
		FinancialYearStartMonth: product.FinancialYearStartMonth,
	})
	if err != nil {
		return Quote{}, err
	}

	return Quote{Calendar: cal, Schedule: schedule, Result: result}, nil
}

// OpenAccount previews req and attaches the resulting calendar to the
// account. A standalone calendar is created; an inherited one is attached by
// reference. The attachment happens at most once per account.
func (s *Service) OpenAccount(ctx context.Context, product *Product, req Request) (Quote, error) {
	if req.AccountID == "" {
		return Quote{}, &generic.InvalidTermError{Field: "account_id", Reason: "is required"}
	}

	quote, err := s.Preview(ctx, product, req)
	if err != nil {
		return Quote{}, err
	}

	owner := generic.AccountOwner(req.AccountID)
	err = s.Calendars.WithTx(ctx, func(tx generic.CalendarStore) error {
		existing, err := tx.FindCollectionCalendar(ctx, owner.EntityID, owner.EntityType)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("account %s: %w", req.AccountID, generic.ErrCalendarAlreadyAttached)
		}

		if quote.Calendar.Provenance.IsInherited() {
			return tx.AttachCalendar(ctx, quote.Calendar.ID, owner)
		}

		rec, err := quote.Calendar.Record()
		if err != nil {
			return err
		}
		id, err := tx.CreateCalendar(ctx, rec, owner)
		if err != nil {
			return err
		}
		quote.Calendar.ID = id
		return nil
	})
	if err != nil {
		s.Logger.Warn("failed to attach calendar",
			zap.String("account_id", string(req.AccountID)),
			zap.Error(err))
		return Quote{}, err
	}

	s.Logger.Debug("calendar attached",
		zap.String("account_id", string(req.AccountID)),
		zap.String("calendar_id", string(quote.Calendar.ID)),
		zap.String("provenance", string(quote.Calendar.Provenance)))
	return quote, nil
}

// AccountCalendar returns the calendar attached to an opened account.
func (s *Service) AccountCalendar(ctx context.Context, id generic.AccountID) (calendar.CollectionCalendar, error) {
	owner := generic.AccountOwner(id)
	rec, err := s.Calendars.FindCollectionCalendar(ctx, owner.EntityID, owner.EntityType)
	if err != nil {
		return calendar.CollectionCalendar{}, err
	}
	if rec == nil {
		return calendar.CollectionCalendar{}, &generic.NotFoundError{Kind: "account calendar", ID: string(id)}
	}
	cal, err := calendar.FromRecord(*rec)
	if err != nil {
		return calendar.CollectionCalendar{}, err
	}
	cal.Owner = owner
	return cal, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// ownerGroups returns the groups the resolver may inherit from. Membership
// is only looked up when inheritance is requested.
func (s *Service) ownerGroups(ctx context.Context, req Request) ([]generic.GroupRef, error) {
	if !req.InheritCalendar {
		return nil, nil
	}
	if req.GroupID != "" {
		return []generic.GroupRef{{ID: req.GroupID}}, nil
	}
	groups, err := s.Directory.GroupsOf(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up groups of client %s: %w", req.ClientID, err)
	}
	return groups, nil
}

func (s *Service) rate(product *Product, req Request, term generic.DepositTerm) (decimal.Decimal, error) {
	if req.AnnualRate != nil {
		return *req.AnnualRate, nil
	}
	amount := term.Principal.Value
	rate, err := maturity.Select(maturity.RateQuery{
		Tenor:  term.Tenor,
		Start:  term.StartDate,
		Amount: &amount,
	}, product.Chart)
	if err != nil && errors.Is(err, generic.ErrInvalidInterestRateForTerm) {
		s.Logger.Debug("no rate tier for term",
			zap.String("product_id", product.ID),
			zap.Int("term_length", term.Tenor.Length),
			zap.String("term_unit", string(term.Tenor.Unit)))
	}
	return rate, err
}

func buildTerm(product *Product, req Request) (generic.DepositTerm, error) {
	tenor := product.DefaultTenor
	if req.TermLength != 0 || req.TermUnit != "" {
		tenor = generic.Tenor{Length: req.TermLength, Unit: req.TermUnit}
		if tenor.Unit == "" {
			tenor.Unit = product.DefaultTenor.Unit
		}
	}

	installment := decimal.Zero
	switch product.Kind {
	case KindRecurring:
		installment = req.Installment
		if installment.IsZero() {
			installment = req.Principal
		}
	default:
		if !req.Installment.IsZero() {
			return generic.DepositTerm{}, &generic.InvalidTermError{Field: "installment", Reason: "not allowed for fixed deposits"}
		}
	}

	if !product.MinDeposit.IsZero() {
		if req.Principal.LessThan(product.MinDeposit) {
			return generic.DepositTerm{}, &generic.InvalidTermError{Field: "principal", Reason: "below the product minimum " + product.MinDeposit.String()}
		}
		if product.Kind == KindRecurring && installment.LessThan(product.MinDeposit) {
			return generic.DepositTerm{}, &generic.InvalidTermError{Field: "installment", Reason: "below the product minimum " + product.MinDeposit.String()}
		}
	}

	if req.PreClosure && !product.PreClosure.Allowed {
		return generic.DepositTerm{}, &generic.InvalidTermError{Field: "pre_closure", Reason: "not allowed by product " + product.ID}
	}

	term := generic.DepositTerm{
		StartDate:               req.StartDate,
		Principal:               generic.NewMoneyFromDecimal(req.Principal, product.Currency),
		Installment:             installment,
		Tenor:                   tenor,
		Compounding:             product.Compounding,
		DayCount:                product.DayCount,
		FinancialYearStartMonth: product.FinancialYearStartMonth,
		Rounding:                product.Rounding,
		PreClosure:              req.PreClosure,
		ClosureDate:             req.ClosureDate,
		PreClosurePenalRate:     product.PreClosure.PenalRate,
	}
	if err := term.Validate(); err != nil {
		return generic.DepositTerm{}, err
	}
	return term, nil
}
