/*
store.go - Persistence interfaces for calendars and the group hierarchy

PURPOSE:
  Defines the interface between the engine and the database. The engine
  reads collection calendars and walks the client -> group -> center
  hierarchy through these interfaces only, by ID, never by object graph.

KEY INTERFACES:
  CalendarReader: Look up the collection calendar attached to an entity
  CalendarStore:  Reader plus calendar creation and attachment
  TxCalendarStore: CalendarStore with transactional execution
  Directory:      Group membership and parent center lookups
  ProductStore:   Versioned product definitions (JSON)
  HierarchyStore: Writes for centers, groups and memberships

AT-MOST-ONCE ATTACHMENT:
  An owner (e.g. a deposit account) holds at most one calendar instance.
  CreateCalendar and AttachCalendar fail with ErrCalendarAlreadyAttached
  when the owner already has one. Callers run the check-and-write inside
  WithTx so it commits atomically with the rest of their unit of work.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL (pgx)

SEE ALSO:
  - calendar/resolver.go: Consumer of CalendarReader and Directory
  - deposit/service.go: Runs calendar persistence inside WithTx
*/
package generic

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

// =============================================================================
// CALENDAR RECORDS
// =============================================================================

// CalendarType classifies a stored calendar. Only collection calendars
// drive deposit schedules.
type CalendarType int

const (
	CalendarTypeCollection CalendarType = 1
	CalendarTypeTraining   CalendarType = 2
	CalendarTypeAudit      CalendarType = 3
	CalendarTypeGeneral    CalendarType = 4
)

// CalendarRecord is a persisted recurrence: start date plus an RFC 5545
// recurrence rule (e.g. "FREQ=MONTHLY;INTERVAL=1;BYMONTHDAY=15").
type CalendarRecord struct {
	ID        CalendarID
	Title     string
	Type      CalendarType
	StartDate civil.Date
	Rule      string
}

// =============================================================================
// CALENDAR STORE
// =============================================================================

type CalendarReader interface {
	// FindCollectionCalendar returns the collection calendar attached to the
	// entity, or nil when there is none.
	FindCollectionCalendar(ctx context.Context, entityID string, entityType EntityType) (*CalendarRecord, error)
}

type CalendarStore interface {
	CalendarReader

	// CreateCalendar persists a new calendar and attaches it to owner.
	// An empty record ID is assigned by the store.
	CreateCalendar(ctx context.Context, rec CalendarRecord, owner Owner) (CalendarID, error)

	// AttachCalendar attaches an existing calendar to owner by reference.
	AttachCalendar(ctx context.Context, id CalendarID, owner Owner) error
}

// TxCalendarStore wraps CalendarStore with transaction support.
type TxCalendarStore interface {
	CalendarStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(CalendarStore) error) error
}

// =============================================================================
// DIRECTORY - Group membership service
// =============================================================================

type Directory interface {
	// GroupsOf returns every group the client belongs to.
	GroupsOf(ctx context.Context, clientID ClientID) ([]GroupRef, error)

	// ParentOf returns the center a group belongs to, or nil.
	ParentOf(ctx context.Context, groupID GroupID) (*CenterRef, error)
}

// =============================================================================
// PRODUCT AND HIERARCHY RECORDS - Admin-side writes
// =============================================================================

// ProductRecord is a stored product with its JSON config.
type ProductRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ProductStore interface {
	SaveProduct(ctx context.Context, p ProductRecord) error
	GetProduct(ctx context.Context, id string) (*ProductRecord, error)
	ListProducts(ctx context.Context) ([]ProductRecord, error)
}

type CenterRecord struct {
	ID   CenterID
	Name string
}

type GroupRecord struct {
	ID       GroupID
	Name     string
	CenterID CenterID // empty when the group has no parent center
}

type HierarchyStore interface {
	SaveCenter(ctx context.Context, c CenterRecord) error
	SaveGroup(ctx context.Context, g GroupRecord) error
	AddClientToGroup(ctx context.Context, clientID ClientID, groupID GroupID) error
}
