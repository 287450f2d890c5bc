/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces of the deposit engine using SQLite.
  The PostgreSQL implementation (store/postgres) follows the same schema with
  only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.TxCalendarStore: Calendars and calendar instances
  generic.Directory:       Group membership and parent centers
  generic.HierarchyStore:  Centers, groups, memberships
  generic.ProductStore:    Product definitions (versioned)

AT-MOST-ONCE ATTACHMENT:
  calendar_instances has UNIQUE(entity_id, entity_type). A second calendar
  for the same owner fails with generic.ErrCalendarAlreadyAttached even when
  two writers race past the application-level check.

KEY TABLES:
  calendars:          Recurrences (start date + RFC 5545 rule)
  calendar_instances: Which entity uses which calendar
  centers:            Parent groupings of groups
  client_groups:      Groups, optionally under a center
  group_members:      Client membership
  products:           Product definitions (versioned JSON)

CONCURRENCY:
  Writes are serialized with a mutex; WithTx holds it for the whole
  transaction and the transactional view only touches the sql.Tx. In-memory
  databases are limited to one connection, since each connection to
  ":memory:" would otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/deposits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := deposit.NewService(store, store, logger)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/deposit-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calendars (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		calendar_type INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		recurrence TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- One calendar instance per owner
	CREATE TABLE IF NOT EXISTS calendar_instances (
		calendar_id TEXT NOT NULL REFERENCES calendars(id),
		entity_id TEXT NOT NULL,
		entity_type INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(entity_id, entity_type)
	);

	CREATE INDEX IF NOT EXISTS idx_calendar_instances_calendar
		ON calendar_instances(calendar_id);

	CREATE TABLE IF NOT EXISTS centers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS client_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		center_id TEXT REFERENCES centers(id),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_members (
		client_id TEXT NOT NULL,
		group_id TEXT NOT NULL REFERENCES client_groups(id),
		created_at TEXT NOT NULL,
		PRIMARY KEY (client_id, group_id)
	);

	CREATE INDEX IF NOT EXISTS idx_group_members_client
		ON group_members(client_id);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CALENDAR STORE (generic.CalendarStore interface)
// =============================================================================

// FindCollectionCalendar returns the collection calendar attached to the entity.
func (s *Store) FindCollectionCalendar(ctx context.Context, entityID string, entityType generic.EntityType) (*generic.CalendarRecord, error) {
	return findCollectionCalendar(ctx, s.db, entityID, entityType)
}

// CreateCalendar persists a new calendar and attaches it to owner.
func (s *Store) CreateCalendar(ctx context.Context, rec generic.CalendarRecord, owner generic.Owner) (generic.CalendarID, error) {
	var id generic.CalendarID
	err := s.WithTx(ctx, func(tx generic.CalendarStore) error {
		var err error
		id, err = tx.CreateCalendar(ctx, rec, owner)
		return err
	})
	return id, err
}

// AttachCalendar attaches an existing calendar to owner.
func (s *Store) AttachCalendar(ctx context.Context, id generic.CalendarID, owner generic.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return attachCalendar(ctx, s.db, id, owner)
}

func findCollectionCalendar(ctx context.Context, q queryer, entityID string, entityType generic.EntityType) (*generic.CalendarRecord, error) {
	query := `
		SELECT c.id, c.title, c.calendar_type, c.start_date, c.recurrence
		FROM calendars c
		JOIN calendar_instances ci ON ci.calendar_id = c.id
		WHERE ci.entity_id = ? AND ci.entity_type = ? AND c.calendar_type = ?
	`

	var rec generic.CalendarRecord
	var startDate string
	err := q.QueryRowContext(ctx, query, entityID, int(entityType), int(generic.CalendarTypeCollection)).
		Scan(&rec.ID, &rec.Title, &rec.Type, &startDate, &rec.Rule)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}

	rec.StartDate, err = civil.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: invalid start date %q: %w", rec.ID, startDate, err)
	}
	return &rec, nil
}

func insertCalendar(ctx context.Context, q queryer, rec generic.CalendarRecord) (generic.CalendarID, error) {
	if rec.ID == "" {
		rec.ID = generic.CalendarID(uuid.NewString())
	}
	if rec.Type == 0 {
		rec.Type = generic.CalendarTypeCollection
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO calendars (id, title, calendar_type, start_date, recurrence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Title, int(rec.Type), rec.StartDate.String(), rec.Rule, now())
	if err != nil {
		return "", fmt.Errorf("failed to create calendar: %w", err)
	}
	return rec.ID, nil
}

func attachCalendar(ctx context.Context, q queryer, id generic.CalendarID, owner generic.Owner) error {
	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM calendars WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return &generic.NotFoundError{Kind: "calendar", ID: string(id)}
	}
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO calendar_instances (calendar_id, entity_id, entity_type, created_at)
		VALUES (?, ?, ?, ?)
	`, id, owner.EntityID, int(owner.EntityType), now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrCalendarAlreadyAttached
		}
		return fmt.Errorf("failed to attach calendar: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxCalendarStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.CalendarStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) FindCollectionCalendar(ctx context.Context, entityID string, entityType generic.EntityType) (*generic.CalendarRecord, error) {
	return findCollectionCalendar(ctx, ts.tx, entityID, entityType)
}

func (ts *txStore) CreateCalendar(ctx context.Context, rec generic.CalendarRecord, owner generic.Owner) (generic.CalendarID, error) {
	id, err := insertCalendar(ctx, ts.tx, rec)
	if err != nil {
		return "", err
	}
	if err := attachCalendar(ctx, ts.tx, id, owner); err != nil {
		return "", err
	}
	return id, nil
}

func (ts *txStore) AttachCalendar(ctx context.Context, id generic.CalendarID, owner generic.Owner) error {
	return attachCalendar(ctx, ts.tx, id, owner)
}

// =============================================================================
// DIRECTORY (generic.Directory interface)
// =============================================================================

// GroupsOf returns every group the client belongs to, ordered by group ID.
func (s *Store) GroupsOf(ctx context.Context, clientID generic.ClientID) ([]generic.GroupRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name
		FROM group_members m
		JOIN client_groups g ON g.id = m.group_id
		WHERE m.client_id = ?
		ORDER BY g.id
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []generic.GroupRef
	for rows.Next() {
		var g generic.GroupRef
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ParentOf returns the center of a group, or nil when it has none.
func (s *Store) ParentOf(ctx context.Context, groupID generic.GroupID) (*generic.CenterRef, error) {
	var centerID, centerName sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT g.center_id, c.name
		FROM client_groups g
		LEFT JOIN centers c ON c.id = g.center_id
		WHERE g.id = ?
	`, groupID).Scan(&centerID, &centerName)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "group", ID: string(groupID)}
	}
	if err != nil {
		return nil, err
	}
	if !centerID.Valid || centerID.String == "" {
		return nil, nil
	}
	return &generic.CenterRef{ID: generic.CenterID(centerID.String), Name: centerName.String}, nil
}

// =============================================================================
// HIERARCHY STORE
// =============================================================================

// SaveCenter inserts or renames a center.
func (s *Store) SaveCenter(ctx context.Context, c generic.CenterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO centers (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, c.ID, c.Name, now())
	return err
}

// SaveGroup inserts or updates a group.
func (s *Store) SaveGroup(ctx context.Context, g generic.GroupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_groups (id, name, center_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, center_id = excluded.center_id
	`, g.ID, g.Name, nullString(string(g.CenterID)), now())
	if isForeignKeyError(err) {
		return &generic.NotFoundError{Kind: "center", ID: string(g.CenterID)}
	}
	return err
}

// AddClientToGroup records a membership. Adding it twice is a no-op.
func (s *Store) AddClientToGroup(ctx context.Context, clientID generic.ClientID, groupID generic.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (client_id, group_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(client_id, group_id) DO NOTHING
	`, clientID, groupID, now())
	if isForeignKeyError(err) {
		return &generic.NotFoundError{Kind: "group", ID: string(groupID)}
	}
	return err
}

// =============================================================================
// PRODUCT STORE
// =============================================================================

// SaveProduct saves a product record, bumping the version on update.
func (s *Store) SaveProduct(ctx context.Context, p generic.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO products (id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = products.version + 1,
			updated_at = excluded.updated_at
	`

	ts := now()
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.ConfigJSON, ts, ts)
	return err
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, id string) (*generic.ProductRecord, error) {
	var p generic.ProductRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM products WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ListProducts returns all products.
func (s *Store) ListProducts(ctx context.Context) ([]generic.ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM products ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []generic.ProductRecord
	for rows.Next() {
		var p generic.ProductRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"calendar_instances", "calendars", "group_members", "client_groups", "centers", "products"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
