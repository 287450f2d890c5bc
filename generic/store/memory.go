// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/deposit-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps calendars, calendar instances, the group hierarchy and
// products in maps. It implements every store interface of the engine.
type Memory struct {
	mu        sync.RWMutex
	calendars map[generic.CalendarID]generic.CalendarRecord
	instances map[generic.Owner]generic.CalendarID

	centers     map[generic.CenterID]generic.CenterRecord
	groups      map[generic.GroupID]generic.GroupRecord
	memberships map[generic.ClientID][]generic.GroupID

	products map[string]generic.ProductRecord
}

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.calendars = make(map[generic.CalendarID]generic.CalendarRecord)
	m.instances = make(map[generic.Owner]generic.CalendarID)
	m.centers = make(map[generic.CenterID]generic.CenterRecord)
	m.groups = make(map[generic.GroupID]generic.GroupRecord)
	m.memberships = make(map[generic.ClientID][]generic.GroupID)
	m.products = make(map[string]generic.ProductRecord)
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// =============================================================================
// CALENDARS
// =============================================================================

func (m *Memory) FindCollectionCalendar(_ context.Context, entityID string, entityType generic.EntityType) (*generic.CalendarRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(entityID, entityType), nil
}

func (m *Memory) CreateCalendar(_ context.Context, rec generic.CalendarRecord, owner generic.Owner) (generic.CalendarID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(rec, owner)
}

func (m *Memory) AttachCalendar(_ context.Context, id generic.CalendarID, owner generic.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attachLocked(id, owner)
}

func (m *Memory) findLocked(entityID string, entityType generic.EntityType) *generic.CalendarRecord {
	id, ok := m.instances[generic.Owner{EntityID: entityID, EntityType: entityType}]
	if !ok {
		return nil
	}
	rec, ok := m.calendars[id]
	if !ok || rec.Type != generic.CalendarTypeCollection {
		return nil
	}
	return &rec
}

func (m *Memory) createLocked(rec generic.CalendarRecord, owner generic.Owner) (generic.CalendarID, error) {
	if _, ok := m.instances[owner]; ok {
		return "", generic.ErrCalendarAlreadyAttached
	}
	if rec.ID == "" {
		rec.ID = generic.CalendarID(uuid.NewString())
	}
	if rec.Type == 0 {
		rec.Type = generic.CalendarTypeCollection
	}
	m.calendars[rec.ID] = rec
	m.instances[owner] = rec.ID
	return rec.ID, nil
}

func (m *Memory) attachLocked(id generic.CalendarID, owner generic.Owner) error {
	if _, ok := m.calendars[id]; !ok {
		return &generic.NotFoundError{Kind: "calendar", ID: string(id)}
	}
	if _, ok := m.instances[owner]; ok {
		return generic.ErrCalendarAlreadyAttached
	}
	m.instances[owner] = id
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) GroupsOf(_ context.Context, clientID generic.ClientID) ([]generic.GroupRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []generic.GroupRef
	for _, id := range m.memberships[clientID] {
		refs = append(refs, generic.GroupRef{ID: id, Name: m.groups[id].Name})
	}
	return refs, nil
}

func (m *Memory) ParentOf(_ context.Context, groupID generic.GroupID) (*generic.CenterRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[groupID]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "group", ID: string(groupID)}
	}
	if g.CenterID == "" {
		return nil, nil
	}
	return &generic.CenterRef{ID: g.CenterID, Name: m.centers[g.CenterID].Name}, nil
}

// =============================================================================
// HIERARCHY
// =============================================================================

func (m *Memory) SaveCenter(_ context.Context, c generic.CenterRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.centers[c.ID] = c
	return nil
}

func (m *Memory) SaveGroup(_ context.Context, g generic.GroupRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.CenterID != "" {
		if _, ok := m.centers[g.CenterID]; !ok {
			return &generic.NotFoundError{Kind: "center", ID: string(g.CenterID)}
		}
	}
	m.groups[g.ID] = g
	return nil
}

func (m *Memory) AddClientToGroup(_ context.Context, clientID generic.ClientID, groupID generic.GroupID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[groupID]; !ok {
		return &generic.NotFoundError{Kind: "group", ID: string(groupID)}
	}
	for _, id := range m.memberships[clientID] {
		if id == groupID {
			return nil
		}
	}
	m.memberships[clientID] = append(m.memberships[clientID], groupID)
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

// SaveProduct inserts or updates a product, bumping its version.
func (m *Memory) SaveProduct(_ context.Context, p generic.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.products[p.ID]; ok {
		p.Version = existing.Version + 1
		p.CreatedAt = existing.CreatedAt
	} else {
		p.Version = 1
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.products[p.ID] = p
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id string) (*generic.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]generic.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.ProductRecord, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.CalendarStore) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	calendars := make(map[generic.CalendarID]generic.CalendarRecord, len(tm.calendars))
	for k, v := range tm.calendars {
		calendars[k] = v
	}
	instances := make(map[generic.Owner]generic.CalendarID, len(tm.instances))
	for k, v := range tm.instances {
		instances[k] = v
	}
	return memorySnapshot{calendars: calendars, instances: instances}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.calendars = s.calendars
	tm.instances = s.instances
}

type memorySnapshot struct {
	calendars map[generic.CalendarID]generic.CalendarRecord
	instances map[generic.Owner]generic.CalendarID
}

// txMemoryView runs under the lock held by WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) FindCollectionCalendar(_ context.Context, entityID string, entityType generic.EntityType) (*generic.CalendarRecord, error) {
	return tv.parent.findLocked(entityID, entityType), nil
}

func (tv *txMemoryView) CreateCalendar(_ context.Context, rec generic.CalendarRecord, owner generic.Owner) (generic.CalendarID, error) {
	return tv.parent.createLocked(rec, owner)
}

func (tv *txMemoryView) AttachCalendar(_ context.Context, id generic.CalendarID, owner generic.Owner) error {
	return tv.parent.attachLocked(id, owner)
}
