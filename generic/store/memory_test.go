package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/deposit-engine/generic"
	"github.com/warp/deposit-engine/generic/store"
)

func weeklyRecord() generic.CalendarRecord {
	return generic.CalendarRecord{
		Title:     "group meeting",
		StartDate: generic.Date(2024, time.January, 2),
		Rule:      "FREQ=WEEKLY;INTERVAL=1;BYDAY=TU",
	}
}

func TestMemory_CreateAttachFind(t *testing.T) {
	m := store.NewTxMemory()
	ctx := context.Background()

	id, err := m.CreateCalendar(ctx, weeklyRecord(), generic.Owner{EntityID: "g1", EntityType: generic.EntityTypeGroup})
	require.NoError(t, err)
	require.NoError(t, m.AttachCalendar(ctx, id, generic.AccountOwner("acc-1")))

	rec, err := m.FindCollectionCalendar(ctx, "acc-1", generic.EntityTypeSavingsAccount)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, generic.CalendarTypeCollection, rec.Type)

	err = m.AttachCalendar(ctx, id, generic.AccountOwner("acc-1"))
	assert.True(t, errors.Is(err, generic.ErrCalendarAlreadyAttached))

	err = m.AttachCalendar(ctx, "missing", generic.AccountOwner("acc-2"))
	assert.True(t, generic.IsNotFound(err))
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	m := store.NewTxMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx generic.CalendarStore) error {
		if _, err := tx.CreateCalendar(ctx, weeklyRecord(), generic.AccountOwner("acc-1")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := m.FindCollectionCalendar(ctx, "acc-1", generic.EntityTypeSavingsAccount)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemory_Directory(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveCenter(ctx, generic.CenterRecord{ID: "c1", Name: "Center"}))
	require.NoError(t, m.SaveGroup(ctx, generic.GroupRecord{ID: "g1", Name: "Group", CenterID: "c1"}))
	require.NoError(t, m.AddClientToGroup(ctx, "client-1", "g1"))
	require.NoError(t, m.AddClientToGroup(ctx, "client-1", "g1"))

	groups, err := m.GroupsOf(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, []generic.GroupRef{{ID: "g1", Name: "Group"}}, groups)

	center, err := m.ParentOf(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, center)
	assert.Equal(t, generic.CenterID("c1"), center.ID)

	assert.True(t, generic.IsNotFound(m.SaveGroup(ctx, generic.GroupRecord{ID: "g2", CenterID: "missing"})))
	assert.True(t, generic.IsNotFound(m.AddClientToGroup(ctx, "client-1", "missing")))
}

func TestMemory_Products(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveProduct(ctx, generic.ProductRecord{ID: "b", Name: "B"}))
	require.NoError(t, m.SaveProduct(ctx, generic.ProductRecord{ID: "a", Name: "A"}))
	require.NoError(t, m.SaveProduct(ctx, generic.ProductRecord{ID: "a", Name: "A2"}))

	a, err := m.GetProduct(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 2, a.Version)

	all, err := m.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	require.NoError(t, m.Reset(ctx))
	all, err = m.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
