package aggregates

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/fieldtrack/internal/config"
	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/repository/memory"
)

func totals(t *testing.T, store docstore.Store, id string) (float64, float64) {
	t.Helper()
	raw, err := store.Get(context.Background(), docstore.Farmers, id)
	require.NoError(t, err)
	return number(raw["totalDue"]), number(raw["totalPaid"])
}

func TestPurchaseLifecycle(t *testing.T) {
	for _, mode := range []string{config.AggregatesReadModifyWrite, config.AggregatesIncrement} {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			store.Put(docstore.Farmers, "A", docstore.Document{"name": "A", "totalDue": 0.0, "totalPaid": 0.0})
			m := NewMaintainer(store, mode, nil)

			require.NoError(t, m.PurchaseCreated(ctx, "A", Amounts{Paid: 600, Remaining: 400}))
			due, paid := totals(t, store, "A")
			assert.Equal(t, 400.0, due)
			assert.Equal(t, 600.0, paid)

			require.NoError(t, m.PurchaseUpdated(ctx, "A", Amounts{Paid: 600, Remaining: 400}, Amounts{Paid: 1000, Remaining: 0}))
			due, paid = totals(t, store, "A")
			assert.Equal(t, 0.0, due)
			assert.Equal(t, 1000.0, paid)

			require.NoError(t, m.PurchaseDeleted(ctx, "A", Amounts{Paid: 1000, Remaining: 0}))
			due, paid = totals(t, store, "A")
			assert.Equal(t, 0.0, due)
			assert.Equal(t, 0.0, paid)
		})
	}
}

func TestDecimalArithmeticAvoidsDrift(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Put(docstore.Farmers, "A", docstore.Document{"totalDue": 0.1, "totalPaid": 0.0})
	m := NewMaintainer(store, config.AggregatesReadModifyWrite, nil)

	require.NoError(t, m.PurchaseCreated(ctx, "A", Amounts{Remaining: 0.2}))
	due, _ := totals(t, store, "A")
	assert.Equal(t, 0.3, due)
}

func TestMissingFarmerIsSkipped(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []string{config.AggregatesReadModifyWrite, config.AggregatesIncrement} {
		m := NewMaintainer(memory.NewStore(), mode, nil)
		assert.NoError(t, m.PurchaseCreated(ctx, "gone", Amounts{Paid: 1, Remaining: 1}))
		assert.NoError(t, m.PurchaseDeleted(ctx, "gone", Amounts{Paid: 1, Remaining: 1}))
		assert.NoError(t, m.VisitCreated(ctx, "gone"))
	}
}

func TestVisitCreatedStampsWallClock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Put(docstore.Farmers, "B", docstore.Document{"name": "B"})
	m := NewMaintainer(store, "", nil)
	now := time.Date(2024, 8, 15, 11, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.VisitCreated(ctx, "B"))

	raw, err := store.Get(ctx, docstore.Farmers, "B")
	require.NoError(t, err)
	assert.Equal(t, now, raw["lastVisitDate"])
}

// barrierStore holds every Get until two readers have arrived, forcing two
// concurrent read-modify-write sequences to read the same totals.
type barrierStore struct {
	*memory.Store
	arrived sync.WaitGroup
}

func (b *barrierStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	doc, err := b.Store.Get(ctx, collection, id)
	b.arrived.Done()
	b.arrived.Wait()
	return doc, err
}

func TestConcurrentReadModifyWriteLosesUpdate(t *testing.T) {
	ctx := context.Background()
	store := &barrierStore{Store: memory.NewStore()}
	store.Put(docstore.Farmers, "C", docstore.Document{"totalDue": 0.0, "totalPaid": 0.0})
	store.arrived.Add(2)
	m := NewMaintainer(store, config.AggregatesReadModifyWrite, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.PurchaseCreated(ctx, "C", Amounts{Paid: 100, Remaining: 50}))
		}()
	}
	wg.Wait()

	due, paid := totals(t, store.Store, "C")
	assert.Equal(t, 50.0, due, "one increment is lost")
	assert.Equal(t, 100.0, paid)
}

func TestConcurrentIncrementKeepsBothUpdates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Put(docstore.Farmers, "D", docstore.Document{"totalDue": 0.0, "totalPaid": 0.0})
	m := NewMaintainer(store, config.AggregatesIncrement, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.PurchaseCreated(ctx, "D", Amounts{Paid: 10, Remaining: 5}))
		}()
	}
	wg.Wait()

	due, paid := totals(t, store, "D")
	assert.Equal(t, 100.0, due)
	assert.Equal(t, 200.0, paid)
}
