package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/prato-delivery/internal/domain/order"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	orders := []order.Order{
		{
			ID:         "20260901120000-ab12cd34",
			Customer:   order.Party{Name: "Maria", Address: "Rua das Flores, 12", Phone: "11911112222"},
			Restaurant: order.Party{Name: "Pizzaria Bella", Address: "Av. Paulista, 900", Phone: "1144445555"},
			Items: []order.LineItem{
				{Name: "Pizza", UnitPrice: decimal.RequireFromString("35.90"), Quantity: 1},
				{Name: "Soda", UnitPrice: decimal.RequireFromString("5.50"), Quantity: 2},
			},
			Total:       decimal.RequireFromString("46.90"),
			Status:      order.StatusOutForDelivery,
			CreatedDate: "01/09/2026",
			CreatedTime: "12:00",
			Courier:     &order.Courier{Name: "Carlos", Phone: "11999999999"},
			Payment:     order.PaymentPix,
			DeliveryFee: decimal.RequireFromString("7.00"),
		},
		{ID: "20260901120500-ef56ab78", Status: order.StatusPending},
	}

	require.NoError(t, store.Save(ctx, orders))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "20260901120000-ab12cd34", got[0].ID)
	assert.Equal(t, order.StatusOutForDelivery, got[0].Status)
	require.NotNil(t, got[0].Courier)
	assert.Equal(t, "Carlos", got[0].Courier.Name)
	require.Len(t, got[0].Items, 2)
	assert.True(t, decimal.RequireFromString("35.90").Equal(got[0].Items[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("46.90").Equal(got[0].Total))
	assert.Nil(t, got[1].Courier)
}

func TestSnapshot_MissingFileIsEmpty(t *testing.T) {
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "missing", "orders.json"))
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshot_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []order.Order{{ID: "one"}, {ID: "two"}}))
	require.NoError(t, store.Save(ctx, []order.Order{{ID: "three"}}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "three", got[0].ID)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSnapshot_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
}
