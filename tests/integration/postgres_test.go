//go:build integration

package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/prato-delivery/internal/domain/auth"
	"github.com/xenking/prato-delivery/internal/domain/coupon"
	"github.com/xenking/prato-delivery/internal/domain/order"
	"github.com/xenking/prato-delivery/internal/domain/product"
	"github.com/xenking/prato-delivery/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("prato"),
		tcpostgres.WithUsername("prato"),
		tcpostgres.WithPassword("prato"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = postgres.NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrderSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	snap := postgres.NewOrderSnapshotStore(pool)

	orders := []order.Order{
		{
			ID:         "20260901120000-aaaa1111",
			Customer:   order.Party{Name: "Carlos", Address: "Av. Paulista, 1000", Phone: "11999999999"},
			Restaurant: order.Party{Name: "Pizzaria Bella", Address: "Av. Paulista, 900", Phone: "1144445555"},
			Items: []order.LineItem{
				{Name: "Pizza Margherita", UnitPrice: price("35.90"), Quantity: 1},
				{Name: "Refrigerante Lata", UnitPrice: price("5.50"), Quantity: 2},
			},
			Total:         price("51.90"),
			Status:        order.StatusPending,
			CreatedDate:   "01/09/2026",
			CreatedTime:   "12:00",
			Payment:       order.PaymentPix,
			DeliveryFee:   price("5.00"),
			EstimatedTime: "40-50 min",
		},
		{
			ID:          "20260901120500-bbbb2222",
			Customer:    order.Party{Name: "Ana", Phone: "11666666666"},
			Restaurant:  order.Party{Name: "Cantina da Praça"},
			Items:       []order.LineItem{{Name: "Marmita Executiva", UnitPrice: price("18.50"), Quantity: 1}},
			Total:       price("23.50"),
			Status:      order.StatusOutForDelivery,
			CreatedDate: "01/09/2026",
			CreatedTime: "12:05",
			Courier:     &order.Courier{Name: "João", Phone: "11888888888"},
			Payment:     order.PaymentCash,
			DeliveryFee: price("5.00"),
		},
	}

	require.NoError(t, snap.Save(ctx, orders))

	loaded, err := snap.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Insertion order survives the round trip.
	assert.Equal(t, orders[0].ID, loaded[0].ID)
	assert.Equal(t, orders[1].ID, loaded[1].ID)

	assert.Equal(t, "Carlos", loaded[0].Customer.Name)
	assert.Len(t, loaded[0].Items, 2)
	assert.True(t, loaded[0].Total.Equal(price("51.90")))
	assert.Equal(t, order.StatusPending, loaded[0].Status)
	assert.Nil(t, loaded[0].Courier)

	require.NotNil(t, loaded[1].Courier)
	assert.Equal(t, "João", loaded[1].Courier.Name)

	// Saving a shorter list replaces the previous snapshot entirely.
	require.NoError(t, snap.Save(ctx, orders[:1]))
	loaded, err = snap.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestOrderStore_PersistsThroughPostgres(t *testing.T) {
	ctx := context.Background()
	snap := postgres.NewOrderSnapshotStore(pool)
	require.NoError(t, snap.Save(ctx, nil))

	store := order.NewStore(snap, zaptest.NewLogger(t))
	require.NoError(t, store.Hydrate(ctx))

	id, err := store.Create(ctx, order.Order{
		Customer:   order.Party{Name: "Carlos"},
		Restaurant: order.Party{Name: "Pizzaria Bella"},
		Items:      []order.LineItem{{Name: "Pizza Margherita", UnitPrice: price("35.90"), Quantity: 1}},
		Total:      price("40.90"),
		Payment:    order.PaymentCard,
	})
	require.NoError(t, err)
	require.NoError(t, store.Transition(ctx, id, order.StatusConfirmed))

	// A second store hydrating from the same database sees the mutation.
	other := order.NewStore(snap, zaptest.NewLogger(t))
	require.NoError(t, other.Hydrate(ctx))

	got, err := other.Get(id)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
}

func TestProductRepository_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewProductRepository(pool)

	p := product.Product{
		ID:         "it-pizza-4queijos",
		Restaurant: product.Restaurant{Name: "Pizzaria Bella", Address: "Av. Paulista, 900", Phone: "1144445555"},
		Name:       "Pizza Quatro Queijos",
		Price:      price("41.00"),
		Category:   "pizza",
	}
	require.NoError(t, repo.Upsert(ctx, p))

	p.Price = price("43.00")
	require.NoError(t, repo.Upsert(ctx, p))

	got, err := repo.GetByIDs(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(price("43.00")))

	menu, err := repo.ListByRestaurant(ctx, "Pizzaria Bella")
	require.NoError(t, err)
	require.NotEmpty(t, menu)
	for _, item := range menu {
		assert.Equal(t, "Pizzaria Bella", item.Restaurant.Name)
	}
}

func TestCouponRepository_FindAndIncrement(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCouponRepository(pool)

	rule := coupon.Rule{
		Code:         "ITTESTE10",
		DiscountType: coupon.DiscountPercentage,
		Value:        price("10"),
		Description:  "teste de integração",
	}
	require.NoError(t, repo.Upsert(ctx, rule, true))

	// Lookup is case-insensitive.
	got, err := repo.FindByCode(ctx, "itteste10")
	require.NoError(t, err)
	assert.Equal(t, "ITTESTE10", got.Code)
	assert.Equal(t, 0, got.Uses)

	require.NoError(t, repo.IncrementUses(ctx, "ITTESTE10"))
	got, err = repo.FindByCode(ctx, "ITTESTE10")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Uses)

	_, err = repo.FindByCode(ctx, "DOESNOTEXIST")
	assert.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	// Inactive coupons are invisible.
	require.NoError(t, repo.Upsert(ctx, rule, false))
	_, err = repo.FindByCode(ctx, "ITTESTE10")
	assert.ErrorIs(t, err, coupon.ErrInvalidCoupon)
}

func TestAPIKeyRepository_FindByHash(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAPIKeyRepository(pool)

	info := auth.APIKeyInfo{
		ID:      "it-key",
		KeyHash: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		Name:    "Carlos",
		Phone:   "11999999999",
		Role:    auth.RoleCustomer,
	}
	require.NoError(t, repo.Insert(ctx, info))
	// Re-inserting the same hash is a no-op.
	require.NoError(t, repo.Insert(ctx, info))

	got, err := repo.FindByHash(ctx, info.KeyHash)
	require.NoError(t, err)
	assert.Equal(t, "Carlos", got.Name)
	assert.Equal(t, auth.RoleCustomer, got.Role)

	_, err = repo.FindByHash(ctx, "0000")
	assert.ErrorIs(t, err, postgres.ErrKeyNotFound)
}
