// Command seed-db loads the demo catalog, a couple of promo coupons, and one
// API key per role into PostgreSQL. Intended for local development and demo
// environments; every write is an upsert, so re-running is safe.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/prato-delivery/db"
	"github.com/xenking/prato-delivery/internal/domain/auth"
	"github.com/xenking/prato-delivery/internal/domain/coupon"
	"github.com/xenking/prato-delivery/internal/domain/product"
	"github.com/xenking/prato-delivery/internal/storage/postgres"
)

type productJSON struct {
	ID         string `json:"id"`
	Restaurant struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	} `json:"restaurant"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	ImageURL string          `json:"image_url"`
}

// seedKey is one demo credential. The plaintext key lands in the logs on
// purpose: these are throwaway development keys.
type seedKey struct {
	id    string
	key   string
	name  string
	phone string
	role  auth.Role
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "", "path to catalog JSON file (default: embedded demo catalog)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PRATO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PRATO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), catalogFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKeys(ctx, postgres.NewAPIKeyRepository(pool), pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, catalogFile string) error {
	data := db.SeedCatalog
	if catalogFile != "" {
		slog.Info("reading catalog file", slog.String("path", catalogFile))
		var err error
		if data, err = os.ReadFile(catalogFile); err != nil {
			return errors.Wrap(err, "read catalog file")
		}
	}

	var items []productJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(items)))

	for _, item := range items {
		p := product.Product{
			ID: item.ID,
			Restaurant: product.Restaurant{
				Name:    item.Restaurant.Name,
				Address: item.Restaurant.Address,
				Phone:   item.Restaurant.Phone,
			},
			Name:     item.Name,
			Price:    item.Price,
			Category: item.Category,
			ImageURL: item.ImageURL,
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding demo coupons")

	coupons := []coupon.Rule{
		{
			Code:         "BEMVINDO10",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			Description:  "Boas-vindas: 10% de desconto",
		},
		{
			Code:         "FRETEGRATIS",
			DiscountType: coupon.DiscountFixed,
			Value:        decimal.RequireFromString("5.00"),
			Description:  "Desconto equivalente à taxa de entrega",
		},
		{
			Code:         "LEVE2",
			DiscountType: coupon.DiscountFreeLowest,
			Value:        decimal.Zero,
			MinItems:     2,
			Description:  "Item mais barato grátis a partir de 2 itens",
		},
	}

	for _, c := range coupons {
		if err := repo.Upsert(ctx, c, true); err != nil {
			return err
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, repo *postgres.APIKeyRepository, pepper string) error {
	slog.Info("seeding per-role API keys")

	keys := []seedKey{
		{id: "demo-customer", key: "dev-customer-key", name: "Carlos", phone: "11999999999", role: auth.RoleCustomer},
		{id: "demo-restaurant", key: "dev-restaurant-key", name: "Pizzaria Bella", phone: "1144445555", role: auth.RoleRestaurant},
		{id: "demo-courier", key: "dev-courier-key", name: "João", phone: "11888888888", role: auth.RoleCourier},
		{id: "demo-admin", key: "dev-admin-key", name: "Ops", role: auth.RoleAdmin},
	}

	for _, k := range keys {
		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(k.key))

		info := auth.APIKeyInfo{
			ID:      k.id,
			KeyHash: hex.EncodeToString(mac.Sum(nil)),
			Name:    k.name,
			Phone:   k.phone,
			Role:    k.role,
		}
		if err := repo.Insert(ctx, info); err != nil {
			return err
		}

		slog.Info("upserted API key",
			slog.String("id", k.id),
			slog.String("role", string(k.role)),
			slog.String("key", k.key))
	}

	return nil
}
