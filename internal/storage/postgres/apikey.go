package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/prato-delivery/internal/domain/auth"
)

// ErrKeyNotFound is returned when no API key matches the given hash.
var ErrKeyNotFound = errors.New("api key not found")

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up a key record by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var info auth.APIKeyInfo
	err := r.pool.QueryRow(ctx,
		`SELECT id, key_hash, name, phone, role FROM api_keys WHERE key_hash = $1`,
		hash,
	).Scan(&info.ID, &info.KeyHash, &info.Name, &info.Phone, &info.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Wrap(err, "find api key")
	}
	return &info, nil
}

// Insert stores a new key record. Used by the seeder.
func (r *APIKeyRepository) Insert(ctx context.Context, info auth.APIKeyInfo) error {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, key_hash, name, phone, role) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key_hash) DO NOTHING`,
		info.ID, info.KeyHash, info.Name, info.Phone, info.Role,
	); err != nil {
		return errors.Wrapf(err, "insert api key for %q", info.Name)
	}
	return nil
}
