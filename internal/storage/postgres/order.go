package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/prato-delivery/internal/domain/order"
)

var _ order.Snapshotter = (*OrderSnapshotStore)(nil)

// OrderSnapshotStore persists the store's full order list in PostgreSQL, one
// row per order with list position preserved. Save replaces the whole table
// contents in a single transaction, matching the snapshot semantics of the
// in-memory store.
type OrderSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewOrderSnapshotStore returns an OrderSnapshotStore using the given pool.
func NewOrderSnapshotStore(pool *pgxpool.Pool) *OrderSnapshotStore {
	return &OrderSnapshotStore{pool: pool}
}

const loadOrdersSQL = `SELECT id, customer, restaurant, items, total, status,
	created_date, created_time, courier, notes, payment, delivery_fee, estimated_time
	FROM orders ORDER BY position`

// Load reads the persisted order list, oldest first.
func (s *OrderSnapshotStore) Load(ctx context.Context) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, loadOrdersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		var (
			o                           order.Order
			customer, restaurant, items []byte
			courier                     []byte
			total, fee                  decimal.Decimal
		)
		if err := rows.Scan(&o.ID, &customer, &restaurant, &items, &total, &o.Status,
			&o.CreatedDate, &o.CreatedTime, &courier, &o.Notes, &o.Payment, &fee, &o.EstimatedTime,
		); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}

		if err := json.Unmarshal(customer, &o.Customer); err != nil {
			return nil, errors.Wrapf(err, "decode customer of %q", o.ID)
		}
		if err := json.Unmarshal(restaurant, &o.Restaurant); err != nil {
			return nil, errors.Wrapf(err, "decode restaurant of %q", o.ID)
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, errors.Wrapf(err, "decode items of %q", o.ID)
		}
		if courier != nil {
			o.Courier = &order.Courier{}
			if err := json.Unmarshal(courier, o.Courier); err != nil {
				return nil, errors.Wrapf(err, "decode courier of %q", o.ID)
			}
		}
		o.Total = total
		o.DeliveryFee = fee
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}
	return orders, nil
}

const insertOrderSQL = `INSERT INTO orders (id, position, customer, restaurant, items,
	total, status, created_date, created_time, courier, notes, payment, delivery_fee, estimated_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// Save replaces the table contents with the given list.
func (s *OrderSnapshotStore) Save(ctx context.Context, orders []order.Order) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM orders`); err != nil {
		return errors.Wrap(err, "clear orders")
	}

	for i, o := range orders {
		customer, err := json.Marshal(o.Customer)
		if err != nil {
			return errors.Wrapf(err, "encode customer of %q", o.ID)
		}
		restaurant, err := json.Marshal(o.Restaurant)
		if err != nil {
			return errors.Wrapf(err, "encode restaurant of %q", o.ID)
		}
		items, err := json.Marshal(o.Items)
		if err != nil {
			return errors.Wrapf(err, "encode items of %q", o.ID)
		}
		var courier []byte
		if o.Courier != nil {
			if courier, err = json.Marshal(o.Courier); err != nil {
				return errors.Wrapf(err, "encode courier of %q", o.ID)
			}
		}

		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, i, customer, restaurant, items,
			o.Total, o.Status, o.CreatedDate, o.CreatedTime,
			courier, o.Notes, o.Payment, o.DeliveryFee, o.EstimatedTime,
		); err != nil {
			return errors.Wrapf(err, "insert order %q", o.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}
