package requests

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetRequest(ctx context.Context, id int64) (PurchaseRequest, error)
	ListItems(ctx context.Context, requestID int64) ([]Item, error)
	CreateRequest(ctx context.Context, pr PurchaseRequest) (PurchaseRequest, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
	UpdateRequestStatus(ctx context.Context, id int64, status Status) error
	CompleteRequest(ctx context.Context, id int64, by int64, at time.Time, notes string) error
	ReopenRequest(ctx context.Context, id int64, status Status) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const selectRequest = `SELECT id, requester_id, status, observations, admin_notes, completion_notes,
completed_by, completed_at, created_at, updated_at FROM purchase_requests WHERE id = $1`

const selectItems = `SELECT i.id, i.request_id, i.product_id, p.name, i.quantity, i.status, i.deadline,
i.admin_notes, i.suspension_reason, i.created_at
FROM request_items i
JOIN products p ON p.id = i.product_id`

// GetRequest returns a purchase request.
func (r *Repository) GetRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, selectRequest, id))
}

// GetItem returns one requested item.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, selectItems+` WHERE i.id = $1`, id))
}

// ListItems returns the items of a request ordered by id.
func (r *Repository) ListItems(ctx context.Context, requestID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, selectItems+` WHERE i.request_id = $1 ORDER BY i.id`, requestID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (t *txRepo) GetRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return scanRequest(t.tx.QueryRow(ctx, selectRequest+` FOR UPDATE`, id))
}

func (t *txRepo) ListItems(ctx context.Context, requestID int64) ([]Item, error) {
	rows, err := t.tx.Query(ctx, selectItems+` WHERE i.request_id = $1 ORDER BY i.id`, requestID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (t *txRepo) CreateRequest(ctx context.Context, pr PurchaseRequest) (PurchaseRequest, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_requests (requester_id, status, observations)
VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`, pr.RequesterID, pr.Status, pr.Observations).
		Scan(&pr.ID, &pr.CreatedAt, &pr.UpdatedAt)
	return pr, err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := t.tx.QueryRow(ctx, `WITH ins AS (
	INSERT INTO request_items (request_id, product_id, quantity, status, deadline)
	VALUES ($1, $2, $3, $4, $5) RETURNING id, product_id, created_at
)
SELECT ins.id, ins.created_at, p.name FROM ins JOIN products p ON p.id = ins.product_id`,
		item.RequestID, item.ProductID, item.Quantity, item.Status, item.Deadline).
		Scan(&item.ID, &item.CreatedAt, &item.ProductName)
	return item, err
}

func (t *txRepo) UpdateItem(ctx context.Context, item Item) error {
	return t.execOne(ctx, `UPDATE request_items SET product_id=$2, quantity=$3, status=$4, deadline=$5,
admin_notes=$6, suspension_reason=$7 WHERE id=$1`,
		item.ID, item.ProductID, item.Quantity, item.Status, item.Deadline, item.AdminNotes, item.SuspensionReason)
}

func (t *txRepo) DeleteItem(ctx context.Context, id int64) error {
	return t.execOne(ctx, `DELETE FROM request_items WHERE id=$1`, id)
}

func (t *txRepo) UpdateRequestStatus(ctx context.Context, id int64, status Status) error {
	return t.execOne(ctx, `UPDATE purchase_requests SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
}

func (t *txRepo) CompleteRequest(ctx context.Context, id int64, by int64, at time.Time, notes string) error {
	return t.execOne(ctx, `UPDATE purchase_requests SET status=$2, completed_by=$3, completed_at=$4,
completion_notes=$5, updated_at=NOW() WHERE id=$1`, id, StatusCompleted, by, at, notes)
}

func (t *txRepo) ReopenRequest(ctx context.Context, id int64, status Status) error {
	return t.execOne(ctx, `UPDATE purchase_requests SET status=$2, completed_by=NULL, completed_at=NULL,
updated_at=NOW() WHERE id=$1`, id, status)
}

func (t *txRepo) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRequest(row pgx.Row) (PurchaseRequest, error) {
	var pr PurchaseRequest
	err := row.Scan(&pr.ID, &pr.RequesterID, &pr.Status, &pr.Observations, &pr.AdminNotes, &pr.CompletionNotes,
		&pr.CompletedBy, &pr.CompletedAt, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRequest{}, ErrNotFound
		}
		return PurchaseRequest{}, err
	}
	return pr, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.RequestID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Status,
		&item.Deadline, &item.AdminNotes, &item.SuspensionReason, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
