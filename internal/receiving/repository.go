package receiving

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the receipt ledger.
// The ledger is append-only: there is no update or delete.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error)
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

const receiptColumns = `r.id, r.item_id, r.quantity_received, r.rejected_quantity, r.invoice_number, r.invoice_date,
r.lot_number, r.expiration_date, r.supplier_id, r.notes, r.receipt_condition, r.quality_checked,
r.quality_notes, r.received_by, r.created_at`

func (t *txRepo) InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO item_receipts (item_id, quantity_received, rejected_quantity,
invoice_number, invoice_date, lot_number, expiration_date, supplier_id, notes, receipt_condition,
quality_checked, quality_notes, received_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, created_at`,
		receipt.ItemID, receipt.QuantityReceived, receipt.RejectedQuantity, receipt.InvoiceNumber,
		receipt.InvoiceDate, receipt.LotNumber, receipt.ExpirationDate, receipt.SupplierID, receipt.Notes,
		receipt.Condition, receipt.QualityChecked, receipt.QualityNotes, receipt.ReceivedBy,
	).Scan(&receipt.ID, &receipt.CreatedAt)
	if err != nil {
		return Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns an item's receipts oldest first.
func (r *Repository) ListReceipts(ctx context.Context, itemID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+receiptColumns+` FROM item_receipts r
WHERE r.item_id = $1 ORDER BY r.created_at, r.id`, itemID)
	if err != nil {
		return nil, err
	}
	return collectReceipts(rows)
}

// ListReceiptsByRequest returns every receipt of a request oldest first.
func (r *Repository) ListReceiptsByRequest(ctx context.Context, requestID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+receiptColumns+` FROM item_receipts r
JOIN request_items i ON i.id = r.item_id
WHERE i.request_id = $1 ORDER BY r.created_at, r.id`, requestID)
	if err != nil {
		return nil, err
	}
	return collectReceipts(rows)
}

// CountReceipts reports how many receipts reference an item.
func (r *Repository) CountReceipts(ctx context.Context, itemID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM item_receipts WHERE item_id = $1`, itemID).Scan(&count)
	return count, err
}

// ListExportRows returns receipts with display columns for the export.
func (r *Repository) ListExportRows(ctx context.Context, filter ExportFilter) ([]ExportRow, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.From != nil {
		add("r.created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("r.created_at < $%d", filter.To.Add(24*time.Hour))
	}
	if filter.SupplierID != nil {
		add("r.supplier_id = $%d", *filter.SupplierID)
	}
	if filter.RequestID != nil {
		add("i.request_id = $%d", *filter.RequestID)
	}
	query := `SELECT ` + receiptColumns + `, i.request_id, p.name, COALESCE(s.name, ''), COALESCE(u.name, '')
FROM item_receipts r
JOIN request_items i ON i.id = r.item_id
JOIN products p ON p.id = i.product_id
LEFT JOIN suppliers s ON s.id = r.supplier_id
LEFT JOIN users u ON u.id = r.received_by`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY r.created_at, r.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		dest := append(receiptDest(&row.Receipt), &row.RequestID, &row.ProductName, &row.SupplierName, &row.ReceivedByName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func receiptDest(r *Receipt) []any {
	return []any{&r.ID, &r.ItemID, &r.QuantityReceived, &r.RejectedQuantity, &r.InvoiceNumber, &r.InvoiceDate,
		&r.LotNumber, &r.ExpirationDate, &r.SupplierID, &r.Notes, &r.Condition, &r.QualityChecked,
		&r.QualityNotes, &r.ReceivedBy, &r.CreatedAt}
}

func collectReceipts(rows pgx.Rows) ([]Receipt, error) {
	defer rows.Close()
	var receipts []Receipt
	for rows.Next() {
		var receipt Receipt
		if err := rows.Scan(receiptDest(&receipt)...); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}
