package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

const ledgerColumns = `id, date, description, amount, vendor, source_id,
	transaction_id, payment_method, last_four_digits, currency, created_at`

const insertLedgerSQL = `INSERT INTO ledger
	(date, description, amount, vendor, source_id,
	 transaction_id, payment_method, last_four_digits, currency, created_at)
	VALUES (?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(source_id) DO NOTHING`

// LedgerRepo persists ledger records.
type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// InsertBatch writes records in one transaction. Records whose source id is
// already stored are left out; the returned count is the number of rows
// written. On error the transaction is rolled back and nothing is written.
func (r *LedgerRepo) InsertBatch(ctx context.Context, records []*domain.LedgerRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("InsertBatch: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertLedgerSQL)
	if err != nil {
		return 0, fmt.Errorf("InsertBatch: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	ids := make([]int64, len(records))
	for i, rec := range records {
		res, err := stmt.ExecContext(ctx, insertArgs(rec)...)
		if err != nil {
			return 0, fmt.Errorf("InsertBatch: insert row %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("InsertBatch: row %d id: %w", i, err)
		}
		ids[i] = id
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("InsertBatch: commit: %w", err)
	}

	for i, rec := range records {
		if ids[i] != 0 {
			rec.ID = ids[i]
		}
	}
	return inserted, nil
}

// Insert writes a single record and sets its ID. A record whose source id is
// already stored yields domain.ErrDuplicateSource.
func (r *LedgerRepo) Insert(ctx context.Context, rec *domain.LedgerRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, insertLedgerSQL, insertArgs(rec)...)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Insert: %w", domain.ErrDuplicateSource)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Insert: last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ExistsBySourceID reports whether a record with the given source id is stored.
func (r *LedgerRepo) ExistsBySourceID(ctx context.Context, sourceID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM ledger WHERE source_id = ? LIMIT 1`, sourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ExistsBySourceID: %w", err)
	}
	return true, nil
}

// ListSourceIDs returns every non-null source id.
func (r *LedgerRepo) ListSourceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source_id FROM ledger WHERE source_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("ListSourceIDs: query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListSourceIDs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSourceIDs: iterate: %w", err)
	}
	return ids, nil
}

// ListAll returns the whole ledger in insertion order.
func (r *LedgerRepo) ListAll(ctx context.Context) ([]domain.LedgerRecord, error) {
	return r.query(ctx, "ListAll", `SELECT `+ledgerColumns+` FROM ledger ORDER BY id`)
}

// List returns one page of the ledger, newest first.
func (r *LedgerRepo) List(ctx context.Context, limit, offset int) ([]domain.LedgerRecord, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	recs, err := r.query(ctx, "List",
		`SELECT `+ledgerColumns+` FROM ledger ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *LedgerRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.LedgerRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var recs []domain.LedgerRecord
	for rows.Next() {
		rec, err := scanLedgerRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return recs, nil
}

func insertArgs(rec *domain.LedgerRecord) []any {
	currency := rec.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return []any{
		rec.Date.String(),
		rec.Description,
		rec.Amount.String(),
		rec.Vendor,
		nullString(rec.SourceID),
		nullString(rec.TransactionID),
		nullString(rec.PaymentMethod),
		nullString(rec.LastFourDigits),
		currency,
		createdAt.Format(time.RFC3339Nano),
	}
}

func scanLedgerRecord(rows *sql.Rows) (*domain.LedgerRecord, error) {
	var (
		rec                              domain.LedgerRecord
		date, amount, createdAt          string
		sourceID, txID, method, lastFour sql.NullString
	)
	if err := rows.Scan(&rec.ID, &date, &rec.Description, &amount, &rec.Vendor,
		&sourceID, &txID, &method, &lastFour, &rec.Currency, &createdAt); err != nil {
		return nil, err
	}

	d, err := civil.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("record %d date %q: %w", rec.ID, date, err)
	}
	rec.Date = d

	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("record %d amount %q: %w", rec.ID, amount, err)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("record %d created_at %q: %w", rec.ID, createdAt, err)
	}

	rec.SourceID = ptrFromNull(sourceID)
	rec.TransactionID = ptrFromNull(txID)
	rec.PaymentMethod = ptrFromNull(method)
	rec.LastFourDigits = ptrFromNull(lastFour)
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
