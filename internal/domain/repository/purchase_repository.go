package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"testseries/internal/common"
	"testseries/internal/domain/model"
)

type PurchaseRepository interface {
	CreatePurchase(ctx context.Context, p *model.Purchase) error
	FindPurchaseByID(ctx context.Context, id string) (*model.Purchase, error)
	FindPurchaseByReference(ctx context.Context, reference string) (*model.Purchase, error)
	UpdatePurchaseStatus(ctx context.Context, p *model.Purchase) error
	ListByUser(ctx context.Context, userID string) ([]model.Purchase, error)
	ListPurchases(ctx context.Context, status string, limit, offset int) ([]model.Purchase, int, error)

	HasValidSeriesPurchase(ctx context.Context, userID, seriesID string, now time.Time) (bool, error)
	HasValidTestPurchase(ctx context.Context, userID, testID string, now time.Time) (bool, error)
	// HasValidPurchaseOfSeriesContaining reports a valid purchase of any
	// series that includes testID.
	HasValidPurchaseOfSeriesContaining(ctx context.Context, userID, testID string, now time.Time) (bool, error)
}

type pgPurchaseRepository struct {
	db *sql.DB
}

func NewPgPurchaseRepository(db *sql.DB) PurchaseRepository {
	return &pgPurchaseRepository{db: db}
}

const purchaseColumns = `id, user_id, series_id, test_id, amount, currency, status, access_granted,
	payment_reference, transaction_id, expires_at, created_at, updated_at`

// validPurchase mirrors model.Purchase.GrantsAccess.
const validPurchase = `status = 'completed' AND access_granted AND (expires_at IS NULL OR expires_at > $3)`

func scanPurchase(row interface{ Scan(...interface{}) error }, p *model.Purchase) error {
	return row.Scan(&p.ID, &p.UserID, &p.SeriesID, &p.TestID, &p.Amount, &p.Currency, &p.Status, &p.AccessGranted,
		&p.PaymentReference, &p.TransactionID, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
}

func (r *pgPurchaseRepository) CreatePurchase(ctx context.Context, p *model.Purchase) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO purchases (id, user_id, series_id, test_id, amount, currency, status, access_granted, payment_reference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.SeriesID, p.TestID, p.Amount, p.Currency, p.Status, p.AccessGranted, p.PaymentReference,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("duplicate payment reference: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgPurchaseRepository.CreatePurchase: %w", err)
	}
	return nil
}

func (r *pgPurchaseRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*model.Purchase, error) {
	p := &model.Purchase{}
	err := scanPurchase(r.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE `+where, arg), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgPurchaseRepository.%s: %w", op, err)
	}
	return p, nil
}

func (r *pgPurchaseRepository) FindPurchaseByID(ctx context.Context, id string) (*model.Purchase, error) {
	return r.findOne(ctx, "FindPurchaseByID", "id = $1", id)
}

func (r *pgPurchaseRepository) FindPurchaseByReference(ctx context.Context, reference string) (*model.Purchase, error) {
	return r.findOne(ctx, "FindPurchaseByReference", "payment_reference = $1", reference)
}

func (r *pgPurchaseRepository) UpdatePurchaseStatus(ctx context.Context, p *model.Purchase) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE purchases SET status = $1, access_granted = $2, transaction_id = $3, expires_at = $4,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5 RETURNING updated_at`,
		p.Status, p.AccessGranted, p.TransactionID, p.ExpiresAt, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgPurchaseRepository.UpdatePurchaseStatus: %w", err)
	}
	return nil
}

func (r *pgPurchaseRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]model.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgPurchaseRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	purchases := []model.Purchase{}
	for rows.Next() {
		var p model.Purchase
		if err := scanPurchase(rows, &p); err != nil {
			return nil, fmt.Errorf("pgPurchaseRepository.%s scan: %w", op, err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (r *pgPurchaseRepository) ListByUser(ctx context.Context, userID string) ([]model.Purchase, error) {
	return r.query(ctx, "ListByUser",
		`SELECT `+purchaseColumns+` FROM purchases WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *pgPurchaseRepository) ListPurchases(ctx context.Context, status string, limit, offset int) ([]model.Purchase, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE ($1 = '' OR status = $1)`, status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgPurchaseRepository.ListPurchases count: %w", err)
	}
	purchases, err := r.query(ctx, "ListPurchases",
		`SELECT `+purchaseColumns+` FROM purchases WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return purchases, total, nil
}

func (r *pgPurchaseRepository) exists(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("pgPurchaseRepository.%s: %w", op, err)
	}
	return ok, nil
}

func (r *pgPurchaseRepository) HasValidSeriesPurchase(ctx context.Context, userID, seriesID string, now time.Time) (bool, error) {
	return r.exists(ctx, "HasValidSeriesPurchase",
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND series_id = $2 AND `+validPurchase+`)`,
		userID, seriesID, now)
}

func (r *pgPurchaseRepository) HasValidTestPurchase(ctx context.Context, userID, testID string, now time.Time) (bool, error) {
	return r.exists(ctx, "HasValidTestPurchase",
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND test_id = $2 AND `+validPurchase+`)`,
		userID, testID, now)
}

func (r *pgPurchaseRepository) HasValidPurchaseOfSeriesContaining(ctx context.Context, userID, testID string, now time.Time) (bool, error) {
	return r.exists(ctx, "HasValidPurchaseOfSeriesContaining",
		`SELECT EXISTS (
		     SELECT 1 FROM purchases
		     WHERE user_id = $1
		       AND series_id IN (SELECT series_id FROM series_tests WHERE test_id = $2)
		       AND `+validPurchase+`)`,
		userID, testID, now)
}
