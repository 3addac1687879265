package analytics

import (
	"context"
	"database/sql"
	"sort"

	"go.uber.org/zap"
)

const upsertScoreQuery = `
	INSERT INTO product_cart_activity (product_id, score, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (product_id)
	DO UPDATE SET score = product_cart_activity.score + EXCLUDED.score, updated_at = now()
`

// Repository хранит веса в таблице product_cart_activity
//
//	CREATE TABLE product_cart_activity (
//		product_id TEXT PRIMARY KEY,
//		score      BIGINT NOT NULL DEFAULT 0,
//		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Repository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func NewRepository(db *sql.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) UpdateScores(ctx context.Context, weights map[string]int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	// фиксированный порядок строк, чтобы параллельные транзакции не ловили дедлок
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, productID := range ids {
		weight := weights[productID]
		if weight == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertScoreQuery, productID, weight); err != nil {
			r.logger.Errorf("failed to update score for %s: %v", productID, err)
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) TopProducts(ctx context.Context, limit int) ([]ProductScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, score
		FROM product_cart_activity
		WHERE score > 0
		ORDER BY score DESC, product_id
		LIMIT $1
	`, limit)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []ProductScore
	for rows.Next() {
		var ps ProductScore
		if err := rows.Scan(&ps.ProductID, &ps.Score); err != nil {
			return nil, err
		}
		top = append(top, ps)
	}

	return top, rows.Err()
}
