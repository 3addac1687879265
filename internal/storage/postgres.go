package storage

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	myErr "storefront-cart/internal/types/errors"
)

// PostgresStorage хранит корзины в таблице cart_storage
//
//	CREATE TABLE cart_storage (
//		key        TEXT PRIMARY KEY,
//		value      BYTEA NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStorage struct {
	DB     *sql.DB
	Logger *zap.SugaredLogger
}

func NewPostgresStorage(db *sql.DB, logger *zap.SugaredLogger) *PostgresStorage {
	return &PostgresStorage{
		DB:     db,
		Logger: logger,
	}
}

func (ps *PostgresStorage) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
	SELECT value FROM cart_storage
	WHERE key = $1
`
	var value []byte
	err := ps.DB.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, myErr.ErrNotFound
		}

		ps.Logger.Errorf("Ошибка при чтении ключа %s: %v", key, err)
		return nil, err
	}

	return value, nil
}

func (ps *PostgresStorage) Set(ctx context.Context, key string, value []byte) error {
	query := `
	INSERT INTO cart_storage(key, value, updated_at)
	VALUES ($1, $2, now()) ON CONFLICT (key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`
	if _, err := ps.DB.ExecContext(ctx, query, key, value); err != nil {
		ps.Logger.Errorf("Ошибка при записи ключа %s: %v", key, err)
		return err
	}

	return nil
}

func (ps *PostgresStorage) Delete(ctx context.Context, key string) error {
	query := `
	DELETE FROM cart_storage
	WHERE key = $1
`
	if _, err := ps.DB.ExecContext(ctx, query, key); err != nil {
		ps.Logger.Errorf("Ошибка при удалении ключа %s: %v", key, err)
		return err
	}

	return nil
}
