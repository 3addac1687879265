package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	myErr "storefront-cart/internal/types/errors"
)

func setupRedis(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	logger := zaptest.NewLogger(t).Sugar()

	return NewRedisStorage(rdb, logger, ttl), mr
}

func TestRedisStorage_RoundTrip(t *testing.T) {
	rs, mr := setupRedis(t, 0)
	ctx := context.Background()

	_, err := rs.Get(ctx, "cart")
	assert.ErrorIs(t, err, myErr.ErrNotFound)

	require.NoError(t, rs.Set(ctx, "cart", []byte(`[{"product_id":"1"}]`)))

	got, err := rs.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"product_id":"1"}]`, string(got))

	// без ttl ключ живет бессрочно
	assert.Equal(t, time.Duration(0), mr.TTL("cart"))

	require.NoError(t, rs.Delete(ctx, "cart"))
	assert.False(t, mr.Exists("cart"))

	// повторное удаление не ошибка
	assert.NoError(t, rs.Delete(ctx, "cart"))
}

func TestRedisStorage_TTL(t *testing.T) {
	rs, mr := setupRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, rs.Set(ctx, "cart", []byte("[]")))
	assert.Equal(t, time.Hour, mr.TTL("cart"))

	mr.FastForward(2 * time.Hour)

	_, err := rs.Get(ctx, "cart")
	assert.ErrorIs(t, err, myErr.ErrNotFound)
}

func TestRedisStorage_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rs := NewRedisStorage(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zaptest.NewLogger(t).Sugar(), 0)
	mr.Close()

	_, err = rs.Get(context.Background(), "cart")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, myErr.ErrNotFound))

	assert.Error(t, rs.Set(context.Background(), "cart", []byte("[]")))
}

func TestPostgresStorage(t *testing.T) {
	const (
		selectQuery = "SELECT value FROM cart_storage WHERE key = $1"
		upsertQuery = "INSERT INTO cart_storage(key, value, updated_at) VALUES ($1, $2, now())"
		deleteQuery = "DELETE FROM cart_storage WHERE key = $1"
	)

	tests := []struct {
		name          string
		mockBehavior  func(mock sqlmock.Sqlmock)
		call          func(ps *PostgresStorage) ([]byte, error)
		expectedValue []byte
		expectedError error
		anyError      bool
	}{
		{
			name: "get existing",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"value"}).AddRow([]byte("[]"))
				mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).
					WithArgs("cart").
					WillReturnRows(rows)
			},
			call: func(ps *PostgresStorage) ([]byte, error) {
				return ps.Get(context.Background(), "cart")
			},
			expectedValue: []byte("[]"),
		},
		{
			name: "get missing",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).
					WithArgs("cart").
					WillReturnRows(sqlmock.NewRows([]string{"value"}))
			},
			call: func(ps *PostgresStorage) ([]byte, error) {
				return ps.Get(context.Background(), "cart")
			},
			expectedError: myErr.ErrNotFound,
		},
		{
			name: "get db error",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).
					WithArgs("cart").
					WillReturnError(errors.New("db failure"))
			},
			call: func(ps *PostgresStorage) ([]byte, error) {
				return ps.Get(context.Background(), "cart")
			},
			anyError: true,
		},
		{
			name: "set upsert",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
					WithArgs("cart", []byte("[]")).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			call: func(ps *PostgresStorage) ([]byte, error) {
				return nil, ps.Set(context.Background(), "cart", []byte("[]"))
			},
		},
		{
			name: "set db error",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
					WithArgs("cart", []byte("[]")).
					WillReturnError(errors.New("write failed"))
			},
			call: func(ps *PostgresStorage) ([]byte, error) {
				return nil, ps.Set(context.Background(), "cart", []byte("[]"))
			},
			anyError: true,
		},
		{
			name: "delete",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(deleteQuery)).
					WithArgs("cart").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			call: func(ps *PostgresStorage) ([]byte, error) {
				return nil, ps.Delete(context.Background(), "cart")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mockBehavior(mock)
			ps := NewPostgresStorage(db, zaptest.NewLogger(t).Sugar())

			value, err := tt.call(ps)
			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
			case tt.anyError:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedValue, value)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestScope_IsolatesKeys(t *testing.T) {
	base := NewMemoryStorage()
	ctx := context.Background()

	a := Scope(base, "a")
	b := Scope(base, "b")

	require.NoError(t, a.Set(ctx, "cart", []byte("A")))
	require.NoError(t, b.Set(ctx, "cart", []byte("B")))

	got, err := a.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "A", string(got))

	raw, err := base.Get(ctx, "cart-scope:b:cart")
	require.NoError(t, err)
	assert.Equal(t, "B", string(raw))

	require.NoError(t, a.Delete(ctx, "cart"))
	_, err = a.Get(ctx, "cart")
	assert.ErrorIs(t, err, myErr.ErrNotFound)

	_, err = b.Get(ctx, "cart")
	assert.NoError(t, err)
}

func TestMemoryStorage_CopiesValues(t *testing.T) {
	ms := NewMemoryStorage()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, ms.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := ms.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
