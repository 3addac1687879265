package storage

import (
	"context"
	"strings"
)

// Storage долговременное key-value хранилище, в котором живет состояние корзины
//
//go:generate mockgen -source=storage.go -destination=../mocks/mock_storage.go -package=mocks
type Storage interface {
	// Get возвращает значение по ключу, ErrNotFound если ключа нет
	Get(ctx context.Context, key string) ([]byte, error)
	// Set записывает значение по ключу, перезаписывая старое
	Set(ctx context.Context, key string, value []byte) error
	// Delete удаляет ключ, отсутствие ключа ошибкой не считается
	Delete(ctx context.Context, key string) error
}

const scopePrefix = "cart-scope"

type scoped struct {
	base   Storage
	prefix string
}

// Scope изолирует ключи одной области корзины внутри общего хранилища
func Scope(base Storage, scope string) Storage {
	return &scoped{
		base:   base,
		prefix: strings.Join([]string{scopePrefix, scope}, ":") + ":",
	}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.base.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.base.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.base.Delete(ctx, s.prefix+key)
}
