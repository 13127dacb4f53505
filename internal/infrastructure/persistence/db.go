// Package persistence: Postgres-реализация портов хранилища на sqlx.
// Транзакция передаётся через context: все репозитории, вызванные внутри
// TxManager.WithinTransaction, работают в одной транзакции БД.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

const uniqueViolation = "23505"

type txKey struct{}

// querier: общее подмножество *sqlx.DB и *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type TxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTransaction выполняет fn в транзакции. Вложенный вызов переиспользует внешнюю.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Internal(err, "не удалось начать транзакцию")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.Internal(err, "не удалось зафиксировать транзакцию")
	}
	return nil
}

// conn возвращает транзакцию из ctx или пул соединений.
func conn(ctx context.Context, db *sqlx.DB) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// filter собирает WHERE с позиционными параметрами.
type filter struct {
	conds []string
	args  []interface{}
}

func (f *filter) add(cond string, arg interface{}) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(f.args))))
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// page добавляет LIMIT/OFFSET; limit <= 0 означает без ограничения.
func (f *filter) page(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		f.args = append(f.args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(f.args))
	}
	if offset > 0 {
		f.args = append(f.args, offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(f.args))
	}
	return b.String()
}
