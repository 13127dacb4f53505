package repository

import "context"

// TxManager выполняет fn в одной транзакции хранилища. Транзакция передаётся через ctx,
// поэтому все репозитории, вызванные с этим ctx, работают в ней. Ошибка fn откатывает всё.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
