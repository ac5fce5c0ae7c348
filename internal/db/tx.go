package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// Runner executa funções dentro de transação explícita, propagando a
// transação pelo contexto para os repositórios.
type Runner struct {
	pool *pgxpool.Pool
}

// NewRunner cria o executor transacional sobre o pool.
func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

// WithinTx abre transação, executa fn e confirma em sucesso. Rollback é
// garantido em erro, panic ou cancelamento de contexto.
func (r *Runner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TxFromContext recupera a transação corrente, se houver.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}
