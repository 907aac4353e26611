package database

import (
	"context"

	"github.com/uptrace/bun"
)

// TxFunc runs inside a writer transaction. Every query in it must go through tx.
type TxFunc func(ctx context.Context, tx bun.Tx) error

// RunInTx executes fn in a transaction on the writer connection using the driver's
// default isolation level. The transaction is rolled back when fn returns an error or panics.
func (c *Connections) RunInTx(ctx context.Context, fn TxFunc) error {
	return c.Writer.RunInTx(ctx, nil, fn)
}
