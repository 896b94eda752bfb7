package mockphone

import (
	"context"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Sink is an open load transaction against a store.
// Nothing inserted is visible to other readers until Commit succeeds.
type Sink interface {
	// Insert adds one row.
	Insert(ctx context.Context, value string) error
	// Commit makes every inserted row visible at once and releases the store.
	Commit() error
	// Rollback abandons the load and releases the store.
	// It must be safe to call after a failed Commit.
	Rollback() error
}

// OpenFunc opens a store, prepares it for bulk loading, ensures the
// target table exists and begins the transaction.
type OpenFunc func(ctx context.Context) (Sink, error)

// Consume is the writer: it opens a Sink, closes ready, inserts every value
// of every batch until batches is closed, then commits once.
// It returns the number of rows committed.
//
// Any error, including cancellation of ctx, rolls the load back.
// ready is left open if the Sink cannot be opened.
func Consume(ctx context.Context, open OpenFunc, batches <-chan Batch, ready chan<- struct{}) (rows int64, err error) {
	sink, err := open(ctx)
	if err != nil {
		return 0, errors.WithMessage(err, "open store")
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := sink.Rollback(); rbErr != nil {
			err = multierror.Append(err, rbErr)
		}
	}()
	close(ready)

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				// An aborted stream closes the channel too; never commit it.
				if err := ctx.Err(); err != nil {
					return 0, err
				}
				if err := sink.Commit(); err != nil {
					return 0, errors.WithMessage(err, "commit")
				}
				return rows, nil
			}
			for _, value := range batch {
				if err := sink.Insert(ctx, value); err != nil {
					return 0, errors.WithMessagef(err, "insert row %d", rows+1)
				}
				rows++
			}
		}
	}
}
