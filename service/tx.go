package service

import (
	"context"
	"errors"
	"time"

	"dixis-bulk-orders/repository"
)

const retryBackoff = 25 * time.Millisecond

// runTx runs fn in a store transaction, retrying serialization failures and
// deadlocks up to attempts times
func runTx(ctx context.Context, store repository.StoreInterface, attempts int, fn func(tx repository.TxInterface) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, repository.ErrSerialization) || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}
