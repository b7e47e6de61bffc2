package indexer

import (
	"context"
	"time"

	"castdex/internal/model"
)

// batchFetcher partitions large id sets into bounded chunks and drives a
// fetch function per chunk, sequentially, so the rate limiter sees a
// steady stream rather than a burst.
type batchFetcher struct {
	size    int
	delay   time.Duration
	partial bool

	sleep func(context.Context, time.Duration) error
}

func newBatchFetcher(size int, delay time.Duration, partial bool) *batchFetcher {
	return &batchFetcher{size: size, delay: delay, partial: partial, sleep: sleepCtx}
}

// fetch runs fn over consecutive chunks of at most size ids, in input
// order, concatenating results in chunk order. By default the first
// failing chunk aborts the whole call and prior results are discarded;
// in partial mode the results gathered so far are returned with the
// error left nil unless nothing succeeded.
func (b *batchFetcher) fetch(ctx context.Context, ids []uint64, fn func(context.Context, []uint64) ([]model.User, error)) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]model.User, 0, len(ids))
	for i := 0; i < len(ids); i += b.size {
		if i > 0 && b.delay > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				return nil, err
			}
		}
		end := i + b.size
		if end > len(ids) {
			end = len(ids)
		}
		users, err := fn(ctx, ids[i:end])
		if err != nil {
			if b.partial && len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
		out = append(out, users...)
	}
	return out, nil
}
