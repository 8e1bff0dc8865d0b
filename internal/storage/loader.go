package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CopyFn is a backend's bulk-insert primitive. Rows are aligned to the
// columns order; the return value is the number of rows written. Currying
// Store.InsertRows with a table name satisfies it.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, flushing to copyFn every batchSize rows
// and once more for the remainder when in closes. It returns the total row
// count reported by copyFn; on cancellation it returns the running total
// with ctx.Err().
func LoadBatches(ctx context.Context, columns []string, in <-chan []any, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	p := &loadProgress{start: time.Now()}
	batch := make([][]any, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		p.total += n
		batch = batch[:0]
		if err != nil {
			log.Printf("loader: insert failed inserted=%d total=%d err=%v", n, p.total, err)
			return err
		}
		p.logFlush(n)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return p.total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				return p.total, flush()
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return p.total, err
				}
			}
		}
	}
}

// loadProgress tracks flush totals and emits one progress line per flush
// with instantaneous rows/sec.
type loadProgress struct {
	start     time.Time
	lastFlush time.Time
	lastTotal int64
	total     int64
	batches   int64
}

func (p *loadProgress) logFlush(n int64) {
	p.batches++
	now := time.Now()
	since := now.Sub(p.lastFlush)
	if p.lastFlush.IsZero() {
		since = now.Sub(p.start)
	}
	var rps float64
	if since > 0 {
		rps = float64(p.total-p.lastTotal) / since.Seconds()
	}
	log.Printf("batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
		p.batches, rps, n, p.total, now.Sub(p.start).Truncate(time.Millisecond))
	p.lastFlush = now
	p.lastTotal = p.total
}
