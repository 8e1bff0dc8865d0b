package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// spyCopy records every batch it receives.
type spyCopy struct {
	mu      sync.Mutex
	batches [][][]any
	err     error
	failOn  int // 1-based batch index that returns err; 0 means never
}

func (s *spyCopy) fn(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([][]any, len(rows))
	copy(cp, rows)
	s.batches = append(s.batches, cp)
	if s.failOn > 0 && len(s.batches) == s.failOn {
		return 0, s.err
	}
	return int64(len(rows)), nil
}

func feed(rows ...[]any) <-chan []any {
	ch := make(chan []any, len(rows))
	for _, r := range rows {
		ch <- r
	}
	close(ch)
	return ch
}

func TestLoadBatches_BatchesAndFlushesRemainder(t *testing.T) {
	t.Parallel()

	spy := &spyCopy{}
	in := feed([]any{1}, []any{2}, []any{3}, []any{4}, []any{5})

	total, err := LoadBatches(context.Background(), []string{"n"}, in, 2, spy.fn)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(spy.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(spy.batches))
	}
	if len(spy.batches[0]) != 2 || len(spy.batches[2]) != 1 {
		t.Fatalf("batch sizes = %d,%d,%d", len(spy.batches[0]), len(spy.batches[1]), len(spy.batches[2]))
	}
}

func TestLoadBatches_EmptyInput(t *testing.T) {
	t.Parallel()

	spy := &spyCopy{}
	total, err := LoadBatches(context.Background(), []string{"n"}, feed(), 10, spy.fn)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if total != 0 || len(spy.batches) != 0 {
		t.Fatalf("total = %d batches = %d, want 0/0", total, len(spy.batches))
	}
}

func TestLoadBatches_CopyErrorStops(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("duplicate key")
	spy := &spyCopy{err: wantErr, failOn: 1}
	in := feed([]any{1}, []any{2}, []any{3})

	total, err := LoadBatches(context.Background(), []string{"n"}, in, 2, spy.fn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if total != 0 {
		t.Fatalf("total = %d, want 0", total)
	}
	if len(spy.batches) != 1 {
		t.Fatalf("batches = %d, want 1 (no batch after failure)", len(spy.batches))
	}
}

func TestLoadBatches_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan []any) // never closed, never fed
	spy := &spyCopy{}
	_, err := LoadBatches(ctx, []string{"n"}, in, 2, spy.fn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLoadBatches_ArgumentValidation(t *testing.T) {
	t.Parallel()

	spy := &spyCopy{}
	if _, err := LoadBatches(context.Background(), nil, feed(), 0, spy.fn); err == nil {
		t.Fatalf("expected error for batchSize 0")
	}
	if _, err := LoadBatches(context.Background(), nil, feed(), 1, nil); err == nil {
		t.Fatalf("expected error for nil copyFn")
	}
}
