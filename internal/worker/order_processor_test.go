package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	testhelpers "github.com/polkiloo/vipm-fulfillment/internal/test"
)

func TestNewOrderProcessorDefaults(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	proc := NewOrderProcessor(&testhelpers.WorkerFacadeStub{}, time.Second, 0, 0, logger)
	if proc.batchSize != 1 {
		t.Fatalf("expected batch size default to 1, got %d", proc.batchSize)
	}
	if proc.workers != 1 {
		t.Fatalf("expected workers default to 1, got %d", proc.workers)
	}
}

func waitProcessed(t *testing.T, facade *testhelpers.WorkerFacadeStub, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for facade.ProcessedCount() < want {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %d passes, got %d", want, facade.ProcessedCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestOrderProcessorProcessesOrders(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	facade := &testhelpers.WorkerFacadeStub{Orders: [][]model.Order{{{ID: "ORD-1"}, {ID: "ORD-2"}}}}
	proc := NewOrderProcessor(facade, 10*time.Millisecond, 2, 2, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)

	waitProcessed(t, facade, 2)
	proc.Stop()

	facade.Lock()
	defer facade.Unlock()
	seen := map[string]bool{}
	for _, id := range facade.Processed {
		seen[id] = true
	}
	if !seen["ORD-1"] || !seen["ORD-2"] {
		t.Fatalf("expected both orders processed, got %v", facade.Processed)
	}
}

func TestOrderProcessorKeepsGoingAfterFailures(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	facade := &testhelpers.WorkerFacadeStub{
		Orders: [][]model.Order{{{ID: "ORD-1"}}, {{ID: "ORD-2"}}, {{ID: "ORD-3"}}},
		ProcessFn: func(_ context.Context, order *model.Order) error {
			switch order.ID {
			case "ORD-1":
				return domainErrors.ErrLocked
			case "ORD-2":
				return errors.New("marketplace unavailable")
			}
			return nil
		},
	}

	proc := NewOrderProcessor(facade, 5*time.Millisecond, 1, 1, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)

	waitProcessed(t, facade, 3)
	proc.Stop()
}

func TestOrderProcessorSurvivesFetchErrors(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	calls := 0
	facade := &testhelpers.WorkerFacadeStub{}
	facade.OrdersFn = func(context.Context, int) ([]model.Order, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("marketplace unavailable")
		}
		if calls == 2 {
			return []model.Order{{ID: "ORD-9"}}, nil
		}
		return nil, nil
	}

	proc := NewOrderProcessor(facade, 5*time.Millisecond, 1, 1, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)

	waitProcessed(t, facade, 1)
	proc.Stop()
}

func TestOrderProcessorDoesNotRequeueOrderInFlight(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	release := make(chan struct{})
	facade := &testhelpers.WorkerFacadeStub{
		OrdersFn: func(context.Context, int) ([]model.Order, error) {
			return []model.Order{{ID: "ORD-1"}}, nil
		},
		ProcessFn: func(ctx context.Context, _ *model.Order) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}

	proc := NewOrderProcessor(facade, 5*time.Millisecond, 1, 2, logger)
	proc.Start(context.Background())

	waitProcessed(t, facade, 1)
	time.Sleep(50 * time.Millisecond)
	if got := facade.ProcessedCount(); got != 1 {
		t.Fatalf("expected a single pass while the order is in flight, got %d", got)
	}

	close(release)
	waitProcessed(t, facade, 2)
	proc.Stop()
}

func TestOrderProcessorStopIsIdempotent(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	proc := NewOrderProcessor(&testhelpers.WorkerFacadeStub{}, time.Hour, 1, 1, logger)
	proc.Start(context.Background())
	proc.Stop()
	proc.Stop()
}
