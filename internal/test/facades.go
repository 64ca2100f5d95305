package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// WorkerFacadeStub mimics worker interactions with the fulfillment facade.
type WorkerFacadeStub struct {
	Orders          [][]model.Order
	OrdersFn        func(context.Context, int) ([]model.Order, error)
	ProcessFn       func(context.Context, *model.Order) error
	Processed       []string
	mu              sync.Mutex
	ordersCallCount int32
}

// Lock exposes internal mutex for external synchronization.
func (s *WorkerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *WorkerFacadeStub) Unlock() { s.mu.Unlock() }

// OrdersForProcessing returns batches from configured queue.
func (s *WorkerFacadeStub) OrdersForProcessing(ctx context.Context, limit int) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.ordersCallCount, 1)
	if int(call) <= len(s.Orders) {
		return s.Orders[call-1], nil
	}
	time.Sleep(10 * time.Millisecond)
	return nil, nil
}

// ProcessOrder records the order id and delegates to ProcessFn when set.
func (s *WorkerFacadeStub) ProcessOrder(ctx context.Context, order *model.Order) error {
	s.mu.Lock()
	s.Processed = append(s.Processed, order.ID)
	s.mu.Unlock()
	if s.ProcessFn != nil {
		return s.ProcessFn(ctx, order)
	}
	return nil
}

// ProcessedCount returns the number of recorded passes.
func (s *WorkerFacadeStub) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Processed)
}
