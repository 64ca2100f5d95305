package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// FulfillmentFacade exposes the subset of application functionality required by the worker.
type FulfillmentFacade interface {
	OrdersForProcessing(ctx context.Context, limit int) ([]model.Order, error)
	ProcessOrder(ctx context.Context, order *model.Order) error
}

// OrderProcessor polls the marketplace for processing orders and runs one
// fulfillment pass per order concurrently. An order stays in flight from
// dispatch until its pass returns and is not queued again meanwhile.
type OrderProcessor struct {
	facade       FulfillmentFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs   chan model.Order
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex

	flightMu sync.Mutex
	inFlight map[string]struct{}
}

// NewOrderProcessor constructs order processor worker pool.
func NewOrderProcessor(facade FulfillmentFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger) *OrderProcessor {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &OrderProcessor{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan model.Order, batchSize*workers),
		inFlight:     make(map[string]struct{}),
	}
}

// Start launches background processing.
func (p *OrderProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (p *OrderProcessor) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *OrderProcessor) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *OrderProcessor) fetchAndDispatch(ctx context.Context) {
	orders, err := p.facade.OrdersForProcessing(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("fetch orders for processing failed", slog.String("error", err.Error()))
		return
	}
	for _, order := range orders {
		if !p.claim(order.ID) {
			continue
		}
		select {
		case <-ctx.Done():
			p.release(order.ID)
			return
		case p.jobs <- order:
		}
	}
}

func (p *OrderProcessor) claim(orderID string) bool {
	p.flightMu.Lock()
	defer p.flightMu.Unlock()
	if _, busy := p.inFlight[orderID]; busy {
		return false
	}
	p.inFlight[orderID] = struct{}{}
	return true
}

func (p *OrderProcessor) release(orderID string) {
	p.flightMu.Lock()
	delete(p.inFlight, orderID)
	p.flightMu.Unlock()
}

func (p *OrderProcessor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleOrder(ctx, order)
		}
	}
}

func (p *OrderProcessor) handleOrder(ctx context.Context, order model.Order) {
	defer p.release(order.ID)
	err := p.facade.ProcessOrder(ctx, &order)
	switch {
	case err == nil:
	case errors.Is(err, domainErrors.ErrLocked):
		p.logger.Debug("order is processed elsewhere, skipping", slog.String("order", order.ID))
	case errors.Is(err, context.Canceled):
		p.logger.Info("order processing interrupted", slog.String("order", order.ID))
	default:
		p.logger.Error("order processing failed", slog.String("order", order.ID), slog.String("error", err.Error()))
	}
}
