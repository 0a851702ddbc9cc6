package event

import (
	"context"
	"sync/atomic"

	"github.com/erp/reconciliation/internal/domain/shared"
	"go.uber.org/zap"
)

// Publishers and handlers keep separate key namespaces so a process that
// both produces and consumes an event does not see its own publication as
// a duplicate delivery.
const (
	publishKeyPrefix = "publish:"
	consumeKeyPrefix = "consume:"
)

// IdempotencyStats counts dedupe outcomes
type IdempotencyStats struct {
	Processed  atomic.Int64
	Duplicates atomic.Int64
	Failed     atomic.Int64
}

// IdempotentHandler runs the wrapped handler at most once per DedupKey while
// the key is remembered. A failed run releases the key so redelivery retries it.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	cfg     shared.IdempotencyConfig
	logger  *zap.Logger
	stats   *IdempotencyStats
}

// NewIdempotentHandler wraps handler with dedupe on store
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, cfg shared.IdempotencyConfig, logger *zap.Logger) *IdempotentHandler {
	return &IdempotentHandler{handler: handler, store: store, cfg: cfg, logger: logger, stats: &IdempotencyStats{}}
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string { return h.handler.EventTypes() }

// Stats exposes the counters
func (h *IdempotentHandler) Stats() *IdempotencyStats { return h.stats }

// Handle processes e unless its DedupKey was already handled
func (h *IdempotentHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	if !h.cfg.Enabled {
		return h.handler.Handle(ctx, e)
	}
	key := consumeKeyPrefix + e.DedupKey()

	fresh, err := h.store.MarkProcessed(ctx, key, h.cfg.TTL)
	switch {
	case err != nil:
		h.logger.Warn("Idempotency store unavailable, handling anyway",
			zap.String("dedup_key", key),
			zap.Error(err),
		)
	case !fresh:
		h.stats.Duplicates.Add(1)
		h.logger.Debug("Duplicate event skipped", zap.String("dedup_key", key))
		return nil
	}

	if err := h.handler.Handle(ctx, e); err != nil {
		h.stats.Failed.Add(1)
		if relErr := h.store.Release(ctx, key); relErr != nil {
			h.logger.Warn("Failed to release dedupe key", zap.String("dedup_key", key), zap.Error(relErr))
		}
		return err
	}
	h.stats.Processed.Add(1)
	return nil
}

// IdempotentPublisher suppresses re-publication of an event whose DedupKey
// was already published, e.g. when a caller replays after a timeout.
type IdempotentPublisher struct {
	next   shared.EventPublisher
	store  shared.IdempotencyStore
	cfg    shared.IdempotencyConfig
	logger *zap.Logger
}

// NewIdempotentPublisher wraps next with dedupe on store
func NewIdempotentPublisher(next shared.EventPublisher, store shared.IdempotencyStore, cfg shared.IdempotencyConfig, logger *zap.Logger) *IdempotentPublisher {
	return &IdempotentPublisher{next: next, store: store, cfg: cfg, logger: logger}
}

// Publish forwards the events not seen before. If forwarding fails their keys
// are released so a later attempt is not suppressed.
func (p *IdempotentPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if !p.cfg.Enabled {
		return p.next.Publish(ctx, events...)
	}

	fresh := make([]shared.DomainEvent, 0, len(events))
	var claimed []string
	for _, e := range events {
		key := publishKeyPrefix + e.DedupKey()
		ok, err := p.store.MarkProcessed(ctx, key, p.cfg.TTL)
		if err != nil {
			p.logger.Warn("Idempotency store unavailable, publishing anyway",
				zap.String("dedup_key", key),
				zap.Error(err),
			)
			fresh = append(fresh, e)
			continue
		}
		if !ok {
			p.logger.Debug("Event already published", zap.String("dedup_key", key))
			continue
		}
		fresh = append(fresh, e)
		claimed = append(claimed, key)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := p.next.Publish(ctx, fresh...); err != nil {
		for _, key := range claimed {
			_ = p.store.Release(ctx, key)
		}
		return err
	}
	return nil
}

var (
	_ shared.EventHandler   = (*IdempotentHandler)(nil)
	_ shared.EventPublisher = (*IdempotentPublisher)(nil)
)
