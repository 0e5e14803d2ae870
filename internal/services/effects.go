package services

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sideEffects runs the post-commit work of a mutation: cache invalidation and event
// publication. Neither can fail the operation that triggered it.
type sideEffects struct {
	cache    Cache
	notifier Notifier
	log      *zap.Logger
}

func newSideEffects(cache Cache, notifier Notifier, log *zap.Logger) sideEffects {
	if cache == nil {
		cache = NopCache{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return sideEffects{cache: cache, notifier: notifier, log: log}
}

// after must only be called once the transaction has committed.
func (e sideEffects) after(ctx context.Context, patterns []string, events ...Event) {
	ctx = context.WithoutCancel(ctx)

	if len(patterns) > 0 {
		e.cache.Invalidate(ctx, patterns...)
	}
	for _, event := range events {
		if err := e.notifier.Publish(ctx, event); err != nil {
			e.log.Warn("failed to publish event",
				zap.String("event", event.Name),
				zap.Error(err))
		}
	}
}

// sortIDs orders ids so that rows of one table are always locked in the same sequence.
func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
