package engine

import (
	"context"

	"tracking-server/internal/domain"
)

// event - все, что проходит через очередь сервиса:
// connectEvent, commandEvent, disconnectEvent, expiryFired, sweepEvent, queryEvent.
type event interface{}

type connectEvent struct {
	id    domain.ConnectionID
	info  ConnectInfo
	reply chan error // буферизован, цикл не блокируется
}

type commandEvent struct {
	name string // как прислал клиент, для логов
	cmd  domain.InternalCommand
}

type disconnectEvent struct {
	id     domain.ConnectionID
	reason string
}

type sweepEvent struct{}

// queryEvent выполняет чтение внутри цикла.
type queryEvent struct {
	run func()
}

func (s *Service) enqueue(ev event) error {
	select {
	case s.inbox <- ev:
		return nil
	case <-s.done:
		return ErrServiceStopped
	}
}

func (s *Service) enqueueCtx(ctx context.Context, ev event) error {
	select {
	case s.inbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrServiceStopped
	}
}

// ask выполняет fn в горутине сервиса и возвращает результат.
func ask[T any](ctx context.Context, s *Service, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	q := queryEvent{run: func() { reply <- fn() }}
	if err := s.enqueueCtx(ctx, q); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrServiceStopped
	}
}
