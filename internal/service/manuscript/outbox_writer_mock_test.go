package manuscript

import (
	"context"
	"github.com/heartmarshall/journal-backend/internal/domain"
	"sync"
	"time"
)

var _ outboxWriter = &outboxWriterMock{}

type outboxWriterMock struct {
	EnqueueFunc func(ctx context.Context, intents []domain.Intent, now time.Time) error

	calls struct {
		Enqueue []struct {
			Ctx     context.Context
			Intents []domain.Intent
			Now     time.Time
		}
	}
	lockEnqueue sync.RWMutex
}

func (mock *outboxWriterMock) Enqueue(ctx context.Context, intents []domain.Intent, now time.Time) error {
	if mock.EnqueueFunc == nil {
		panic("outboxWriterMock.EnqueueFunc: method is nil but outboxWriter.Enqueue was just called")
	}
	callInfo := struct {
		Ctx     context.Context
		Intents []domain.Intent
		Now     time.Time
	}{
		Ctx:     ctx,
		Intents: intents,
		Now:     now,
	}
	mock.lockEnqueue.Lock()
	mock.calls.Enqueue = append(mock.calls.Enqueue, callInfo)
	mock.lockEnqueue.Unlock()
	return mock.EnqueueFunc(ctx, intents, now)
}

func (mock *outboxWriterMock) EnqueueCalls() []struct {
	Ctx     context.Context
	Intents []domain.Intent
	Now     time.Time
} {
	var calls []struct {
		Ctx     context.Context
		Intents []domain.Intent
		Now     time.Time
	}
	mock.lockEnqueue.RLock()
	calls = mock.calls.Enqueue
	mock.lockEnqueue.RUnlock()
	return calls
}
