package outbox

import (
	"context"
	"github.com/heartmarshall/journal-backend/internal/adapter/mailer"
	"github.com/heartmarshall/journal-backend/internal/domain"
	"sync"
)

var _ notifier = &notifierMock{}

type notifierMock struct {
	NotifyFunc func(ctx context.Context, in domain.Intent, rcpt *mailer.Recipient) error

	calls struct {
		Notify []struct {
			Ctx  context.Context
			In   domain.Intent
			Rcpt *mailer.Recipient
		}
	}
	lockNotify sync.RWMutex
}

func (mock *notifierMock) Notify(ctx context.Context, in domain.Intent, rcpt *mailer.Recipient) error {
	if mock.NotifyFunc == nil {
		panic("notifierMock.NotifyFunc: method is nil but notifier.Notify was just called")
	}
	callInfo := struct {
		Ctx  context.Context
		In   domain.Intent
		Rcpt *mailer.Recipient
	}{
		Ctx:  ctx,
		In:   in,
		Rcpt: rcpt,
	}
	mock.lockNotify.Lock()
	mock.calls.Notify = append(mock.calls.Notify, callInfo)
	mock.lockNotify.Unlock()
	return mock.NotifyFunc(ctx, in, rcpt)
}

func (mock *notifierMock) NotifyCalls() []struct {
	Ctx  context.Context
	In   domain.Intent
	Rcpt *mailer.Recipient
} {
	var calls []struct {
		Ctx  context.Context
		In   domain.Intent
		Rcpt *mailer.Recipient
	}
	mock.lockNotify.RLock()
	calls = mock.calls.Notify
	mock.lockNotify.RUnlock()
	return calls
}
