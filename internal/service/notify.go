package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/config"
	"github.com/tradesmatepro/portal-identity/internal/metrics"
	"github.com/tradesmatepro/portal-identity/internal/model"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

// Notifier hands an email off to the delivery provider.
type Notifier interface {
	Notify(ctx context.Context, n model.EmailNotification) error
}

// Dispatcher hands emails to a Notifier on background goroutines so a request
// never waits on delivery. Sends in flight are tracked so the owner can drain
// them before closing the notifier's connections.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier, timeout: config.NotifyDispatchTimeout}
}

// Send queues n. Failures are logged and counted only.
func (d *Dispatcher) Send(ctx context.Context, n model.EmailNotification) {
	if d == nil || d.notifier == nil {
		log.Warn().Str("kind", string(n.Kind)).Msg("no notifier configured, email not sent")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.notifier.Notify(sendCtx, n); err != nil {
			metrics.NotificationFailures.WithLabelValues(string(n.Kind)).Inc()
			log.Error().
				Err(err).
				Str("kind", string(n.Kind)).
				Str("to", util.MaskEmail(n.To)).
				Msg("email hand-off failed")
		}
	}()
}

// Wait blocks until every queued send has finished or timeout elapses. It
// reports whether the queue drained.
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	if d == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("email hand-offs still in flight at shutdown")
		return false
	}
}
