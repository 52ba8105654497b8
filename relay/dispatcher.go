package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultDispatchTimeout = 30 * time.Second

// Dispatcher runs best-effort side tasks in the background. Failures and
// panics are logged and never reach the caller.
type Dispatcher struct {
	timeout time.Duration
	logger  *logrus.Entry
	wg      sync.WaitGroup

	// OnResult, if set, is called with each task's name and outcome.
	OnResult func(name string, err error)
}

func NewDispatcher(logger *logrus.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		timeout: timeout,
		logger:  logger.WithField("pkg", "relay.Dispatcher"),
	}
}

// Go starts fn detached from ctx's cancellation but carrying its values.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		err := d.run(tctx, fn)
		if err != nil {
			d.logger.WithError(err).WithField("task", name).Warn("Background notification failed")
		} else {
			d.logger.WithField("task", name).Debug("Background notification delivered")
		}
		if d.OnResult != nil {
			d.OnResult(name, err)
		}
	}()
}

func (d *Dispatcher) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every dispatched task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
