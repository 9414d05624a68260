// Package async supervises the long running loops of the fixture server.
package async

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Runner is a background operation. It must return when ctx is cancelled; a
// non-nil error stops every other operation of the group.
type Runner func(ctx context.Context) error

// Operations is a group of named background operations sharing one
// cancellation scope.
type Operations struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger

	mtx sync.Mutex
	err error
}

func NewOperations(ctx context.Context, logger *zap.Logger) *Operations {
	ctx, cancel := context.WithCancel(ctx)
	return &Operations{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Context is cancelled when the group stops or one operation fails.
func (o *Operations) Context() context.Context {
	return o.ctx
}

// Run starts f in its own goroutine.
func (o *Operations) Run(name string, f Runner) {
	logger := o.logger.With(zap.String("operation_name", name))
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal("background operation crashed", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			}
		}()
		logger.Debug("background operation started")
		if err := f(o.ctx); err != nil {
			logger.Error("background operation failed", zap.Error(err))
			o.fail(err)
			return
		}
		logger.Debug("background operation stopped")
	}()
}

func (o *Operations) fail(err error) {
	o.mtx.Lock()
	if o.err == nil {
		o.err = err
	}
	o.mtx.Unlock()
	o.cancel()
}

// Stop cancels every operation, waits for them and returns the first failure.
func (o *Operations) Stop() error {
	o.cancel()
	o.wg.Wait()
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return o.err
}
