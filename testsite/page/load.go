// Package page simulates the lifecycle of a page load in the fixture site.
package page

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vx-labs/testsite/testsite/auth"
)

// ReadyFunc is called once the page content is loaded.
type ReadyFunc func(ctx context.Context, loc auth.Location)

// Load is a single page load. Its ready signal fires at most once.
type Load struct {
	ID       string
	location auth.Location

	mtx   sync.Mutex
	ready bool
	ctx   context.Context
	hooks []ReadyFunc
}

func NewLoad(loc auth.Location) *Load {
	return &Load{
		ID:       uuid.New().String(),
		location: loc,
	}
}

func (l *Load) Location() auth.Location { return l.location }

// OnReady registers fn. When the page is already ready, fn runs immediately.
func (l *Load) OnReady(fn ReadyFunc) {
	l.mtx.Lock()
	if !l.ready {
		l.hooks = append(l.hooks, fn)
		l.mtx.Unlock()
		return
	}
	ctx := l.ctx
	l.mtx.Unlock()
	fn(ctx, l.location)
}

// Ready fires the ready signal. It returns false if the signal already fired.
// Hooks see the load id through auth.LoadID.
func (l *Load) Ready(ctx context.Context) bool {
	ctx = auth.StoreLoadID(ctx, l.ID)
	l.mtx.Lock()
	if l.ready {
		l.mtx.Unlock()
		return false
	}
	l.ready = true
	l.ctx = ctx
	hooks := l.hooks
	l.hooks = nil
	l.mtx.Unlock()
	for _, fn := range hooks {
		fn(ctx, l.location)
	}
	return true
}
