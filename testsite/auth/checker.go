package auth

import (
	"context"
	"strings"

	"github.com/vx-labs/testsite/testsite"
	"github.com/vx-labs/testsite/testsite/stats"
	"go.uber.org/zap"
)

// Checker simulates a page authentication check. It never denies anything
// and must not be used as an access control.
type Checker struct {
	marker   string
	notifier Notifier
}

type Option func(*Checker)

func WithMarker(marker string) Option {
	return func(c *Checker) {
		if marker != "" {
			c.marker = marker
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Checker) {
		if n != nil {
			c.notifier = n
		}
	}
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		marker:   DefaultMarker,
		notifier: NoneNotifier(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) Marker() string { return c.marker }

// Evaluate checks path and emits one notice when it is protected.
func (c *Checker) Evaluate(ctx context.Context, path string) Decision {
	stats.PageChecks.Inc()
	protected := strings.Contains(path, c.marker)
	if protected {
		stats.ProtectedPageNotices.Inc()
		err := c.notifier.Notify(ctx, Notice{
			Path:      path,
			Message:   ProtectedPageMessage,
			LoadID:    LoadID(ctx),
			Timestamp: Clock(),
		})
		if err != nil {
			testsite.L(ctx).Warn("failed to emit protected page notice", zap.String("path", path), zap.Error(err))
		}
	}
	return Decision{
		Verdict:   Authenticated,
		Reason:    ReasonSimulated,
		Path:      path,
		Protected: protected,
	}
}

// CheckAuthentication always returns true.
func (c *Checker) CheckAuthentication(ctx context.Context, path string) bool {
	return c.Evaluate(ctx, path).Authenticated()
}

// Initialize runs the check for the page at loc and discards the result.
// Hosts call it once per page load, when the page is ready.
func (c *Checker) Initialize(ctx context.Context, loc Location) {
	c.CheckAuthentication(ctx, loc.Pathname())
}
