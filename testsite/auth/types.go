package auth

import (
	"context"
	"time"
)

// DefaultMarker is the path substring identifying a protected page.
const DefaultMarker = "/protected/"

// ProtectedPageMessage is the diagnostic emitted when a protected page is checked.
const ProtectedPageMessage = "🔒 Protected page - authentication would be checked here"

// ReasonSimulated is the only reason produced by Checker.
const ReasonSimulated = "simulated"

var Clock = time.Now

// Location exposes the active page path. Implementations must not change it
// while a check runs.
type Location interface {
	Pathname() string
}

// Path is a Location backed by a plain string.
type Path string

func (p Path) Pathname() string { return string(p) }

type Verdict string

const (
	Authenticated Verdict = "authenticated"
	Denied        Verdict = "denied"
	Unknown       Verdict = "unknown"
)

// Decision is the outcome of a page check.
type Decision struct {
	Verdict   Verdict
	Reason    string
	Path      string
	Protected bool
}

func (d Decision) Authenticated() bool {
	return d.Verdict == Authenticated
}

type Notice struct {
	Path      string    `json:"path"`
	Message   string    `json:"message"`
	LoadID    string    `json:"load_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type authContextKey string

const ctxLoadIDKey authContextKey = "load_id"

// StoreLoadID attaches the id of the page load being checked to ctx.
func StoreLoadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxLoadIDKey, id)
}

// LoadID returns the page load id stored in ctx, or "" outside a page load.
func LoadID(ctx context.Context) string {
	id, _ := ctx.Value(ctxLoadIDKey).(string)
	return id
}

// Notifier publishes diagnostic notices on an observability channel.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}
