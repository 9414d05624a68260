package auth

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/vx-labs/testsite/testsite"
	"go.uber.org/zap"
)

type noneNotifier struct{}

func (noneNotifier) Notify(ctx context.Context, notice Notice) error { return nil }

func NoneNotifier() Notifier {
	return noneNotifier{}
}

type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, notice Notice) error {
	fields := []zap.Field{zap.String("path", notice.Path)}
	if notice.LoadID != "" {
		fields = append(fields, zap.String("load_id", notice.LoadID))
	}
	testsite.L(ctx).Info(notice.Message, fields...)
	return nil
}

// LogNotifier emits notices with the logger stored in the context.
func LogNotifier() Notifier {
	return logNotifier{}
}

type consoleNotifier struct {
	mtx sync.Mutex
	out io.Writer
}

func (c *consoleNotifier) Notify(ctx context.Context, notice Notice) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	_, err := fmt.Fprintln(c.out, notice.Message)
	return err
}

// ConsoleNotifier writes the bare message line to out, like a browser console.
func ConsoleNotifier(out io.Writer) Notifier {
	return &consoleNotifier{out: out}
}

type notifiers []Notifier

func (n notifiers) Notify(ctx context.Context, notice Notice) error {
	var failed []error
	for _, notifier := range n {
		if err := notifier.Notify(ctx, notice); err != nil {
			failed = append(failed, err)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return failed[0]
	default:
		return errors.Wrapf(failed[0], "%d notifiers failed", len(failed))
	}
}

// Notifiers fans a notice out to every channel.
func Notifiers(channels ...Notifier) Notifier {
	out := make(notifiers, 0, len(channels))
	for _, n := range channels {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
