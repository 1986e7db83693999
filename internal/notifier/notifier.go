package notifier

import (
	"context"
	"fmt"
)

// Notifier delivers alert text to a messaging channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// NotifyError wraps a delivery failure. Callers log it and carry on; a failed
// notification never fails a sync.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string { return fmt.Sprintf("notify: %v", e.Err) }

func (e *NotifyError) Unwrap() error { return e.Err }
