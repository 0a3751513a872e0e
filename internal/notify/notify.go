// Package notify fans QC events out to chat platforms, the event bus and the
// log. Delivery is best-effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// Event kinds.
const (
	KindCertificateSubmitted = "certificate.submitted"
	KindCertificateApproved  = "certificate.approved"
	KindCertificateRejected  = "certificate.rejected"
	KindAlertPrefix          = "alert."
)

// Severities.
const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// Event is a QC occurrence worth telling people about.
type Event struct {
	Kind     string  `json:"kind"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	Severity string  `json:"severity"`
	Fields   []Field `json:"fields,omitempty"`
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"` // render side-by-side with another field
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Color maps the event severity to a sidebar color.
func (e Event) Color() string {
	switch e.Severity {
	case SeveritySuccess:
		return ColorSuccess
	case SeverityWarning:
		return ColorWarning
	case SeverityError:
		return ColorError
	default:
		return ColorInfo
	}
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes events to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a notifier that logs events.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Notify implements Notifier.
func (l *Log) Notify(_ context.Context, evt Event) error {
	fields := []zap.Field{zap.String("kind", evt.Kind), zap.String("severity", evt.Severity)}
	for _, f := range evt.Fields {
		fields = append(fields, zap.String(f.Name, f.Value))
	}
	l.logger.Info(evt.Title, fields...)
	return nil
}

// retryWithBackoff calls fn, retrying with exponential backoff while
// retryable reports true. It respects context cancellation.
func retryWithBackoff(ctx context.Context, base time.Duration, retryable func(error) (time.Duration, bool), fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		wait, ok := retryable(err)
		if !ok || attempt == maxRetries {
			return err
		}
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * base
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
