package scanner

import (
	"fmt"

	"go.uber.org/zap"
)

// NoticeKind classifies an operator notice
type NoticeKind string

// Notice kinds
const (
	NoticeScanning    NoticeKind = "scanning"
	NoticeMismatch    NoticeKind = "mismatch"
	NoticePacked      NoticeKind = "packed"
	NoticeAlreadyDone NoticeKind = "already_packed"
	NoticeRetry       NoticeKind = "retry"
	NoticeError       NoticeKind = "error"
	NoticeCancelled   NoticeKind = "cancelled"
)

// Notice is something the operator should see
type Notice struct {
	Kind    NoticeKind
	Target  Target
	Scanned string
	Err     error
}

// Message renders the notice for display
func (n Notice) Message() string {
	switch n.Kind {
	case NoticeScanning:
		return fmt.Sprintf("Scan %s (%s)", n.Target.ProductName, n.Target.SKU)
	case NoticeMismatch:
		return fmt.Sprintf("Scanned %s, expected %s", n.Scanned, n.Target.SKU)
	case NoticePacked:
		return fmt.Sprintf("%s packed", n.Target.ProductName)
	case NoticeAlreadyDone:
		return fmt.Sprintf("%s was already packed", n.Target.ProductName)
	case NoticeRetry:
		return fmt.Sprintf("Could not pack %s, scan again: %v", n.Target.ProductName, n.Err)
	case NoticeCancelled:
		return "Scan cancelled"
	default:
		return fmt.Sprintf("Scanner error: %v", n.Err)
	}
}

// Notifier receives operator notices. Notify must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

// Notify implements Notifier
func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a zap logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (l *LogNotifier) Notify(n Notice) {
	fields := []zap.Field{
		zap.String("notice", string(n.Kind)),
		zap.String("order_number", n.Target.OrderNumber),
		zap.String("sku", n.Target.SKU),
	}
	if n.Scanned != "" {
		fields = append(fields, zap.String("scanned", n.Scanned))
	}
	switch n.Kind {
	case NoticeError, NoticeRetry:
		l.logger.Warn(n.Message(), append(fields, zap.Error(n.Err))...)
	default:
		l.logger.Info(n.Message(), fields...)
	}
}
