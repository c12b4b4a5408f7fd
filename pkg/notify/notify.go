package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
)

// Level is the severity a notification is presented with.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// User-facing texts for the fixed failure classes.
const (
	MsgLoginRequired  = "Please log in to manage your cart"
	MsgVendorConflict = "Your cart has items from another vendor. Clear the cart first to add this item."
	MsgUnavailable    = "This item is currently unavailable"
	MsgGeneric        = "Something went wrong. Please try again."
)

// Backend messages containing one of these are limits the user hit, not
// failures, and are shown as warnings.
var warningMarkers = []string{"max quantity", "Only"}

// Notification is one message for the user.
type Notification struct {
	Level    Level
	Message  string
	Category errs.Category
}

// Notifier delivers notifications to whatever presents them.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Classify maps a failure to the notification the user should see.
func Classify(err error) Notification {
	category := errs.CategoryOf(err)
	n := Notification{Category: category}

	switch category {
	case errs.CategoryAuthRequired:
		n.Level, n.Message = Warning, MsgLoginRequired
	case errs.CategoryVendorConflict:
		n.Level, n.Message = Error, MsgVendorConflict
	case errs.CategoryUnavailable:
		n.Level, n.Message = Warning, MsgUnavailable
	case errs.CategoryBackendRejected:
		msg := errs.MessageOf(err)
		n.Level, n.Message = Error, msg
		for _, marker := range warningMarkers {
			if strings.Contains(msg, marker) {
				n.Level = Warning
				break
			}
		}
	case errs.CategoryPrecondition:
		n.Level, n.Message = Warning, errs.MessageOf(err)
		if n.Message == "" {
			n.Message = MsgGeneric
		}
	default:
		n.Level, n.Message = Error, MsgGeneric
	}
	return n
}

// LogNotifier writes notifications to a logger. It is the default when no
// presenter is wired.
type LogNotifier struct {
	Logger logger.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	log := l.Logger
	if log == nil {
		return
	}
	fields := map[string]interface{}{
		"level":    string(n.Level),
		"category": string(n.Category),
	}
	switch n.Level {
	case Error:
		log.Error(n.Message, fields)
	case Warning:
		log.Warn(n.Message, fields)
	default:
		log.Info(n.Message, fields)
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the notifications received so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }
