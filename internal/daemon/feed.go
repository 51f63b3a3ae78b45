package daemon

import (
	"sync"

	"dailysync/internal/logger"
	"dailysync/internal/notify"

	"go.uber.org/zap"
)

// Feed is the notification surface of the daemon. Delivered notifications
// are logged, kept in a bounded history and forwarded to subscribers.
type Feed struct {
	mu      sync.Mutex
	recent  []notify.Notification
	limit   int
	publish func(notify.Notification)
}

func NewFeed(limit int, publish func(notify.Notification)) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{
		limit:   limit,
		publish: publish,
	}
}

func (f *Feed) Deliver(n notify.Notification) {
	fields := []zap.Field{
		zap.Uint("id", n.JobID),
		zap.String("message", n.Message),
	}
	if n.Level == notify.LevelError {
		logger.Log.Warn("notification", fields...)
	} else {
		logger.Log.Info("notification", fields...)
	}

	f.mu.Lock()
	f.recent = append(f.recent, n)
	if over := len(f.recent) - f.limit; over > 0 {
		f.recent = append(f.recent[:0:0], f.recent[over:]...)
	}
	f.mu.Unlock()

	if f.publish != nil {
		f.publish(n)
	}
}

// Recent returns delivered notifications, oldest first.
func (f *Feed) Recent() []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notification{}, f.recent...)
}
