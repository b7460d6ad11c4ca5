package guest

import (
	"context"
	"time"

	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/store"
)

// notifyPollFallback is how long Blocking waits for a notification-inserted
// broadcast before re-reading the database anyway, mirroring the claim
// loop's poll fallback: a NOTIFY delivered while nobody is subscribed yet
// is lost, and the in-process channel is lossy under load, so correctness
// depends only on the periodic re-read.
const notifyPollFallback = 2 * time.Second

// NotifyCapability lets a guest send an external notification to another
// task, and block waiting for the next one addressed to its own task.
// Unlike SQL and HTTP this is never an is_db transaction: the insert (or,
// for Blocking, the event append recording which notification was
// received) is itself the durable effect, recorded via the normal
// transaction_enter/exit pair that the guest places around the call;
// internal/driver only hands this capability to the guest.
type NotifyCapability interface {
	Notify(ctx context.Context, taskID int64, event string, data []byte) error
	// Blocking waits up to timeout for the next notification for taskID
	// created after since and returns it; the notification row is left in
	// place. ok is false (with a nil error) if none arrived before the
	// deadline.
	Blocking(ctx context.Context, taskID int64, since time.Time, timeout time.Duration) (event string, data []byte, ok bool, err error)
}

// engineNotifier adapts internal/engine.Engine.Notify (which returns a
// domain.Notification) to the narrower guest-visible signature, and
// answers Blocking from store.NotificationStore.Next plus the
// notification-inserted broadcast channel.
type engineNotifier struct {
	notify        func(ctx context.Context, taskID int64, event string, data []byte) error
	notifications store.NotificationStore
	listener      *eventsource.Listener
}

func NewNotifier(notify func(ctx context.Context, taskID int64, event string, data []byte) error, notifications store.NotificationStore, listener *eventsource.Listener) NotifyCapability {
	return &engineNotifier{notify: notify, notifications: notifications, listener: listener}
}

func (n *engineNotifier) Notify(ctx context.Context, taskID int64, event string, data []byte) error {
	return n.notify(ctx, taskID, event, data)
}

func (n *engineNotifier) Blocking(ctx context.Context, taskID int64, since time.Time, timeout time.Duration) (string, []byte, bool, error) {
	deadline := time.Now().Add(timeout)

	woken, unsub := n.listener.Subscribe(eventsource.ChannelNotificationInserted)
	defer unsub()

	for {
		notif, err := n.notifications.Next(dbctx.Context{Ctx: ctx}, taskID, since)
		if err != nil {
			return "", nil, false, err
		}
		if notif != nil {
			return notif.Event, notif.Data, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", nil, false, nil
		}
		wait := notifyPollFallback
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return "", nil, false, ctx.Err()
		case woke := <-woken:
			if woke != taskID {
				continue
			}
		case <-time.After(wait):
		}
	}
}
