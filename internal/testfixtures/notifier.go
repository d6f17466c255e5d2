package testfixtures

import "sync"

type Notification struct {
	Event   string
	Payload any
	UserIDs []string
}

// Notifier records every notification instead of delivering it.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *Notifier) Notify(event string, payload any, userIDs ...string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Event: event, Payload: payload, UserIDs: userIDs})
	return len(userIDs)
}

func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// Events returns the event names in send order.
func (n *Notifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Event)
	}
	return out
}
