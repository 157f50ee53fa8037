package notification

import "sync"

const subscriptionBuffer = 32

// Publisher receives every notification created by the fan-out.
type Publisher interface {
	Publish(notifications ...Notification)
}

// Subscription delivers the notifications of one recipient.
type Subscription struct {
	RecipientID string
	C           <-chan Notification

	c chan Notification
}

// Hub routes created notifications to the live subscriptions of their recipients.
// Slow subscribers drop notifications rather than block the fan-out.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{} // {recipientID: {sub}}
}

var _ Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(recipientID string) *Subscription {
	c := make(chan Notification, subscriptionBuffer)
	sub := &Subscription{RecipientID: recipientID, C: c, c: c}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[recipientID] == nil {
		h.subs[recipientID] = make(map[*Subscription]struct{})
	}
	h.subs[recipientID][sub] = struct{}{}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.RecipientID]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub.c)
		}
		if len(subs) == 0 {
			delete(h.subs, sub.RecipientID)
		}
	}
}

func (h *Hub) Publish(notifications ...Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, n := range notifications {
		for sub := range h.subs[n.RecipientID] {
			select {
			case sub.c <- n:
			default: // subscriber is lagging
			}
		}
	}
}

// Subscribers returns the number of live subscriptions of recipientID.
func (h *Hub) Subscribers(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[recipientID])
}
