package server

import "sync"

// subscriberBufferSize bounds how far a viewer may lag before it starts
// losing the oldest updates.
const subscriberBufferSize = 64

// Subscriber receives published messages on C until Close is called. A
// subscriber that stops reading loses its oldest queued messages; it never
// stalls the publisher.
type Subscriber struct {
	C chan []byte

	b    *Broadcaster
	once sync.Once
}

// Close detaches the subscriber. Safe to call more than once; C is closed
// once no publish can reach it.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.b.remove(s)
	})
}

// Broadcaster fans fresh messages out to every live viewer. Delivery is
// best-effort, at-most-once: viewers are live dashboards, not durable
// consumers.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscriber]struct{})}
}

// Subscribe attaches a new viewer.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan []byte, subscriberBufferSize), b: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers msg to every subscriber without blocking. When a
// subscriber's buffer is full its oldest queued message is dropped to make
// room for the new one.
func (b *Broadcaster) Publish(msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		for {
			select {
			case sub.C <- msg:
			default:
				// Lagging viewer: shed the oldest message and retry once.
				select {
				case <-sub.C:
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount reports how many viewers are attached.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	close(sub.C)
}
