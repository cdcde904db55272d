// Package authevents fans provider auth-state changes out to subscribers.
package authevents

import (
	"sync"

	domainauth "github.com/target/marketgate/internal/domain/auth"
)

// Broadcaster holds the current provider user and delivers every change to
// each subscriber in order, on one goroutine per subscriber. Publishing never
// blocks on a slow subscriber.
type Broadcaster struct {
	mu      sync.Mutex
	current *domainauth.ProviderUser
	subs    map[int]*subscriber
	nextID  int
}

// New returns an empty Broadcaster with no signed-in user.
func New() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*subscriber)}
}

// Current returns a copy of the signed-in user, or nil.
func (b *Broadcaster) Current() *domainauth.ProviderUser {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.current)
}

// Publish records u as the current user and notifies subscribers.
func (b *Broadcaster) Publish(u *domainauth.ProviderUser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = clone(u)
	for _, s := range b.subs {
		s.enqueue(clone(u))
	}
}

// Subscribe registers fn and immediately queues the current state for it.
// The returned func stops delivery; it is safe to call more than once.
func (b *Broadcaster) Subscribe(fn func(*domainauth.ProviderUser)) func() {
	s := &subscriber{wake: make(chan struct{}, 1), stop: make(chan struct{})}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	s.enqueue(clone(b.current))
	b.mu.Unlock()

	go s.run(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.stop)
		})
	}
}

type subscriber struct {
	mu    sync.Mutex
	queue []*domainauth.ProviderUser
	wake  chan struct{}
	stop  chan struct{}
}

func (s *subscriber) enqueue(u *domainauth.ProviderUser) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(fn func(*domainauth.ProviderUser)) {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			u := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.stop:
				return
			default:
			}
			fn(u)
		}
	}
}

func clone(u *domainauth.ProviderUser) *domainauth.ProviderUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
