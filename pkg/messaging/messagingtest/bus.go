// Package messagingtest provides an in-memory Bus for tests of packages that
// relay through pkg/messaging.
package messagingtest

import (
	"strings"
	"sync"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/messaging"
)

var _ messaging.Bus = (*MemoryBus)(nil)

// MemoryBus is an in-process messaging.Bus for tests, with NATS-style "*" and ">" wildcards
type MemoryBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]memorySub
}

type memorySub struct {
	pattern string
	handler messaging.Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]memorySub)}
}

// Publish delivers synchronously to every matching subscriber.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	handlers := make([]messaging.Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if SubjectMatches(s.pattern, subject) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(subject, data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(subject string, handler messaging.Handler) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = memorySub{pattern: subject, handler: handler}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

// SubjectMatches applies NATS token matching.
func SubjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
