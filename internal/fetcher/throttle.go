package fetcher

import (
	"context"
	"sync"
	"time"
)

// domainThrottle enforces a minimum gap between requests to the same host.
type domainThrottle struct {
	delay time.Duration
	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	mu    sync.Mutex
	last  time.Time
	delay time.Duration // per-host floor, e.g. robots.txt Crawl-delay
}

func newDomainThrottle(delay time.Duration) *domainThrottle {
	return &domainThrottle{delay: delay, hosts: make(map[string]*hostSlot)}
}

func (t *domainThrottle) slot(host string) *hostSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.hosts[host]
	if !ok {
		slot = &hostSlot{}
		t.hosts[host] = slot
	}
	return slot
}

// raise lifts the gap for host to at least d. It never lowers it.
func (t *domainThrottle) raise(host string, d time.Duration) {
	slot := t.slot(host)
	slot.mu.Lock()
	slot.delay = max(slot.delay, d)
	slot.mu.Unlock()
}

// wait blocks until host may be contacted again or ctx is done.
func (t *domainThrottle) wait(ctx context.Context, host string) error {
	slot := t.slot(host)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	delay := max(t.delay, slot.delay)
	if delay <= 0 {
		return ctx.Err()
	}
	if elapsed := time.Since(slot.last); elapsed < delay {
		timer := time.NewTimer(delay - elapsed)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	slot.last = time.Now()
	return nil
}
