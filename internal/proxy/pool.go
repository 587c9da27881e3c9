// Package proxy rotates upstream proxies across browser sessions.
package proxy

import (
	"sync"
	"time"
)

// failureCooldown is how long a proxy that broke a session is skipped.
const failureCooldown = 5 * time.Minute

// Pool hands out proxies round-robin, skipping ones that recently failed.
// Each new browser session takes one proxy for its whole lifetime, since a
// browser process cannot switch proxies mid-flight.
type Pool struct {
	proxies []string
	index   int
	mu      sync.Mutex
	failed  map[string]time.Time
}

// NewPool creates a pool over the given proxy URLs. An empty list is valid
// and yields a pool that always returns "".
func NewPool(proxies []string) *Pool {
	return &Pool{
		proxies: proxies,
		failed:  make(map[string]time.Time),
	}
}

// Next returns the next healthy proxy, or "" when the pool is empty. When
// every proxy is cooling down, the current one is returned anyway so new
// sessions are never blocked outright.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	start := p.index
	for {
		candidate := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		if failTime, ok := p.failed[candidate]; ok {
			if time.Since(failTime) < failureCooldown {
				if p.index == start {
					return candidate
				}
				continue
			}
			delete(p.failed, candidate)
		}

		return candidate
	}
}

// MarkFailed puts a proxy on cooldown so new sessions avoid it for a while.
func (p *Pool) MarkFailed(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = time.Now()
}

// MarkHealthy clears the failure status of a proxy.
func (p *Pool) MarkHealthy(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
