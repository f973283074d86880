package fetcher

import (
	"context"
	"sync"
	"time"
)

// Gate is the process-wide minimum-interval timer described in
// spec.md §5: "A single process-wide token bucket / minimum-gap timer
// governs all outbound requests". Wait blocks the caller until at
// least MinGap has elapsed since the previous successful Wait call
// returned, and admits waiters in arrival order (a ticket queue rather
// than relying on mutex scheduling, so FIFO holds even under bursts).
type Gate struct {
	minGap time.Duration

	mu       sync.Mutex
	next     time.Time
	tickets  []chan struct{}
	headOpen bool
}

// NewGate creates a rate gate enforcing at least minGap between
// successive admissions.
func NewGate(minGap time.Duration) *Gate {
	return &Gate{minGap: minGap}
}

// Wait blocks until it is this caller's turn and the minimum gap since
// the last admission has elapsed, or ctx is done first.
func (g *Gate) Wait(ctx context.Context) error {
	ticket := g.enqueue()

	select {
	case <-ticket:
	case <-ctx.Done():
		// Give up our place in line so later waiters are still admitted.
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, t := range g.tickets {
			if t == ticket {
				if i == 0 {
					g.advance()
				} else {
					g.tickets = append(g.tickets[:i], g.tickets[i+1:]...)
				}
				break
			}
		}
		return ctx.Err()
	}

	g.mu.Lock()
	now := time.Now()
	if now.Before(g.next) {
		wait := g.next.Sub(now)
		g.mu.Unlock()
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			g.mu.Lock()
			g.advance()
			g.mu.Unlock()
			return ctx.Err()
		}
		g.mu.Lock()
	}
	g.next = time.Now().Add(g.minGap)
	g.advance()
	g.mu.Unlock()

	return nil
}

// enqueue appends a new ticket to the FIFO queue and, if it is the only
// one waiting, opens it immediately.
func (g *Gate) enqueue() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	ticket := make(chan struct{}, 1)
	g.tickets = append(g.tickets, ticket)
	if len(g.tickets) == 1 {
		close(ticket)
	}
	return ticket
}

// advance pops the head ticket (the one just served) and opens the next
// one in line, preserving arrival order.
func (g *Gate) advance() {
	if len(g.tickets) == 0 {
		return
	}
	g.tickets = g.tickets[1:]
	if len(g.tickets) > 0 {
		close(g.tickets[0])
	}
}
