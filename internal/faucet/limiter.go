package faucet

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// recipientLimiter applies a token bucket per recipient address so one
// wallet cannot drain the faucet identity.
type recipientLimiter struct {
	limit rate.Limit
	burst int

	mu     sync.Mutex
	byAddr map[common.Address]*rate.Limiter
}

func newRecipientLimiter(rps float64, burst int) *recipientLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &recipientLimiter{
		limit:  rate.Limit(rps),
		burst:  burst,
		byAddr: make(map[common.Address]*rate.Limiter),
	}
}

// allow reports whether one token can be consumed for the recipient. A nil
// limiter allows everything.
func (l *recipientLimiter) allow(addr common.Address, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.byAddr[addr]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.byAddr[addr] = limiter
	}
	return limiter.AllowN(now, 1)
}
