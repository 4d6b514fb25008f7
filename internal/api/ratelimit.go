package api

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedOrgs bounds the limiter table; the least recently seen
// organization is evicted and starts with a full bucket if it returns.
const maxTrackedOrgs = 10000

// OrgLimiter enforces a token-bucket request rate per organization.
type OrgLimiter struct {
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewOrgLimiter creates a limiter allowing rps requests per second with the
// given burst for every organization.
func NewOrgLimiter(rps float64, burst int) *OrgLimiter {
	if burst < 1 {
		burst = 1
	}
	cache, _ := lru.New[string, *rate.Limiter](maxTrackedOrgs)
	return &OrgLimiter{rate: rate.Limit(rps), burst: burst, limiters: cache}
}

// Allow reports whether orgID may make one more request now. When it may
// not, retryAfter is the suggested wait in whole seconds.
func (l *OrgLimiter) Allow(orgID string) (ok bool, retryAfter int) {
	lim := l.limiter(orgID)
	if lim.Allow() {
		return true, 0
	}
	wait := 1.0
	if l.rate > 0 {
		wait = math.Ceil(1 / float64(l.rate))
	}
	return false, int(wait)
}

func (l *OrgLimiter) limiter(orgID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(orgID); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	l.limiters.Add(orgID, lim)
	return lim
}
