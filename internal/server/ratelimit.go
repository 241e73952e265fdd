package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

const (
	// defaultRateLimit is the sustained token refill rate per client.
	defaultRateLimit = 10
	// defaultRateBurst is the bucket size per client.
	defaultRateBurst = 20

	// bucketIdleTTL is how long an unused client bucket is kept.
	bucketIdleTTL = 5 * time.Minute
	// sweepInterval is how often idle buckets are removed.
	sweepInterval = time.Minute
)

// Tokens charged per request. A question costs an embedding plus a
// generation call; ingestion embeds every passage of every document.
const (
	costRead   = 1
	costIngest = 4
	costAsk    = 5
)

// bucket is one client's token bucket.
type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// clientLimiter charges each /api request against a token bucket keyed by
// client address. Requests the bucket cannot cover get 429 with the exact
// wait in Retry-After.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rps   rate.Limit
	burst int
	// trustForwarded keys clients by the first X-Forwarded-For entry.
	trustForwarded bool
	// onReject is called with the handler name of every rejected request.
	onReject func(handler string)

	stop     chan struct{}
	stopOnce sync.Once
}

// newClientLimiter builds a limiter and starts its sweeper. The returned
// function stops the sweeper and may be called more than once.
func newClientLimiter(rps float64, burst int, trustForwarded bool) (*clientLimiter, func()) {
	cl := &clientLimiter{
		buckets:        make(map[string]*bucket),
		rps:            rate.Limit(rps),
		burst:          burst,
		trustForwarded: trustForwarded,
		stop:           make(chan struct{}),
	}
	go cl.sweepLoop()
	return cl, func() { cl.stopOnce.Do(func() { close(cl.stop) }) }
}

// reserve takes cost tokens from client's bucket at now. It reports false,
// with the time until the tokens would be available, when they are not.
func (cl *clientLimiter) reserve(client string, cost int, now time.Time) (bool, time.Duration) {
	cl.mu.Lock()
	b, ok := cl.buckets[client]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(cl.rps, cl.burst)}
		cl.buckets[client] = b
	}
	b.lastSeen = now
	cl.mu.Unlock()

	cost = min(cost, cl.burst)
	r := b.lim.ReserveN(now, cost)
	if !r.OK() {
		return false, sweepInterval
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// sweep drops buckets not used since now-bucketIdleTTL.
func (cl *clientLimiter) sweep(now time.Time) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for client, b := range cl.buckets {
		if now.Sub(b.lastSeen) > bucketIdleTTL {
			delete(cl.buckets, client)
		}
	}
}

func (cl *clientLimiter) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-cl.stop:
			return
		case now := <-t.C:
			cl.sweep(now)
		}
	}
}

// limit charges cost tokens for every request to next.
func (cl *clientLimiter) limit(handler string, cost int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r, cl.trustForwarded)
		ok, wait := cl.reserve(client, cost, time.Now())
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		secs := int(math.Ceil(wait.Seconds()))
		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("client", client),
			slog.String("handler", handler),
			slog.Int("cost", cost),
			slog.Int("retry_after_s", secs),
		)
		if cl.onReject != nil {
			cl.onReject(handler)
		}
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// clientAddr identifies the caller: the first X-Forwarded-For hop when
// trustForwarded is set, otherwise the host part of RemoteAddr.
func clientAddr(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
