package rate

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

// RateLimitError is returned when calls are blocked.
type RateLimitError struct {
	Provider string
	Reason   string
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s rate limited: %s (retry at %s)", e.Provider, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

type Decision struct {
	Allowed bool
	Reason  string
	RetryAt time.Time
}

// State tracks observed limits.
type State struct {
	remaining   map[Window]int
	limits      map[Window]int
	budgetFloor map[Window]int
	limiters    map[Window]*xrate.Limiter
	hasHeaders  map[Window]bool
	cooldown    time.Time
}

// Guard enforces a request budget for a provider. It never caches or
// replays responses and never retries; a blocked call fails immediately.
type Guard struct {
	decl Declaration
	mu   sync.Mutex
	// state is mutated under mu
	state State
}

// WrapHTTP wraps an http.Client with rate-limit enforcement.
func WrapHTTP(decl Declaration, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{
		base:  transport,
		guard: NewGuard(decl),
	}
	return &client
}

func NewGuard(decl Declaration) *Guard {
	state := State{
		remaining:   make(map[Window]int),
		limits:      make(map[Window]int),
		budgetFloor: make(map[Window]int),
		limiters:    make(map[Window]*xrate.Limiter),
		hasHeaders:  make(map[Window]bool),
	}
	for window, limit := range decl.Limits() {
		state.limits[window] = limit
		state.remaining[window] = limit
		if limit > 0 {
			every := windowDuration(window) / time.Duration(limit)
			state.limiters[window] = xrate.NewLimiter(xrate.Every(every), limit)
		}
	}
	for window, floor := range decl.BudgetFloors() {
		state.budgetFloor[window] = floor
	}

	return &Guard{decl: decl, state: state}
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	decision := rt.guard.ShouldCall(time.Now())
	if !decision.Allowed {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, RateLimitError{
			Provider: rt.guard.decl.ProviderName(),
			Reason:   decision.Reason,
			RetryAt:  decision.RetryAt,
		}
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	rt.guard.RecordResponse(resp.StatusCode, resp.Header)
	return resp, nil
}

func (g *Guard) ShouldCall(now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.decl.HasLimits() {
		return Decision{Allowed: false, Reason: "disabled"}
	}

	if !g.state.cooldown.IsZero() && now.Before(g.state.cooldown) {
		return Decision{Allowed: false, Reason: "cooldown", RetryAt: g.state.cooldown}
	}

	reservations := make([]*xrate.Reservation, 0, len(g.state.limits))
	cancelAll := func() {
		for _, r := range reservations {
			r.CancelAt(now)
		}
	}

	for window, limit := range g.state.limits {
		floor := g.state.budgetFloor[window]
		if g.state.hasHeaders[window] {
			if g.state.remaining[window] <= floor {
				cancelAll()
				return Decision{Allowed: false, Reason: "budget", RetryAt: g.state.cooldown}
			}
			continue
		}
		if limit <= 0 {
			cancelAll()
			return Decision{Allowed: false, Reason: "disabled"}
		}
		r := g.state.limiters[window].ReserveN(now, 1)
		if !r.OK() {
			cancelAll()
			return Decision{Allowed: false, Reason: "budget"}
		}
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			cancelAll()
			return Decision{Allowed: false, Reason: "budget", RetryAt: now.Add(delay)}
		}
		reservations = append(reservations, r)
	}

	for window := range g.state.limits {
		if g.state.hasHeaders[window] {
			g.state.remaining[window]--
		}
	}
	return Decision{Allowed: true}
}

func (g *Guard) RecordResponse(status int, headers http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lastStatusGauge.WithLabelValues(g.decl.ProviderName()).Set(float64(status))

	parsed := parseHeaders(headers, g.decl.Headers())
	now := time.Now()

	if parsed.retryAfter > 0 {
		g.state.cooldown = now.Add(time.Duration(parsed.retryAfter) * time.Second)
		retryAfterGauge.WithLabelValues(g.decl.ProviderName()).Set(float64(parsed.retryAfter))
	}
	if parsed.resetAfter > 0 && g.state.cooldown.IsZero() {
		g.state.cooldown = now.Add(time.Duration(parsed.resetAfter) * time.Second)
		retryAfterGauge.WithLabelValues(g.decl.ProviderName()).Set(float64(parsed.resetAfter))
	}

	updateWindow := func(window Window, remaining int, limit int) {
		if remaining < 0 {
			return
		}
		g.state.remaining[window] = remaining
		if limit >= 0 {
			g.state.limits[window] = limit
		}
		g.state.hasHeaders[window] = true
		remainingGauge.WithLabelValues(g.decl.ProviderName(), window.String()).Set(float64(remaining))
	}

	updateWindow(Minute, parsed.remainingMinute, parsed.limitMinute)
	updateWindow(Day, parsed.remainingDay, parsed.limitDay)
}

type parsedHeaders struct {
	limitMinute     int
	remainingMinute int
	limitDay        int
	remainingDay    int
	retryAfter      int
	resetAfter      int
}

func parseHeaders(h http.Header, cfg Headers) parsedHeaders {
	return parsedHeaders{
		limitMinute:     headerInt(h, cfg.LimitMinute),
		remainingMinute: headerInt(h, cfg.RemainingMinute),
		limitDay:        headerInt(h, cfg.LimitDay),
		remainingDay:    headerInt(h, cfg.RemainingDay),
		retryAfter:      headerInt(h, cfg.RetryAfter),
		resetAfter:      headerInt(h, cfg.ResetAfter),
	}
}

func headerInt(h http.Header, key string) int {
	if key == "" {
		return -1
	}
	val := h.Get(key)
	if val == "" {
		return -1
	}
	var out int
	if _, err := fmt.Sscanf(val, "%d", &out); err != nil {
		return -1
	}
	return out
}

func windowDuration(window Window) time.Duration {
	switch window {
	case Minute:
		return time.Minute
	case Day:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
