package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Transport defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultTimeout     = 10 * time.Second

	maxResponseBytes = 8 * 1024 * 1024
)

// Mode is the transport used for one attempt.
type Mode int

const (
	ModeDirect Mode = iota
	ModeProxied
)

func (m Mode) String() string {
	if m == ModeProxied {
		return "proxied"
	}
	return "direct"
}

// TransportPolicy controls how one logical upstream operation is carried out:
// initial mode, attempt budget, backoff base and per-attempt timeout.
// It is a value: each call works on its own attempt state, so a downgrade in
// one operation never leaks into another.
type TransportPolicy struct {
	Proxy       ProxyConfig
	UseProxy    bool
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Limiter     *rate.Limiter // optional, awaited before every attempt
}

// Direct returns a copy of p that never uses the proxy.
func (p TransportPolicy) Direct() TransportPolicy {
	p.UseProxy = false
	return p
}

// InitialMode is the mode the first attempt of an operation uses.
func (p TransportPolicy) InitialMode() Mode {
	if p.UseProxy && p.Proxy.Usable() {
		return ModeProxied
	}
	return ModeDirect
}

func (p TransportPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p TransportPolicy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

func (p TransportPolicy) baseDelay() time.Duration {
	if p.BaseDelay < 0 {
		return 0
	}
	if p.BaseDelay == 0 {
		return DefaultBaseDelay
	}
	return p.BaseDelay
}

// Attempt records one try of a transport operation.
type Attempt struct {
	Mode   Mode
	Number int
	Status int
	Err    error
}

// Response is the payload of a successful operation plus its provenance.
type Response struct {
	Body      []byte
	Status    int
	Mode      Mode
	Attempts  int
	History   []Attempt
	ProxyUsed bool // true when any attempt went through the proxy
}

// RequestFunc builds the request for one attempt. It is called once per attempt
// with the attempt-scoped context.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// attemptState is the per-operation state machine: current mode plus history.
type attemptState struct {
	mode    Mode
	history []Attempt
}

func (s *attemptState) record(a Attempt) {
	s.history = append(s.history, a)
	if a.Err != nil && s.mode == ModeProxied {
		// one-way downgrade for the rest of this operation
		s.mode = ModeDirect
		metrics.ProxyDowngrades.Add(1)
		slog.Debug("transport: proxied attempt failed, switching to direct",
			slog.Int("attempt", a.Number), slog.Any("error", a.Err))
	}
}

func (s *attemptState) proxyUsed() bool {
	for _, a := range s.history {
		if a.Mode == ModeProxied {
			return true
		}
	}
	return false
}

// linearBackOff waits base × n before attempt n+1.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.base * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Do runs one logical operation under the policy. Attempts are strictly
// sequential. Network errors, timeouts and non-2xx statuses are retried;
// caller cancellation stops immediately. When the budget is spent the last
// error is returned inside an *ExhaustedError.
func (p TransportPolicy) Do(ctx context.Context, pool *ClientPool, build RequestFunc) (*Response, error) {
	st := &attemptState{mode: p.InitialMode()}

	operation := func() (*Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		mode := st.mode
		n := len(st.history) + 1
		metrics.UpstreamAttempts.Add(1)
		body, status, err := p.attempt(ctx, pool.For(mode, p.Proxy), build)
		st.record(Attempt{Mode: mode, Number: n, Status: status, Err: err})
		if err != nil {
			metrics.UpstreamFailures.Add(1)
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		return &Response{
			Body:      body,
			Status:    status,
			Mode:      mode,
			Attempts:  n,
			History:   st.history,
			ProxyUsed: st.proxyUsed(),
		}, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&linearBackOff{base: p.baseDelay()}),
		backoff.WithMaxTries(uint(p.attempts())),
	)
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("transport canceled after %d attempt(s): %w", len(st.history), ctxErr)
	}

	last := err
	mode := st.mode
	if len(st.history) > 0 {
		a := st.history[len(st.history)-1]
		mode = a.Mode
		if a.Err != nil {
			last = a.Err
		}
	}
	return nil, &ExhaustedError{
		Mode:     mode,
		Attempts: len(st.history),
		History:  st.history,
		Err:      last,
	}
}

// Get is Do for a plain GET of rawURL.
func (p TransportPolicy) Get(ctx context.Context, pool *ClientPool, rawURL string) (*Response, error) {
	return p.Do(ctx, pool, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

// attempt performs a single bounded request. The body is read before the
// attempt context is released.
func (p TransportPolicy) attempt(ctx context.Context, client *http.Client, build RequestFunc) ([]byte, int, error) {
	actx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	req, err := build(actx)
	if err != nil {
		return nil, 0, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	setBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// IsExhausted reports whether err came from a spent attempt budget and returns it.
func IsExhausted(err error) (*ExhaustedError, bool) {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

var (
	limiterMu sync.Mutex
	limiters  = map[float64]*rate.Limiter{}
)

// upstreamLimiter returns the process-wide limiter for rps, creating it once.
func upstreamLimiter(rps float64) *rate.Limiter {
	limiterMu.Lock()
	defer limiterMu.Unlock()
	if l, ok := limiters[rps]; ok {
		return l
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	limiters[rps] = l
	return l
}
