// Package health implements liveness and readiness probes for the storefront
// API. Registered probes run in background goroutines on an interval and use
// consecutive failure/success thresholds so that a single slow database ping
// does not flip the service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Kind distinguishes liveness probes (is the process functional) from
// readiness probes (may the service receive traffic).
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// CheckFunc reports the health of one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Option tunes a registered probe.
type Option func(*probe)

// WithFailureThreshold sets how many consecutive failures flip a probe to
// unhealthy. Default 3.
func WithFailureThreshold(n int) Option {
	return func(p *probe) { p.failAfter = n }
}

// WithSuccessThreshold sets how many consecutive successes flip a probe back
// to healthy. Default 1.
func WithSuccessThreshold(n int) Option {
	return func(p *probe) { p.recoverAfter = n }
}

// probe is the runtime state of one registered check.
//
// tick() runs from a single goroutine, so the consecutive counters need no
// locking. healthy and lastErr are shared with HTTP handlers and use atomics.
type probe struct {
	name         string
	kind         Kind
	timeout      time.Duration
	fn           CheckFunc
	failAfter    int
	recoverAfter int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func (p *probe) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.failAfter {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.oks++
	if p.oks >= p.recoverAfter {
		p.healthy.Store(true)
	}
}

func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error(), true
	}
	return "check is unhealthy", true
}

// Service holds the registered probes. It starts not-ready; call
// MarkReady once initialization finishes and MarkDraining during shutdown
// so the load balancer stops routing before connections are cut.
type Service struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

func NewService() *Service {
	return &Service{}
}

// Register adds a probe. Probes registered after Run is called are not
// scheduled.
func (s *Service) Register(kind Kind, name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	p := &probe{
		name:         name,
		kind:         kind,
		timeout:      timeout,
		fn:           fn,
		failAfter:    3,
		recoverAfter: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	// Assume healthy until the first threshold breach.
	p.healthy.Store(true)

	s.mu.Lock()
	s.probes = append(s.probes, p)
	s.mu.Unlock()
}

// Run schedules every registered probe on its own ticker until ctx is
// cancelled or Stop is called. Each probe fires once immediately.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	probes := make([]*probe, len(s.probes))
	copy(probes, s.probes)
	s.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.tick(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.tick(ctx)
				}
			}
		}(p)
	}
}

// Stop cancels the probe goroutines. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// MarkReady flips the manual readiness gate on.
func (s *Service) MarkReady() { s.ready.Store(true) }

// MarkDraining flips the manual readiness gate off so /readyz starts failing
// ahead of shutdown.
func (s *Service) MarkDraining() { s.ready.Store(false) }

// Ready reports whether the service should accept traffic: the manual gate is
// set and every readiness probe is passing.
func (s *Service) Ready() bool {
	if !s.ready.Load() {
		return false
	}
	for _, p := range s.snapshot(Readiness) {
		if !p.healthy.Load() {
			return false
		}
	}
	return true
}

func (s *Service) snapshot(kind Kind) []*probe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*probe, 0, len(s.probes))
	for _, p := range s.probes {
		if p.kind == kind {
			out = append(out, p)
		}
	}
	return out
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler returns the HTTP endpoint for the given probe kind. Readiness
// additionally honors the manual gate set by MarkReady/MarkDraining.
func (s *Service) Handler(kind Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failures := make(map[string]string)
		for _, p := range s.snapshot(kind) {
			if msg, failed := p.failure(); failed {
				failures[p.name] = msg
			}
		}
		if kind == Readiness && !s.ready.Load() {
			failures["_gate"] = "service is not ready"
		}

		resp := probeResponse{Status: "ok"}
		code := http.StatusOK
		if len(failures) > 0 {
			resp.Status = "unhealthy"
			resp.Checks = failures
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		// Status code is already committed; an encode error here means the
		// client went away.
		_ = json.NewEncoder(w).Encode(resp)
	})
}
