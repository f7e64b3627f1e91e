package templates

import (
	"bytes"
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	HeaderProcessTime = "X-Process-Time"
	HeaderServerName  = "X-Server-Name"
	ServerName        = "Template Mock Server"
)

type FaultConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	// Seed of 0 draws a random seed.
	Seed uint64
}

func DefaultFaultConfig() FaultConfig {
	return FaultConfig{
		MinDelay:    50 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
		FailureRate: 0.10,
	}
}

// FaultInjector decides the artificial latency and random failures applied
// to requests. It is safe for concurrent use.
type FaultInjector struct {
	cfg FaultConfig

	mu  sync.Mutex
	rng *rand.Rand

	// Sleep blocks for d or until ctx ends. Tests swap it out to observe
	// delays without waiting for them.
	Sleep func(ctx context.Context, d time.Duration)

	delays prometheus.Histogram
	faults *prometheus.CounterVec
}

func NewFaultInjector(cfg FaultConfig) *FaultInjector {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &FaultInjector{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Sleep: sleepCtx,
	}
}

// Register exports injected delay and fault counts to reg.
func (f *FaultInjector) Register(reg prometheus.Registerer) {
	f.delays = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "templatemock_injected_delay_seconds",
		Help:    "Artificial latency added to responses",
		Buckets: prometheus.LinearBuckets(0.05, 0.05, 10),
	})
	f.faults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "templatemock_injected_faults_total",
		Help: "Responses replaced by a simulated server error",
	}, []string{"route"})
	reg.MustRegister(f.delays, f.faults)
}

// Delay draws uniformly from [MinDelay, MaxDelay).
func (f *FaultInjector) Delay() time.Duration {
	span := f.cfg.MaxDelay - f.cfg.MinDelay
	if span <= 0 {
		return f.cfg.MinDelay
	}

	f.mu.Lock()
	n := f.rng.Int64N(int64(span))
	f.mu.Unlock()

	return f.cfg.MinDelay + time.Duration(n)
}

// ShouldFail reports whether this request draws a simulated failure.
func (f *FaultInjector) ShouldFail() bool {
	if f.cfg.FailureRate <= 0 {
		return false
	}

	f.mu.Lock()
	p := f.rng.Float64()
	f.mu.Unlock()

	return p < f.cfg.FailureRate
}

func (f *FaultInjector) recordFault(route string) {
	if f.faults != nil {
		f.faults.WithLabelValues(route).Inc()
	}
}

// Latency runs the handler, holds its response back for a random delay and
// then delivers it with the timing headers set. The business logic itself
// is not delayed.
func (f *FaultInjector) Latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		buf := &bufferedResponse{header: make(http.Header)}
		next.ServeHTTP(buf, r)

		d := f.Delay()
		f.Sleep(r.Context(), d)
		if f.delays != nil {
			f.delays.Observe(d.Seconds())
		}

		h := w.Header()
		for k, v := range buf.header {
			h[k] = v
		}
		h.Set(HeaderProcessTime, strconv.FormatFloat(time.Since(start).Seconds(), 'f', -1, 64))
		h.Set(HeaderServerName, ServerName)

		w.WriteHeader(buf.statusCode())
		_, _ = w.Write(buf.body.Bytes())
	})
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

// sleepCtx parks the calling goroutine only, so other requests keep flowing.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
