// Package transport builds the rate-limited HTTP clients used by the hosting
// provider implementations.
package transport

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Options controls outgoing request pacing
type Options struct {
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Timeout           time.Duration `koanf:"timeout"`
}

// DefaultOptions allows 5 requests per second with a 30s per-request timeout
func DefaultOptions() Options {
	return Options{
		RequestsPerSecond: 5,
		Burst:             5,
		Timeout:           30 * time.Second,
	}
}

// NewLimiter returns a limiter for opts. A non-positive rate disables limiting.
func NewLimiter(opts Options) *rate.Limiter {
	if opts.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
}

// limitedTransport waits on the limiter before every request
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewClient returns an http.Client whose requests are paced by limiter.
// A nil limiter leaves requests unpaced.
func NewClient(opts Options, limiter *rate.Limiter) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if limiter != nil {
		rt = &limitedTransport{base: rt, limiter: limiter}
	}
	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
	}
}

// CloseIdle releases idle connections held by a client built with NewClient
func CloseIdle(c *http.Client) {
	if c != nil {
		c.CloseIdleConnections()
	}
}
