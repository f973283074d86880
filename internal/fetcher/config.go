package fetcher

import (
	"fmt"
	"time"
)

// Config holds the configuration for the Origin Fetcher. It mirrors the
// shape of the teacher's ContentFetchConfig: security settings
// (redirect/body limits, private-IP denial), performance settings
// (timeouts, rate gate) and retry/circuit-breaker tuning, all collected
// in one place so a single Validate call can catch misconfiguration.
type Config struct {
	// UserAgent is sent on every outbound request. Defaults to a
	// desktop Chrome identity per spec.md §4.A.
	UserAgent string

	// MinGap is the minimum interval between any two outbound request
	// starts, process-wide. Default: 100ms.
	MinGap time.Duration

	// DiscoveryMinGap is the minimum interval enforced when the
	// request is issued by the Discovery Engine. Default: 200ms.
	DiscoveryMinGap time.Duration

	// Timeout is the connect+read timeout for a normal fetch.
	// Default: 10s.
	Timeout time.Duration

	// DiscoveryTimeout is the timeout used for discovery probes.
	// Default: 5s.
	DiscoveryTimeout time.Duration

	// MaxRedirects bounds how many redirects are followed. Default: 5.
	MaxRedirects int

	// MaxBodySize caps the response body in bytes. Default: 10MiB.
	MaxBodySize int64

	// MaxAttempts is the maximum number of retry attempts for
	// retryable failures. Default: 3.
	MaxAttempts int

	// BackoffBase is the base of the exponential backoff schedule
	// (BackoffBase * 2^(n-1)), capped at BackoffMax. Default: 1s.
	BackoffBase time.Duration

	// BackoffMax caps the backoff delay. Default: 5s.
	BackoffMax time.Duration

	// CircuitFailureThreshold is the number of consecutive failed calls
	// (permanent 4xx, 5xx after retries, network errors, timeouts) that
	// trips the per-URL circuit. Other 4xx statuses are returned as
	// ordinary bodies and do not count as failures. Default: 3.
	CircuitFailureThreshold uint32

	// CircuitOpenDuration is how long a tripped circuit stays open.
	// Default: 5m.
	CircuitOpenDuration time.Duration

	// DenyPrivateIPs blocks SSRF targets. Should always be true in
	// production. Default: true.
	DenyPrivateIPs bool
}

// DefaultConfig returns the production defaults from spec.md §4.A.
func DefaultConfig() Config {
	return Config{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		MinGap:                  100 * time.Millisecond,
		DiscoveryMinGap:         200 * time.Millisecond,
		Timeout:                 10 * time.Second,
		DiscoveryTimeout:        5 * time.Second,
		MaxRedirects:            5,
		MaxBodySize:             10 * 1024 * 1024,
		MaxAttempts:             3,
		BackoffBase:             1 * time.Second,
		BackoffMax:              5 * time.Second,
		CircuitFailureThreshold: 3,
		CircuitOpenDuration:     5 * time.Minute,
		DenyPrivateIPs:          true,
	}
}

// Validate checks the configuration for internally-consistent, safe
// values, matching the teacher's Validate-after-load discipline.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	minBody, maxBody := int64(1024), int64(100*1024*1024)
	if c.MaxBodySize < minBody || c.MaxBodySize > maxBody {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBody, maxBody, c.MaxBodySize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.CircuitFailureThreshold < 1 {
		return fmt.Errorf("circuit failure threshold must be >= 1, got %d", c.CircuitFailureThreshold)
	}
	return nil
}
