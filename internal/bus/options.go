package bus

import (
	"time"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/dedup"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/retry"
)

// Options configures a Bus. Zero values are taken literally, so start from
// DefaultOptions when only a few fields need changing.
type Options struct {
	Retry          retry.Policy
	HandlerTimeout time.Duration
	DedupSize      int
	DedupWindow    time.Duration
	// MaxConcurrency bounds handler attempts running at once. 0 = unbounded.
	MaxConcurrency int
	Observer       DeliveryObserver
}

func DefaultOptions() Options {
	return Options{
		Retry:          retry.DefaultPolicy(),
		HandlerTimeout: 30 * time.Second,
		DedupSize:      dedup.DefaultSize,
		DedupWindow:    dedup.DefaultWindow,
		MaxConcurrency: 256,
	}
}

type publishConfig struct {
	fingerprint string
}

// PublishOption customizes a single Publish call.
type PublishOption func(*publishConfig)

// WithFingerprint overrides the computed dedup fingerprint.
func WithFingerprint(fp string) PublishOption {
	return func(c *publishConfig) {
		c.fingerprint = fp
	}
}
