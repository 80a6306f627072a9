package bus

import "sync/atomic"

// Metrics is a point-in-time snapshot of the bus counters.
type Metrics struct {
	Published    uint64 `json:"published"`
	Delivered    uint64 `json:"delivered"`
	Failed       uint64 `json:"failed"`
	Deduplicated uint64 `json:"deduplicated"`
}

type counters struct {
	published    atomic.Uint64
	delivered    atomic.Uint64
	failed       atomic.Uint64
	deduplicated atomic.Uint64
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Published:    c.published.Load(),
		Delivered:    c.delivered.Load(),
		Failed:       c.failed.Load(),
		Deduplicated: c.deduplicated.Load(),
	}
}

// DeliveryState is the lifecycle position of one (event, subscriber) delivery.
type DeliveryState string

const (
	StatePending    DeliveryState = "pending"
	StateAttempting DeliveryState = "attempting"
	StateRetrying   DeliveryState = "retrying"
	StateDelivered  DeliveryState = "delivered"
	StateFailed     DeliveryState = "failed"
)

// Terminal reports whether no further transitions follow.
func (s DeliveryState) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}

// Delivery describes a state transition of one delivery.
type Delivery struct {
	SubscriptionID string
	EventType      string
	TenantID       string
	Fingerprint    string
	Attempt        int
	State          DeliveryState
	Err            error
}

// DeliveryObserver is called synchronously on the delivery goroutine for
// every transition. It must be safe for concurrent use and must not block.
type DeliveryObserver func(Delivery)
