// Package loadbalance chooses which sink a source connects to when a stream has
// several registered sinks.
//
// Three strategies are implemented:
//   - RoundRobin:      spread sources evenly over identical sinks
//   - WeightedRandom:  sinks with different capacity
//   - ConsistentHash:  pin each source ID to the same sink across reconnects
package loadbalance

import (
	"errors"

	"pixelpipe/registry"
)

var ErrNoInstances = errors.New("loadbalance: no sink instances available")

// Balancer picks one sink from the list a registry returned.
type Balancer interface {
	// Pick must be safe for concurrent use. key identifies the source; strategies
	// that don't need it ignore it.
	Pick(key string, instances []registry.SinkInstance) (*registry.SinkInstance, error)

	// Name returns the strategy name for logging.
	Name() string
}

// New returns the balancer registered under name, or RoundRobin for an unknown name.
func New(name string) Balancer {
	switch name {
	case "weighted", "weighted_random":
		return &WeightedRandomBalancer{}
	case "hash", "consistent_hash":
		return NewConsistentHashBalancer()
	default:
		return &RoundRobinBalancer{}
	}
}
