package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"pixelpipe/registry"
)

// ConsistentHashBalancer maps a source key onto a hash ring of sinks, so the same
// source keeps landing on the same sink while the sink set is stable.
//
// Each sink is placed on the ring replicas times ("addr#i") to even out the spread.
// The ring is rebuilt whenever Pick sees a different sink list.
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.Mutex
	ring  []uint32                         // sorted hash values
	nodes map[uint32]registry.SinkInstance // hash value → sink
	built string                           // fingerprint of the list the ring was built from
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per sink.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.SinkInstance),
	}
}

// Add places one sink on the ring.
func (b *ConsistentHashBalancer) Add(instance registry.SinkInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(instance)
	b.sortRing()
}

func (b *ConsistentHashBalancer) add(instance registry.SinkInstance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
}

func (b *ConsistentHashBalancer) sortRing() {
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

func (b *ConsistentHashBalancer) rebuild(instances []registry.SinkInstance) {
	fingerprint := ""
	for _, inst := range instances {
		fingerprint += inst.Addr + ","
	}
	if fingerprint == b.built {
		return
	}
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]registry.SinkInstance)
	for _, inst := range instances {
		b.add(inst)
	}
	b.sortRing()
	b.built = fingerprint
}

// Pick hashes key and walks clockwise to the first sink at or after it, wrapping at the end.
// A nil instances slice uses the sinks added with Add.
func (b *ConsistentHashBalancer) Pick(key string, instances []registry.SinkInstance) (*registry.SinkInstance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if instances != nil {
		if len(instances) == 0 {
			return nil, ErrNoInstances
		}
		b.rebuild(instances)
	}
	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
