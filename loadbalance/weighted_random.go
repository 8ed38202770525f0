package loadbalance

import (
	"math/rand/v2"

	"pixelpipe/registry"
)

// WeightedRandomBalancer picks a sink with probability proportional to its Weight.
// Sinks registered without a weight count as weight 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(_ string, instances []registry.SinkInstance) (*registry.SinkInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	totalWeight := 0
	for _, v := range instances {
		totalWeight += weightOf(v)
	}

	r := rand.IntN(totalWeight)
	for i := range instances {
		r -= weightOf(instances[i])
		if r < 0 {
			return &instances[i], nil
		}
	}
	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}

func weightOf(inst registry.SinkInstance) int {
	if inst.Weight <= 0 {
		return 1
	}
	return inst.Weight
}
