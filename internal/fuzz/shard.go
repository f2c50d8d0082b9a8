package fuzz

import "github.com/roach88/playtest/internal/sim"

// Partition assigns scenario i to shard i mod n, preserving order within
// each shard. n <= 0 is treated as 1.
func Partition(scenarios []sim.Scenario, n int) [][]sim.Scenario {
	if n <= 0 {
		n = 1
	}
	shards := make([][]sim.Scenario, n)
	for i, s := range scenarios {
		shards[i%n] = append(shards[i%n], s)
	}
	return shards
}
