// Package fuzz orchestrates batch playtests.
//
// A batch partitions scenarios into shards by round-robin index, runs shards
// concurrently (bounded by MaxConcurrent) and, inside a shard, runs every
// (scenario, mode) pair strictly in order. Each pair gets its own bot engine,
// coverage tracker and oracle detector; nothing mutable is shared between
// shards. Results are collected per shard and merged after all shards join.
//
// Turn loop, per (scenario, mode):
//
//	check cancel / wall-clock timeout
//	decide -> content engine turn -> coverage update -> oracle check
//	-> memory/context update -> checkpoint every N turns
//	-> stop early on soft lock or budget violation
//
// Content engine and persistence errors are contained to the run that hit
// them. Persistence is best effort unless Options.Strict is set.
package fuzz
