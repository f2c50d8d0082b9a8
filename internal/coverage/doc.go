// Package coverage accumulates six independent coverage dimensions over a
// run: quest-graph traversal, dialogue exposure, mechanics variety, economic
// activity, world-simulation events and extension hook usage.
//
// A Tracker is owned by exactly one run. Totals are taken from the first
// bundle seen and never revised afterwards; observed sets only grow. Every
// update appends an immutable Snapshot.
//
// Percentage rule, shared by all dimensions:
//
//	pct = min(covered/total, 1)   and   total == 0  =>  pct = 1
//
// Dimensions without a bundle-declared total use Estimates. These are
// calibration values, not measured counts.
package coverage
