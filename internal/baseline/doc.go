// Package baseline stores aggregated run metrics keyed by scenario identity
// and compares new aggregates against them under fixed tolerances.
//
// Tolerances are per metric family:
//
//	coverage        fail if the value drops by more than 0.2 (absolute)
//	performance     fail if the value worsens by more than 50% (relative)
//	oracle rates    fail if the rate rises by more than 0.1 (absolute)
//	behavior rates  fail if the rate moves by more than 0.15 (absolute)
//
// A missing baseline compares as a pass with NoBaseline set.
package baseline
