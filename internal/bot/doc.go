// Package bot implements the scripted players that drive a simulation.
//
// A Policy turns the current bundle, the run's Memory and the simulation
// context into one Decision per turn. Six policies exist, one per Mode. The
// Engine owns one instance of each (all seeded identically so replays build
// identical policy trees), dispatches to the requested mode, and is the only
// writer of Memory.
//
// Policies never mutate Memory and never share an RNG with anything else.
package bot
