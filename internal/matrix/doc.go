// Package matrix expands a scenario configuration into the full cross product
// of concrete scenarios.
//
// Enumeration order is fixed: worlds, adventures, locales, experiments,
// variations, toggle combinations, then seed index. Toggle combinations are
// enumerated with the first toggle outermost and each toggle's options in
// declared order. Seeds are derived from position, so the same Config always
// yields the same list in the same order.
package matrix
