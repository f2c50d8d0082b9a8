// Package sim defines the data exchanged between the fuzz harness and the
// content engine it drives.
//
// The content engine is an external collaborator. Everything it reports is
// optional: a field the engine omits decodes to its Go zero value, and every
// consumer in this module treats zero/false/empty as "nothing happened".
package sim
