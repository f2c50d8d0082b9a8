// Package content defines the boundary to the narrative content engine and
// ships a deterministic synthetic engine for local batch runs.
//
// The harness never generates narrative content itself. It calls Start once
// per run to obtain the opening bundle and Turn once per decision.
package content
