// Package oracle evaluates each turn against seven independent failure
// conditions: soft lock, budget violation, validator retries, fallback
// engagements, safety violation, performance violation and integrity
// violation.
//
// Every check reads only the current turn result, the pre-turn context and
// the detector's append-only history. Absent turn fields never raise a flag.
package oracle
