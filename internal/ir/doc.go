// Package ir provides canonical serialization and content-addressed digests
// for playtest records.
//
// ir imports nothing internal. Every digest that must be reproducible across
// processes (decision traces, scenario identities) goes through
// MarshalCanonical so that key order, string normalization and escaping are
// fixed regardless of how the value was built.
//
// Key design constraints:
//   - NO floats: callers format fractional values as fixed-precision strings
//   - NO null: absent values are omitted by the caller
//   - Object keys are sorted by UTF-16 code units (RFC 8785)
package ir
