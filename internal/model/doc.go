// Package model defines the record types persisted by cyclelog.
//
// The entity set is fixed:
//   - Answer: one user submission at a situation, the base fact table
//   - Cycle: one numbered pass through the workflow
//   - StateTransition: one contiguous interval spent in a situation
//   - UnconsciousPeriod: a rest interval between cycles
//   - Snapshot: an immutable copy of the answer log
//   - CycleContext: a historical answer pinned into a cycle
//   - TransitionCounter: how often a situation-to-situation edge fired
//
// # Time
//
// Timestamps are stored as ISO-8601 UTC strings with millisecond precision
// (see FormatTime). The fixed width keeps lexical and chronological order
// identical, so SQL ORDER BY on the TEXT column is correct.
//
// # Snapshot payloads
//
// Snapshot payloads are JSON envelopes carrying every answer plus a checksum
// computed over canonical JSON (RFC 8785 key ordering, NFC strings). See
// EncodePayload and DecodePayload.
package model
