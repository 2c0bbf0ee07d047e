// Package services defines shared utilities consumed by the workflow
// pipeline and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, clip sequence numbers, stage names,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job and clip outcomes (fatal vs per-clip vs quota).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the system.
package services
