// Package queue persists clip jobs and their per-clip results in SQLite and
// exposes helpers for driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-job recovery, cancel/retry transitions,
// and the owner clip counts consumed by the quota gate. Jobs capture
// progress, the validated processing options, and an aggregate error
// summary; clips capture each segment's terminal record.
//
// The database is treated as the single source of truth for job semantics.
// When you add new statuses or columns, update schema.sql and bump
// schemaVersion; users clear the database to adopt the new schema.
package queue
