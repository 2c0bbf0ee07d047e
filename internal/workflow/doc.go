// Package workflow drives queued clip jobs through the processing pipeline.
//
// The Manager owns a single polling worker: it reclaims stale jobs, claims
// the oldest queued job, and hands it to the Orchestrator while a heartbeat
// goroutine keeps the claim fresh. The Orchestrator stages the source,
// optionally runs subject tracking, renders each segment independently, and
// settles the job from the folded batch state. One failed segment never
// sinks its siblings; a job only fails outright when its source cannot be
// staged or every segment fails.
package workflow
