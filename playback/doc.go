// Package playback replays precomputed algorithm traces one step at a time.
//
// # Reading Guide
//
// Start with these files:
//   - trace/trace.go: the Trace shape, wire decoding and validation
//   - trace/family.go: per-algorithm tag sets and the payload completeness check
//   - controller.go: the iteration state machine (Empty → Ready) and its View
//
// # Architecture
//
// The playback package owns navigation; everything else lives in sub-packages:
//   - playback/trace/: Trace Model, families, summaries, CSV export
//   - playback/fetch/: HTTP client for the trace service, metrics and spans
//   - playback/adapter/: chart-ready frames and PNG charts built from a View
//   - playback/observability/: OpenTelemetry tracer provider setup
//
// A Controller never performs I/O and never logs. Fetch results reach it through
// a Session, which discards responses superseded by a newer request.
package playback
