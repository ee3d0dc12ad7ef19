// Package pipeline runs the layer packages over a whole capture.
//
// Each track is one work item. A bounded pool of workers takes tracks from
// a channel and runs the track's passes through synchronisation, decoding,
// fusion, a decode of the fused stream, sector voting and, on the
// reference track, protection detection. Everything a track needs is
// owned by its worker; the only shared state is the result list behind a
// mutex and a handful of atomic counters. Results are merged by track key,
// so completion order never shows in the report.
//
// The pipeline does not own domain logic; it delegates to l1flux through
// l6protection.
package pipeline
