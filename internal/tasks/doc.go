// Package tasks orchestrates ZyloFM workflows that touch several repositories or external services.
//
// # Moderation
//
// [Moderator] applies admin decisions: approving, rejecting and featuring mixes, resolving DJ
// requests and changing roles. Status changes follow [models.MixStatus] transitions and record
// the reviewer and review time.
//
// # Publishing
//
// [Publisher] accepts DJ uploads. Files are size-checked, their content type is sniffed from the
// first bytes rather than trusted from the client, and they are streamed to [services.MediaStorage].
// When a later step fails, media already uploaded is deleted again.
//
// # Station Probing
//
// [StationProber] checks active radio streams with a worker pool paced by a [rate.Limiter].
// Results are written back to the station row and reported over a progress channel.
// [StationProber.Watch] repeats the check on an interval for the server's lifetime.
//
// # Purging
//
// [Purger] deletes storage for mixes that have stayed rejected past a cutoff and soft-deletes them.
//
// # Progress Reporting
//
// Long-running operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
