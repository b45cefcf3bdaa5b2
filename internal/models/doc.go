// Package models defines the ZyloFM domain entities and persistence interfaces.
//
// Persistent entities embed [Record], which carries the UUID, per-table sequence number and
// lifecycle timestamps:
//   - [User] : listener, DJ and admin accounts
//   - [Mix] : DJ uploads moving through the [MixStatus] moderation states
//   - [Genre] : catalog grouping for mixes and stations
//   - [Banner] : home page promotions ordered by position
//   - [RadioStation] : live streams, progressive or HLS
//   - [KaraokeTrack] : sing-along tracks with lyrics
//   - [DJRequest] : a listener's application for the DJ role
//
// All entities implement [Model]; the generic [Repository] interface describes the CRUD surface
// each repository in internal/repositories provides.
package models
