// Package repositories implements SQL persistence for all ZyloFM entities over [sqlx.DB].
//
// Queries are written with ? placeholders and rebound for the active driver, so the same
// repositories run on SQLite and PostgreSQL. Unique and foreign key violations surface as
// [shared.ErrConflict]; missing rows surface as [shared.ErrNotFound].
//
// Key Implementations:
//   - [UserRepository] : accounts, email and provider lookups, role changes
//   - [MixRepository] : mixes with public listing, moderation status and play counts
//   - [GenreRepository], [BannerRepository], [StationRepository], [KaraokeRepository] : catalog
//   - [DJRequestRepository] : DJ applications with transactional approval
//
// Users and mixes are soft-deleted via deleted_at and excluded from queries by default.
// Catalog rows are deleted outright. The [NextSequence] function atomically increments
// per-table counters held in dedicated sequence tables.
package repositories
