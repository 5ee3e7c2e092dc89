// Package backup implements the backup, restore, and integrity engine.
//
// The package is organized leaf-first:
//
//   - Integrity computes and verifies SHA-256 checksums over files and buffers.
//   - Engine (compression) streams files through a codec (gzip by default,
//     zstd and lz4 optional) with partial-output cleanup on failure.
//   - Store owns the on-disk repository layout: one directory per backup
//     holding manifest.json and the data tree, plus the last-backup-timestamp
//     query that drives incremental inclusion.
//   - BackupEngine orchestrates a run: walks sources, applies exclude
//     patterns and the inclusion policy of the backup type, checksums and
//     compresses each file, and writes the manifest once all file work has
//     settled.
//   - RestoreEngine reads a manifest, detects conflicts against the live
//     filesystem, supports dry-run preview and selective restore, and can
//     take a pre-restore safety backup through the BackupEngine.
//
// All durable state lives under the configured backup directory
// (default ~/.backup-dr/backups). Manifests are written once and never
// mutated; restores only read them.
package backup
