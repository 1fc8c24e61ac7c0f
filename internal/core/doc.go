// Package core turns the CMS specialty/taxonomy crosswalk into format tables.
//
// This package holds all domain logic independent of where the tables end up.
// It can be driven by the command in cmd/crosswalk or by tests without
// modification.
//
// # Pipeline
//
// A run is strictly linear:
//
//  1. [Fetcher] downloads the crosswalk CSV (one blocking GET, no retry)
//  2. [NewSourceReader] strips a byte order mark and decodes UTF-8
//  3. [ValidateHeader] rejects the run when the header changed upstream
//  4. [Cleaner] applies the row rules and threads the carry-forward state
//  5. [Accumulator] derives rows for every registered [FormatDefinition]
//  6. [Finalize] sorts and deduplicates each table
//  7. [WriteArtifact] writes the cleaned CSV, then a [Sink] receives the tables
//
// Nothing is written before step 3 succeeds and the whole source has been
// cleaned, so a schema change never leaves partial output behind.
//
// # Formats
//
// Format tables follow the (fmtname, start, label, type) layout of a format
// control data set. Three are registered at init time:
//
//   - rendspec: specialty code to specialty description
//   - taxrend:  taxonomy code to specialty code (carry-forward values)
//   - taxtype:  taxonomy code to taxonomy description
//
// # Error Handling
//
// Only a changed header ([ErrSchemaChanged]) and I/O failures stop a run.
// Technical errors are mapped to coded operator messages with [MapError].
package core
