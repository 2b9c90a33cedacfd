// Package history records every image delivery in a small SQLite database.
//
// Each row captures when a device polled, which format it asked for, whether
// the conditional request short-circuited, and how many bytes went out. The
// server writes rows best-effort; the CLI reads them back for `inkframe
// history` and prunes old rows to the configured retention.
package history
