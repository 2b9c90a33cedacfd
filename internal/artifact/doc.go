// Package artifact manages the stored source image that the display endpoint
// converts on demand.
//
// Producers replace the image with Publish, which writes a temporary file and
// renames it into place while holding a file lock, so readers either see the
// old image or the new one and never a partial write. Readers take no lock:
// the modification time they report may race with a concurrent publish, which
// is acceptable for a best-effort freshness check.
package artifact
