// Package server exposes the HTTP surface e-paper devices poll.
//
// GET /api/current_image answers with the stored source image converted for
// the configured panel (format=packed, the default), the stored bytes verbatim
// (format=image), or a paletted BMP (format=bmp). Conditional requests carrying
// If-Modified-Since short-circuit to 304 before any conversion work. The
// package also serves /api/status and /api/palette for operators, assigns
// every request an X-Request-ID, enforces an optional bearer token, and records
// deliveries to the history log when one is configured.
package server
