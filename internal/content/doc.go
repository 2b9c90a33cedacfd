// Package content defines the contract between image producers and the
// display pipeline.
//
// A Generator renders a source image for a device Target; Refresh encodes the
// result as PNG and publishes it to the artifact store, where the display
// endpoint picks it up on the next cache miss. Concrete generators that fetch
// remote content or render templates live outside this module; FileGenerator
// covers the manual "publish this file" case.
package content
