// Package palette defines the fixed reference colours an e-paper controller
// can render and the nearest-colour resolver used by the codec.
//
// Index assignment is part of the wire format: index i in a packed buffer
// means "palette entry i" to the display firmware, so a Palette must never be
// reordered without shipping a matching firmware decode table. Palettes are
// built once from configuration and are read-only afterwards, which makes
// them safe to share between concurrent conversions without locking.
package palette
