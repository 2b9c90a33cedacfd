// Package codec turns an arbitrary source raster into the 4-bit indexed
// buffer a fixed-palette e-paper controller consumes.
//
// The pipeline runs in three stages, each producing a new value rather than
// mutating its input:
//
//   - Fit resamples the source to the device canvas using one deployment-wide
//     FitPolicy (exact or aspect-preserving, Lanczos resampling).
//   - Dither maps every pixel to a palette index, either with Floyd–Steinberg
//     error diffusion (ModeDiffusion) or independent nearest-colour lookup
//     (ModeFast). The modes produce visibly different output and are never
//     substituted for one another.
//   - Pack stores two indices per byte, high nibble first.
//
// All working buffers belong to a single Convert call, so a Converter may be
// shared by concurrent requests.
package codec
