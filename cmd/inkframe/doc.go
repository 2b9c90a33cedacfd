// Command inkframe serves e-paper ready images and manages the source image
// they are converted from.
//
// `inkframe serve` runs the HTTP server devices poll. `inkframe publish`
// replaces the stored source image, `inkframe convert` runs the conversion
// pipeline offline, and `inkframe history`, `inkframe palette` and
// `inkframe status` inspect local state. `inkframe config init|validate`
// manages the TOML configuration file.
package main
