// Package web embeds the browser-facing assets so the server ships as a
// single binary.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed static
var Static embed.FS
