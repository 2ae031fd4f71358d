// Package web provides embedded static assets for the web application.
package web

import "embed"

// StaticFS contains the embedded static assets.
//
//go:embed all:static
var StaticFS embed.FS
