// Package web holds the HTML templates and static assets served by the
// lane pilot server.
package web

import "embed"

//go:embed templates static
var FS embed.FS
