// Package web holds the embedded page templates and static assets.
package web

import "embed"

// TemplatesFS embeds the page templates. base.html and partials.html are
// shared by every page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
