// Package web holds the embedded page templates and browser assets.
package web

import "embed"

// TemplatesFS holds the page templates and htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.js and app.css, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
