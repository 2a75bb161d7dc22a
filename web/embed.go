// Package web embeds the single-page front-end.
package web

import "embed"

// StaticFS holds index.html and its script and stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
