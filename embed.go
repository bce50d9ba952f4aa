package pubfront

import "embed"

// EmbeddedAssets contains static assets shipped with the framework:
// style.css and favicon.svg.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
