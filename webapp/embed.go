// Package webapp provides the embedded single-page documentation UI.
package webapp

import "embed"

//go:embed index.html app.js style.css
var Assets embed.FS
