// Package protocol defines the API response envelopes and live-reload messages.
package protocol

import "github.com/fruitsalade/docbrowser/pkg/models"

// DataResponse wraps every successful JSON payload.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RenderResponse is the payload of GET /api/render/{project}/{path}.
type RenderResponse struct {
	HTML string            `json:"html"`
	TOC  []models.TocEntry `json:"toc"`
}

// Live-reload message types.
const (
	LiveReload      = "reload"
	LiveRefreshTree = "refresh-tree"
)

// LiveMessage is one frame on the live-reload channel.
type LiveMessage struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}
