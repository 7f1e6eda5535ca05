// Package webclient abstracts page fetching behind pluggable backends.
// The nethttp backend does plain HTTP; the chromedp backend drives a
// headless browser for pages that need rendering.
package webclient

import (
	"context"

	"github.com/sitesense/sitesense/internal/model"
)

type WebClient interface {
	Do(ctx context.Context, req *model.Request) (*model.Response, error)

	// Get is a convenience method for simple GET requests
	Get(ctx context.Context, url string) (*model.Response, error)

	Close() error
}
