// package services defines clients for the Igloo REST API
package services

import (
	"context"
)

// Requester is the subset of [APIService] the resource services depend on.
type Requester interface {
	// Do performs a request and decodes the JSON response into out.
	Do(ctx context.Context, method, path string, body, out any) error
	// URL returns the absolute URL for an API path.
	URL(path string) string
}

var _ Requester = (*APIService)(nil)
