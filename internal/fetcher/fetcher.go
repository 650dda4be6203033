package fetcher

import (
	"context"
	"time"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Fetcher performs a single GET for a request.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL. Non-2xx
	// responses are reported as *types.FetchError.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Renderer executes a page's scripts and returns the resulting HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// HostDelayer is implemented by fetchers that space out requests per host.
// RaiseHostDelay lifts the gap for host to at least d.
type HostDelayer interface {
	RaiseHostDelay(host string, d time.Duration)
}
