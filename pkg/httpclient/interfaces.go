package httpclient

import "context"

// Response is the part of an HTTP response the relay's clients inspect.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts outbound GETs so the extractor and catalog adapters can be
// tested against fakes or httptest servers.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}
