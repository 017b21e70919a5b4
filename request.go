package pollstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jpalmerr/pollstream/internal/poller"
)

// RequestOptions describes the request a stream repeats on every poll.
//
// RequestOptions is fixed at construction. [Stream.Options] returns a copy.
type RequestOptions struct {
	// URI is the remote resource.
	URI string

	// Method is always GET.
	Method string

	// Header is sent with every request.
	Header http.Header

	// Query is merged into the URI's query string.
	Query url.Values

	// Timeout bounds each request.
	Timeout time.Duration
}

func (o RequestOptions) clone() RequestOptions {
	o.Header = o.Header.Clone()
	o.Query = cloneValues(o.Query)
	return o
}

// Response is what a [Fetcher] returns when the server answered.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher performs a single request. A non-nil error means no status code
// could be obtained (connection, protocol or timeout failure).
//
// Fetch is called from its own goroutine for every poll; implementations
// must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, opts RequestOptions) (Response, error)
}

// FetcherFunc adapts an ordinary function to the [Fetcher] interface.
type FetcherFunc func(ctx context.Context, opts RequestOptions) (Response, error)

// Fetch calls f(ctx, opts).
func (f FetcherFunc) Fetch(ctx context.Context, opts RequestOptions) (Response, error) {
	return f(ctx, opts)
}

// httpFetcher is the default Fetcher, backed by poller.Client.
type httpFetcher struct {
	client *poller.Client
}

func (h httpFetcher) Fetch(ctx context.Context, opts RequestOptions) (Response, error) {
	resp := h.client.Fetch(ctx, poller.Request{
		Method:  opts.Method,
		URL:     opts.URI,
		Header:  opts.Header,
		Query:   opts.Query,
		Timeout: opts.Timeout,
	})
	if resp.Error != nil {
		return Response{}, resp.Error
	}
	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// parseURI validates the target of a stream.
func parseURI(rawURI string) (string, error) {
	if rawURI == "" {
		return "", fmt.Errorf("%w: uri is required", ErrInvalidArgument)
	}
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("%w: invalid uri: %v", ErrInvalidArgument, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: uri scheme must be http or https, got %q", ErrInvalidArgument, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: uri must have a host", ErrInvalidArgument)
	}
	return rawURI, nil
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	cp := make(url.Values, len(v))
	for k, vs := range v {
		cp[k] = append([]string(nil), vs...)
	}
	return cp
}
