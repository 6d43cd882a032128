package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxFetchBody caps how much of a proxied response is read.
const maxFetchBody = 8 << 20

// FetchResult is a completed proxied HTTP exchange.
type FetchResult struct {
	Status int
	Body   []byte
}

// Fetcher performs a proxied request on behalf of the rendering context.
// An error means the request never produced a response.
type Fetcher interface {
	Fetch(ctx context.Context, method, target string, body *string) (FetchResult, error)
}

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	Client *http.Client
	// BaseURL resolves relative targets. Absolute targets are used as-is.
	BaseURL string
}

// Fetch issues the request and reads the whole body.
func (f HTTPFetcher) Fetch(ctx context.Context, method, target string, body *string) (FetchResult, error) {
	resolved, err := ResolveTarget(f.BaseURL, target)
	if err != nil {
		return FetchResult{}, err
	}
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(*body)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved, reader)
	if err != nil {
		return FetchResult{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return FetchResult{}, fmt.Errorf("read response: %w", err)
	}
	return FetchResult{Status: resp.StatusCode, Body: data}, nil
}

// ResolveTarget joins a relative target onto base. An empty base leaves the
// target untouched.
func ResolveTarget(base, target string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}
	if ref.IsAbs() || strings.TrimSpace(base) == "" {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return baseURL.ResolveReference(ref).String(), nil
}
