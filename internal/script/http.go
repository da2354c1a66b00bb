package script

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/specialistvlad/anda/internal/ctxlog"
)

// NewHTTPClient returns the client shared by every get() call of a runtime.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// fetch performs a GET request and returns the body. Non-2xx responses are
// errors.
func fetch(ctx context.Context, client *http.Client, url string, header http.Header) (string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Making HTTP request.", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", "anda")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("Received HTTP response.", "url", url, "status", resp.Status)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return string(body), nil
}
